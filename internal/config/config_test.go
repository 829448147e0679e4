package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Root = "/data"
	cfg.Storage.MetaDSN = ":memory:"
	ApplyDefaults(cfg)

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.MetaDialect)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestValidateRequiresStorageRoot(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateSucceedsWithRequiredFields(t *testing.T) {
	cfg := &Config{}
	cfg.Storage.Root = "/data"
	cfg.Storage.MetaDSN = ":memory:"
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))
}

func TestGetSecretPrefersEnv(t *testing.T) {
	auth := AuthConfig{Secret: "from-file"}
	assert.Equal(t, "from-file", auth.GetSecret())

	t.Setenv(EnvAdminSecret, "from-env")
	assert.Equal(t, "from-env", auth.GetSecret())
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestLoadReadsYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.yaml"
	content := "storage:\n  root: /srv/rfsd\n  meta_dsn: /srv/rfsd/meta.db\nlogging:\n  level: DEBUG\n  format: json\n  output: stdout\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/rfsd", cfg.Storage.Root)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}
