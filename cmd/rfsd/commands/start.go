package commands

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/openrfs/rfsd/internal/attrops"
	"github.com/openrfs/rfsd/internal/authbridge"
	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/config"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/fileops"
	"github.com/openrfs/rfsd/internal/ioops"
	"github.com/openrfs/rfsd/internal/logger"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/metrics"
	"github.com/openrfs/rfsd/internal/pathcodec"
	"github.com/openrfs/rfsd/pkg/httpapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the rfsd server",
	Long: `Start the rfsd server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/rfsd/config.yaml.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.Logging.ToLoggerConfig()); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("rfsd starting", "version", Version, "storage_root", cfg.Storage.Root)

	meta, err := metastore.Open(metastore.Config{
		Dialect: metastore.DialectType(cfg.Storage.MetaDialect),
		DSN:     cfg.Storage.MetaDSN,
	})
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() {
		if err := meta.Close(); err != nil {
			logger.Error("error closing metadata store", "error", err)
		}
	}()

	if err := os.MkdirAll(cfg.Storage.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create storage root: %w", err)
	}
	backing := backingstore.New(cfg.Storage.Root)
	codec := pathcodec.New(cfg.Storage.Root)

	if err := ensureRoot(meta, backing); err != nil {
		return fmt.Errorf("failed to bootstrap root directory: %w", err)
	}
	if total, available, err := backing.FreeSpace(); err == nil {
		logger.Info("storage root space",
			"total", humanize.Bytes(total), "available", humanize.Bytes(available))
	}

	secret := cfg.Auth.GetSecret()
	if secret == "" {
		generated, err := randomHex(32)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		secret = generated
		logger.Warn("no auth secret configured; generated an ephemeral one for this run",
			"hint", fmt.Sprintf("set %s to persist sessions across restarts", config.EnvAdminSecret))
	}
	auth := authbridge.New(meta, []byte(secret))

	if err := ensureAdmin(auth, meta); err != nil {
		return fmt.Errorf("failed to bootstrap admin user: %w", err)
	}

	var reg *prometheus.Registry
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		m = metrics.NewMetrics(reg)
	}

	deps := httpapi.Deps{
		Meta:    meta,
		Backing: backing,
		Attr:    attrops.New(meta, backing, codec).SetMetrics(m),
		Files:   fileops.New(meta, backing, codec).SetMetrics(m),
		IO:      ioops.New(meta, backing, codec).SetMetrics(m),
		Auth:    auth,
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", cfg.Metrics.Port), Handler: mux}
		go func() {
			logger.Info("metrics server listening", "port", cfg.Metrics.Port)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	serverDone := make(chan error, 1)
	go func() {
		logger.Info("API server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
			return
		}
		serverDone <- nil
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("rfsd is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
			return err
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		logger.Info("rfsd stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", "error", err)
			return err
		}
		logger.Info("rfsd stopped")
	}

	return nil
}

// ensureRoot creates the backing root directory and its File/Path rows if
// they do not already exist, so a brand new storage root is immediately
// servable.
func ensureRoot(meta *metastore.Store, backing *backingstore.Store) error {
	if _, err := meta.FindPath("/"); err == nil {
		return nil
	}

	if err := os.MkdirAll(backing.Root(), 0o755); err != nil {
		return err
	}
	st, err := backing.Lstat(backing.Root())
	if err != nil {
		return err
	}

	if err := meta.SaveFile(&domain.File{
		Ino: st.Ino, Type: domain.TypeDirectory, Permissions: 0o777, OwnerUID: domain.AdminUID,
	}); err != nil {
		return err
	}
	return meta.SavePath(&domain.Path{CanonicalPath: "/", Ino: st.Ino})
}

// ensureAdmin creates the distinguished administrator account with a
// random password on first run, printing it once since it cannot be
// recovered afterward.
func ensureAdmin(auth *authbridge.Bridge, meta *metastore.Store) error {
	if _, err := meta.FindUser(domain.AdminUID); err == nil {
		return nil
	}

	password, err := randomHex(16)
	if err != nil {
		return err
	}
	if err := auth.SignupUser(domain.AdminUID, password); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("*** Admin account created ***")
	fmt.Printf("  uid:      %d\n", domain.AdminUID)
	fmt.Printf("  password: %s\n", password)
	fmt.Println("Save this password now. It is not stored anywhere in plaintext and will not be shown again.")
	fmt.Println()

	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
