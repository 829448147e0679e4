package authbridge

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/rfserr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T) (*Bridge, *metastore.Store) {
	t.Helper()
	meta, err := metastore.Open(metastore.Config{Dialect: metastore.DialectSQLite, DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })
	return New(meta, []byte("test-secret")), meta
}

func TestSignupAndAuthenticate(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.SignupUser(5001, "hunter2"))

	token, err := b.IssueSession(5001, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	user, err := b.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, uint32(5001), user.UID)
}

func TestSignupDuplicateUser(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.SignupUser(5001, "hunter2"))
	err := b.SignupUser(5001, "other")
	require.Error(t, err)
	rerr, ok := rfserr.As(err)
	require.True(t, ok)
	assert.Equal(t, rfserr.EEXIST, rerr.Code)
}

func TestAuthenticateMissingCookie(t *testing.T) {
	b, _ := newTestBridge(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	_, err := b.Authenticate(req)
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
}

func TestAuthenticateExpiredToken(t *testing.T) {
	b, _ := newTestBridge(t)
	require.NoError(t, b.SignupUser(5001, "hunter2"))
	token, err := b.IssueSession(5001, -time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	_, err = b.Authenticate(req)
	require.Error(t, err)
	assert.True(t, IsUnauthenticated(err))
}

func TestAssociateGroup(t *testing.T) {
	b, meta := newTestBridge(t)
	require.NoError(t, b.SignupUser(5001, "hunter2"))
	require.NoError(t, b.AssociateGroup(5001, 6000))

	group, err := meta.FindGroupOfUser(5001)
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, uint32(6000), group.GID)
}
