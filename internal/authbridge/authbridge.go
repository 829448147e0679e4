// Package authbridge is the minimal in-process stand-in for the
// out-of-scope authentication collaborator: it verifies session cookies
// issued elsewhere and exposes the signup / group-association operations
// the reserved-file side channel calls directly, in-process, instead of
// replaying a self-HTTP request.
package authbridge

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/rfserr"
	"golang.org/x/crypto/bcrypt"
)

// SessionCookieName is the cookie the authentication collaborator sets
// after a successful login, carried on every subsequent request.
const SessionCookieName = "connect.sid"

// Claims is the payload encoded in the session cookie's JWT.
type Claims struct {
	UID uint32 `json:"uid"`
	jwt.RegisteredClaims
}

// Bridge verifies session cookies and bootstraps new identities.
type Bridge struct {
	meta      *metastore.Store
	secretKey []byte
}

// New constructs a Bridge over meta, signing/verifying sessions with
// secretKey.
func New(meta *metastore.Store, secretKey []byte) *Bridge {
	return &Bridge{meta: meta, secretKey: secretKey}
}

// Authenticate reads the session cookie from r and returns the User it
// identifies. Returns a 401-mapped error when the cookie is absent,
// malformed, expired, or names an unknown user.
func (b *Bridge) Authenticate(r *http.Request) (*domain.User, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, errUnauthenticated
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(cookie.Value, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return b.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthenticated
	}

	user, err := b.meta.FindUser(claims.UID)
	if err != nil {
		return nil, errUnauthenticated
	}
	return user, nil
}

// errUnauthenticated is a sentinel distinguished by the httpapi layer,
// which maps it to HTTP 401 — the one status in the taxonomy that
// originates from the authentication collaborator, not the core.
var errUnauthenticated = errors.New("not authenticated")

// IsUnauthenticated reports whether err is the Authenticate sentinel.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, errUnauthenticated)
}

// IssueSession signs a session cookie value for uid, for use by tests and
// local tooling that need to exercise authenticated routes without a real
// authentication collaborator.
func (b *Bridge) IssueSession(uid uint32, ttl time.Duration) (string, error) {
	claims := &Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(b.secretKey)
}

// SignupUser creates a new User row with a bcrypt-hashed password. This is
// the in-process call the reserved-file side channel makes after parsing
// a write to /create-user.txt, replacing the fragile self-HTTP round trip
// named in the original design.
func (b *Bridge) SignupUser(uid uint32, password string) error {
	if _, err := b.meta.FindUser(uid); err == nil {
		return rfserr.Exists("")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return rfserr.IOFailure("", err)
	}

	return b.meta.CreateUser(&domain.User{UID: uid, PasswordHash: string(hash)})
}

// AssociateGroup binds uid to gid as its primary group, creating the
// group row if it does not yet exist. This is the in-process call the
// side channel makes after parsing a write to /create-group.txt.
func (b *Bridge) AssociateGroup(uid, gid uint32) error {
	if _, err := b.meta.FindUser(uid); err != nil {
		return err
	}
	// Ensure the group row exists; a duplicate-key failure here just means
	// the group was already created by an earlier association.
	_ = b.meta.CreateGroup(gid)
	return b.meta.AssociateUserWithGroup(uid, gid)
}
