package permission

import (
	"testing"

	"github.com/openrfs/rfsd/internal/domain"
	"github.com/stretchr/testify/assert"
)

func gid(g uint32) *uint32 { return &g }

func TestAdminBypass(t *testing.T) {
	admin := &domain.User{UID: domain.AdminUID}
	file := &domain.File{OwnerUID: 5001, Permissions: 0}
	assert.True(t, Allowed(file, domain.OpRead, admin))
	assert.True(t, Allowed(file, domain.OpWrite, admin))
	assert.True(t, Allowed(file, domain.OpExec, admin))
}

func TestOwnerPermissions(t *testing.T) {
	owner := &domain.User{UID: 5001}
	file := &domain.File{OwnerUID: 5001, Permissions: 0o600}
	assert.True(t, Allowed(file, domain.OpRead, owner))
	assert.True(t, Allowed(file, domain.OpWrite, owner))
	assert.False(t, Allowed(file, domain.OpExec, owner))
}

func TestGroupPermissions(t *testing.T) {
	member := &domain.User{UID: 5002, GroupGID: gid(6000)}
	file := &domain.File{OwnerUID: 5001, GroupGID: gid(6000), Permissions: 0o640}
	assert.True(t, Allowed(file, domain.OpRead, member))
	assert.False(t, Allowed(file, domain.OpWrite, member))

	nonMember := &domain.User{UID: 5003, GroupGID: gid(7000)}
	assert.False(t, Allowed(file, domain.OpRead, nonMember))
}

func TestGroupPermissionsNilGroups(t *testing.T) {
	user := &domain.User{UID: 5002}
	file := &domain.File{OwnerUID: 5001, Permissions: 0o670}
	assert.False(t, Allowed(file, domain.OpWrite, user))
}

func TestOtherPermissions(t *testing.T) {
	stranger := &domain.User{UID: 5099}
	file := &domain.File{OwnerUID: 5001, GroupGID: gid(6000), Permissions: 0o644}
	assert.True(t, Allowed(file, domain.OpRead, stranger))
	assert.False(t, Allowed(file, domain.OpWrite, stranger))
}

func TestDeniedAllAround(t *testing.T) {
	stranger := &domain.User{UID: 5099}
	file := &domain.File{OwnerUID: 5001, Permissions: 0o000}
	assert.False(t, Allowed(file, domain.OpRead, stranger))
	assert.False(t, Allowed(file, domain.OpWrite, stranger))
	assert.False(t, Allowed(file, domain.OpExec, stranger))
}

func TestRootAlwaysReadable(t *testing.T) {
	root := &domain.File{OwnerUID: domain.AdminUID, Permissions: 0o755}
	someone := &domain.User{UID: 6001}
	assert.True(t, Allowed(root, domain.OpRead, someone))
}
