// Package permission implements the pure POSIX rwx-mode permission check
// shared by AttrOps and FileOps.
package permission

import "github.com/openrfs/rfsd/internal/domain"

func maskFor(op domain.Op) uint16 {
	switch op {
	case domain.OpRead:
		return 4
	case domain.OpWrite:
		return 2
	case domain.OpExec:
		return 1
	default:
		return 0
	}
}

// Allowed implements the admin-bypass, owner/group/other rwx-mode check
// against file for the given operation and caller.
func Allowed(file *domain.File, op domain.Op, user *domain.User) bool {
	if user != nil && user.IsAdmin() {
		return true
	}

	mask := maskFor(op)
	perm := file.Permissions

	ownerBits := (perm >> 6) & mask
	groupBits := (perm >> 3) & mask
	otherBits := perm & mask

	if user != nil && user.UID == file.OwnerUID && ownerBits == mask {
		return true
	}
	if file.GroupGID != nil && user != nil && user.GroupGID != nil &&
		*user.GroupGID == *file.GroupGID && groupBits == mask {
		return true
	}
	if otherBits == mask {
		return true
	}
	return false
}
