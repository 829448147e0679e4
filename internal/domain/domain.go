// Package domain holds the plain record types shared by every core
// component: User, Group, File, and Path. These are relational rows, not
// proxies — the owner/group "relations" of File are non-null/nullable
// fields looked up eagerly by whichever component needs them.
package domain

// AdminUID identifies the distinguished administrator account that
// bypasses all permission checks.
const AdminUID uint32 = 5000

// FileType enumerates the kinds of inode the core tracks.
type FileType int

const (
	TypeRegular FileType = iota
	TypeDirectory
	TypeSymlink
)

// User is a uniquely identified account with an optional primary Group.
type User struct {
	UID          uint32
	PasswordHash string
	GroupGID     *uint32 // primary group, nil if none
}

// IsAdmin reports whether u is the distinguished administrator.
func (u *User) IsAdmin() bool {
	return u != nil && u.UID == AdminUID
}

// Group is a named membership set of Users.
type Group struct {
	GID     uint32
	Members []uint32 // member UIDs
}

// File is an inode record. Owner is always known; Group is nullable.
type File struct {
	Ino         uint64
	Type        FileType
	Permissions uint16 // low 9 bits of rwxrwxrwx
	OwnerUID    uint32
	GroupGID    *uint32
}

// Path binds a canonical path string to a File.
type Path struct {
	CanonicalPath string
	Ino           uint64
}

// Op identifies the kind of access PermissionEvaluator checks.
type Op int

const (
	OpRead Op = iota
	OpWrite
	OpExec
)
