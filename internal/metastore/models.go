package metastore

import "github.com/openrfs/rfsd/internal/domain"

// UserRow is the GORM-mapped persisted form of a User.
type UserRow struct {
	UID          uint32  `gorm:"primaryKey;autoIncrement:false"`
	PasswordHash string  `gorm:"not null"`
	GroupGID     *uint32 `gorm:"column:group_gid;index"`
}

// TableName returns the table name for UserRow.
func (UserRow) TableName() string { return "users" }

func (r *UserRow) toDomain() *domain.User {
	return &domain.User{UID: r.UID, PasswordHash: r.PasswordHash, GroupGID: r.GroupGID}
}

// GroupRow is the GORM-mapped persisted form of a Group.
type GroupRow struct {
	GID     uint32 `gorm:"primaryKey;autoIncrement:false"`
	Members []UserRow `gorm:"foreignKey:GroupGID;references:GID"`
}

// TableName returns the table name for GroupRow.
func (GroupRow) TableName() string { return "groups" }

func (r *GroupRow) toDomain() *domain.Group {
	members := make([]uint32, 0, len(r.Members))
	for _, m := range r.Members {
		members = append(members, m.UID)
	}
	return &domain.Group{GID: r.GID, Members: members}
}

// FileRow is the GORM-mapped persisted form of a File (inode record).
type FileRow struct {
	Ino         uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type        int    `gorm:"not null"`
	Permissions uint16 `gorm:"not null"`
	OwnerUID    uint32 `gorm:"not null;index"`
	GroupGID    *uint32 `gorm:"column:group_gid;index"`
}

// TableName returns the table name for FileRow.
func (FileRow) TableName() string { return "files" }

func (r *FileRow) toDomain() *domain.File {
	return &domain.File{
		Ino:         r.Ino,
		Type:        domain.FileType(r.Type),
		Permissions: r.Permissions,
		OwnerUID:    r.OwnerUID,
		GroupGID:    r.GroupGID,
	}
}

func fromDomainFile(f *domain.File) *FileRow {
	return &FileRow{
		Ino:         f.Ino,
		Type:        int(f.Type),
		Permissions: f.Permissions,
		OwnerUID:    f.OwnerUID,
		GroupGID:    f.GroupGID,
	}
}

// PathRow is the GORM-mapped persisted form of a Path.
type PathRow struct {
	CanonicalPath string `gorm:"primaryKey;size:4096"`
	Ino           uint64 `gorm:"not null;index"`
}

// TableName returns the table name for PathRow.
func (PathRow) TableName() string { return "paths" }

func (r *PathRow) toDomain() *domain.Path {
	return &domain.Path{CanonicalPath: r.CanonicalPath, Ino: r.Ino}
}

// AllModels returns every model GORM must AutoMigrate, mirroring the
// single source-of-truth list pattern used for the control-plane schema.
func AllModels() []any {
	return []any{
		&UserRow{},
		&GroupRow{},
		&FileRow{},
		&PathRow{},
	}
}
