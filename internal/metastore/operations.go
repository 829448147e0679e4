package metastore

import (
	"errors"

	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/rfserr"
	"gorm.io/gorm"
)

func wrapNotFound(err error, notFound *rfserr.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	if err != nil {
		return rfserr.IOFailure("", err)
	}
	return nil
}

// FindFileByIno resolves the File row for ino. Returns ENOENT if absent.
func (s *Store) FindFileByIno(ino uint64) (*domain.File, error) {
	var row FileRow
	err := s.db.Where("ino = ?", ino).First(&row).Error
	if err != nil {
		return nil, wrapNotFound(err, rfserr.NotFound(""))
	}
	return row.toDomain(), nil
}

// FindPath resolves the Path row for a canonical path. Returns ENOENT if
// absent.
func (s *Store) FindPath(path string) (*domain.Path, error) {
	var row PathRow
	err := s.db.Where("canonical_path = ?", path).First(&row).Error
	if err != nil {
		return nil, wrapNotFound(err, rfserr.NotFound(path))
	}
	return row.toDomain(), nil
}

// FindPathsOfFile returns every Path row referencing ino.
func (s *Store) FindPathsOfFile(ino uint64) ([]*domain.Path, error) {
	var rows []PathRow
	if err := s.db.Where("ino = ?", ino).Find(&rows).Error; err != nil {
		return nil, rfserr.IOFailure("", err)
	}
	out := make([]*domain.Path, 0, len(rows))
	for _, r := range rows {
		row := r
		out = append(out, row.toDomain())
	}
	return out, nil
}

// CanonicalPathOf returns any one canonical path referencing ino. Used by
// the reserved-file side channel, which only needs to recognize the path,
// not enumerate every hardlink.
func (s *Store) CanonicalPathOf(ino uint64) (string, error) {
	paths, err := s.FindPathsOfFile(ino)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", rfserr.NotFound("")
	}
	return paths[0].CanonicalPath, nil
}

// FindUser resolves a User by uid. Returns ENOENT if absent.
func (s *Store) FindUser(uid uint32) (*domain.User, error) {
	var row UserRow
	err := s.db.Where("uid = ?", uid).First(&row).Error
	if err != nil {
		return nil, wrapNotFound(err, rfserr.NotFound(""))
	}
	return row.toDomain(), nil
}

// ListUsers returns every known User, ordered by uid.
func (s *Store) ListUsers() ([]*domain.User, error) {
	var rows []UserRow
	if err := s.db.Order("uid").Find(&rows).Error; err != nil {
		return nil, rfserr.IOFailure("", err)
	}
	users := make([]*domain.User, len(rows))
	for i := range rows {
		users[i] = rows[i].toDomain()
	}
	return users, nil
}

// FindGroup resolves a Group by gid. Returns ENOENT if absent.
func (s *Store) FindGroup(gid uint32) (*domain.Group, error) {
	var row GroupRow
	if err := s.db.Where("gid = ?", gid).First(&row).Error; err != nil {
		return nil, wrapNotFound(err, rfserr.NotFound(""))
	}
	return row.toDomain(), nil
}

// FindGroupOfUser resolves the primary Group of the given uid, or nil if
// the user has none.
func (s *Store) FindGroupOfUser(uid uint32) (*domain.Group, error) {
	user, err := s.FindUser(uid)
	if err != nil {
		return nil, err
	}
	if user.GroupGID == nil {
		return nil, nil
	}
	var row GroupRow
	if err := s.db.Where("gid = ?", *user.GroupGID).First(&row).Error; err != nil {
		return nil, wrapNotFound(err, rfserr.NotFound(""))
	}
	return row.toDomain(), nil
}

// SaveFile inserts or updates a File row.
func (s *Store) SaveFile(file *domain.File) error {
	row := fromDomainFile(file)
	if err := s.db.Save(row).Error; err != nil {
		return rfserr.IOFailure("", err)
	}
	return nil
}

// SavePath inserts or updates a Path row.
func (s *Store) SavePath(path *domain.Path) error {
	row := &PathRow{CanonicalPath: path.CanonicalPath, Ino: path.Ino}
	if err := s.db.Save(row).Error; err != nil {
		return rfserr.IOFailure(path.CanonicalPath, err)
	}
	return nil
}

// RemovePath deletes the Path row for the given canonical path.
func (s *Store) RemovePath(path string) error {
	if err := s.db.Where("canonical_path = ?", path).Delete(&PathRow{}).Error; err != nil {
		return rfserr.IOFailure(path, err)
	}
	return nil
}

// RemoveFile deletes the File row for the given inode.
func (s *Store) RemoveFile(ino uint64) error {
	if err := s.db.Where("ino = ?", ino).Delete(&FileRow{}).Error; err != nil {
		return rfserr.IOFailure("", err)
	}
	return nil
}

// UpdatePermissions sets the permission bits on a File row.
func (s *Store) UpdatePermissions(ino uint64, perm uint16) error {
	res := s.db.Model(&FileRow{}).Where("ino = ?", ino).Update("permissions", perm)
	if res.Error != nil {
		return rfserr.IOFailure("", res.Error)
	}
	if res.RowsAffected == 0 {
		return rfserr.NotFound("")
	}
	return nil
}

// UpdateOwnerGroup sets the owner and group on a File row.
func (s *Store) UpdateOwnerGroup(ino uint64, ownerUID uint32, groupGID *uint32) error {
	res := s.db.Model(&FileRow{}).Where("ino = ?", ino).
		Updates(map[string]any{"owner_uid": ownerUID, "group_gid": groupGID})
	if res.Error != nil {
		return rfserr.IOFailure("", res.Error)
	}
	if res.RowsAffected == 0 {
		return rfserr.NotFound("")
	}
	return nil
}

// Transact runs fn inside a GORM transaction, passing a transaction-scoped
// *Store. Any error returned by fn rolls the transaction back. This is the
// mechanism behind the grouped mutations (mkdir, unlink-last-link, rename)
// that must be applied atomically.
func (s *Store) Transact(fn func(tx *Store) error) error {
	return s.db.Transaction(func(txDB *gorm.DB) error {
		txStore := &Store{db: txDB, locks: s.locks}
		return fn(txStore)
	})
}

// CountPathsOfFile returns the number of Path rows referencing ino.
func (s *Store) CountPathsOfFile(ino uint64) (int64, error) {
	var count int64
	if err := s.db.Model(&PathRow{}).Where("ino = ?", ino).Count(&count).Error; err != nil {
		return 0, rfserr.IOFailure("", err)
	}
	return count, nil
}

// CreateUser inserts a new User row. Used by the authentication bridge's
// signup path.
func (s *Store) CreateUser(user *domain.User) error {
	row := &UserRow{UID: user.UID, PasswordHash: user.PasswordHash, GroupGID: user.GroupGID}
	if err := s.db.Create(row).Error; err != nil {
		return rfserr.IOFailure("", err)
	}
	return nil
}

// CreateGroup inserts a new Group row. Used by the authentication bridge's
// group-association path.
func (s *Store) CreateGroup(gid uint32) error {
	row := &GroupRow{GID: gid}
	if err := s.db.Create(row).Error; err != nil {
		return rfserr.IOFailure("", err)
	}
	return nil
}

// AssociateUserWithGroup sets a user's primary group.
func (s *Store) AssociateUserWithGroup(uid, gid uint32) error {
	res := s.db.Model(&UserRow{}).Where("uid = ?", uid).Update("group_gid", gid)
	if res.Error != nil {
		return rfserr.IOFailure("", res.Error)
	}
	if res.RowsAffected == 0 {
		return rfserr.NotFound("")
	}
	return nil
}
