// Package fileops implements mkdir, rmdir, create, unlink, rename,
// hardlink, symlink, and readlink, transactional across MetaStore and
// BackingStore.
//
// Every mutating operation follows the protocol: (a) metadata
// preconditions, (b) backing-store mutation, (c) metadata commit, (d)
// response assembly from a fresh lstat. If (b) fails, (c) is never
// attempted. If (c) fails after (b) succeeded, the divergence is reported
// as EIO and surfaces again to subsequent readdir/lookup calls — it is
// never silently repaired.
package fileops

import (
	"time"

	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/entry"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/metrics"
	"github.com/openrfs/rfsd/internal/pathcodec"
	"github.com/openrfs/rfsd/internal/permission"
	"github.com/openrfs/rfsd/internal/rfserr"
)

// Ops bundles the collaborators FileOps needs.
type Ops struct {
	meta    *metastore.Store
	backing *backingstore.Store
	codec   *pathcodec.Codec
	metrics *metrics.Metrics
}

// New constructs an Ops over the given collaborators.
func New(meta *metastore.Store, backing *backingstore.Store, codec *pathcodec.Codec) *Ops {
	return &Ops{meta: meta, backing: backing, codec: codec}
}

// SetMetrics attaches m so every operation records its call count and
// latency. A nil Ops.metrics (the zero value) makes every recording call a
// no-op, so this is optional.
func (o *Ops) SetMetrics(m *metrics.Metrics) *Ops {
	o.metrics = m
	return o
}

func (o *Ops) anyPathOf(ino uint64) (*domain.Path, error) {
	paths, err := o.meta.FindPathsOfFile(ino)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, rfserr.Mismatch("", "file row has no path rows")
	}
	return paths[0], nil
}

func (o *Ops) requireWritableDir(ino uint64, caller *domain.User) (*domain.File, string, error) {
	file, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return nil, "", err
	}
	path, err := o.anyPathOf(ino)
	if err != nil {
		return nil, "", err
	}
	if file.Type != domain.TypeDirectory {
		return nil, "", rfserr.NotDir(path.CanonicalPath)
	}
	if !permission.Allowed(file, domain.OpWrite, caller) {
		return nil, "", rfserr.AccessDenied(path.CanonicalPath)
	}
	return file, path.CanonicalPath, nil
}

func (o *Ops) describe(file *domain.File, canonicalPath string) (*entry.Descriptor, error) {
	st, err := o.backing.Lstat(o.codec.ToFsPath(canonicalPath))
	if err != nil {
		return nil, err
	}
	return entry.Assemble(file, canonicalPath, pathcodec.Basename(canonicalPath), st), nil
}

// Mkdir creates a directory named name inside parentIno.
func (o *Ops) Mkdir(parentIno uint64, name string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("mkdir", start, err) }(time.Now())

	_, parentPath, err := o.requireWritableDir(parentIno, caller)
	if err != nil {
		return nil, err
	}
	childPath, err := pathcodec.ChildPathOf(parentPath, name)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(parentIno, func() error {
		fsPath := o.codec.ToFsPath(childPath)
		if err := o.backing.Mkdir(fsPath); err != nil {
			return err
		}
		st, err := o.backing.Lstat(fsPath)
		if err != nil {
			return err
		}

		return o.meta.Transact(func(tx *metastore.Store) error {
			file := &domain.File{
				Ino: st.Ino, Type: domain.TypeDirectory, Permissions: 0o755,
				OwnerUID: caller.UID, GroupGID: caller.GroupGID,
			}
			if err := tx.SaveFile(file); err != nil {
				return err
			}
			if err := tx.SavePath(&domain.Path{CanonicalPath: childPath, Ino: st.Ino}); err != nil {
				return err
			}
			result = entry.Assemble(file, childPath, name, st)
			return nil
		})
	})
	return result, err
}

// Rmdir removes the empty directory named name inside parentIno.
func (o *Ops) Rmdir(parentIno uint64, name string, caller *domain.User) (err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("rmdir", start, err) }(time.Now())

	_, parentPath, err := o.requireWritableDir(parentIno, caller)
	if err != nil {
		return err
	}
	childPath, err := pathcodec.ChildPathOf(parentPath, name)
	if err != nil {
		return err
	}
	childPathRow, err := o.meta.FindPath(childPath)
	if err != nil {
		return err
	}
	child, err := o.meta.FindFileByIno(childPathRow.Ino)
	if err != nil {
		return err
	}
	if child.Type != domain.TypeDirectory {
		return rfserr.NotDir(childPath)
	}

	err = o.meta.WithInodeLock(child.Ino, func() error {
		if err := o.backing.Rmdir(o.codec.ToFsPath(childPath)); err != nil {
			return err
		}
		return o.meta.Transact(func(tx *metastore.Store) error {
			if err := tx.RemovePath(childPath); err != nil {
				return err
			}
			count, err := tx.CountPathsOfFile(child.Ino)
			if err != nil {
				return err
			}
			if count != 0 {
				return rfserr.Mismatch(childPath, "directory had more than one path row")
			}
			return tx.RemoveFile(child.Ino)
		})
	})
	return err
}

// Create creates a new empty regular file named name inside parentIno.
func (o *Ops) Create(parentIno uint64, name string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("create", start, err) }(time.Now())

	_, parentPath, err := o.requireWritableDir(parentIno, caller)
	if err != nil {
		return nil, err
	}
	childPath, err := pathcodec.ChildPathOf(parentPath, name)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(parentIno, func() error {
		fsPath := o.codec.ToFsPath(childPath)
		if err := o.backing.WriteFileExclusive(fsPath); err != nil {
			return err
		}
		st, err := o.backing.Lstat(fsPath)
		if err != nil {
			return err
		}

		return o.meta.Transact(func(tx *metastore.Store) error {
			file := &domain.File{
				Ino: st.Ino, Type: domain.TypeRegular, Permissions: 0o644,
				OwnerUID: caller.UID, GroupGID: caller.GroupGID,
			}
			if err := tx.SaveFile(file); err != nil {
				return err
			}
			if err := tx.SavePath(&domain.Path{CanonicalPath: childPath, Ino: st.Ino}); err != nil {
				return err
			}
			result = entry.Assemble(file, childPath, name, st)
			return nil
		})
	})
	return result, err
}

// Unlink removes the directory entry named name inside parentIno.
func (o *Ops) Unlink(parentIno uint64, name string, caller *domain.User) (err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("unlink", start, err) }(time.Now())

	_, parentPath, err := o.requireWritableDir(parentIno, caller)
	if err != nil {
		return err
	}
	childPath, err := pathcodec.ChildPathOf(parentPath, name)
	if err != nil {
		return err
	}
	childPathRow, err := o.meta.FindPath(childPath)
	if err != nil {
		return err
	}
	child, err := o.meta.FindFileByIno(childPathRow.Ino)
	if err != nil {
		return err
	}
	if child.Type == domain.TypeDirectory {
		return rfserr.IsDir(childPath)
	}

	err = o.meta.WithInodeLock(child.Ino, func() error {
		if err := o.backing.Unlink(o.codec.ToFsPath(childPath)); err != nil {
			return err
		}
		return o.meta.Transact(func(tx *metastore.Store) error {
			if err := tx.RemovePath(childPath); err != nil {
				return err
			}
			count, err := tx.CountPathsOfFile(child.Ino)
			if err != nil {
				return err
			}
			if count == 0 {
				return tx.RemoveFile(child.Ino)
			}
			return nil
		})
	})
	return err
}

// Rename moves the entry named oldName inside oldParentIno to newName
// inside newParentIno.
func (o *Ops) Rename(oldParentIno uint64, oldName string, newParentIno uint64, newName string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("rename", start, err) }(time.Now())

	_, oldParentPath, err := o.requireWritableDir(oldParentIno, caller)
	if err != nil {
		return nil, err
	}
	_, newParentPath, err := o.requireWritableDir(newParentIno, caller)
	if err != nil {
		return nil, err
	}
	oldPath, err := pathcodec.ChildPathOf(oldParentPath, oldName)
	if err != nil {
		return nil, err
	}
	if oldPath == "/" {
		return nil, rfserr.Invalid("cannot rename the root")
	}
	newPath, err := pathcodec.ChildPathOf(newParentPath, newName)
	if err != nil {
		return nil, err
	}

	pathRow, err := o.meta.FindPath(oldPath)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(pathRow.Ino, func() error {
		if err := o.backing.Rename(o.codec.ToFsPath(oldPath), o.codec.ToFsPath(newPath)); err != nil {
			return err
		}
		return o.meta.Transact(func(tx *metastore.Store) error {
			if err := tx.RemovePath(oldPath); err != nil {
				return err
			}
			if err := tx.SavePath(&domain.Path{CanonicalPath: newPath, Ino: pathRow.Ino}); err != nil {
				return err
			}
			file, err := tx.FindFileByIno(pathRow.Ino)
			if err != nil {
				return err
			}
			result, err = o.describe(file, newPath)
			return err
		})
	})
	return result, err
}

// Hardlink binds a new name, linkName, inside linkParentIno to the
// existing File identified by targetIno.
func (o *Ops) Hardlink(targetIno uint64, linkParentIno uint64, linkName string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("hardlink", start, err) }(time.Now())

	target, err := o.meta.FindFileByIno(targetIno)
	if err != nil {
		return nil, err
	}
	if target.Type == domain.TypeDirectory {
		return nil, rfserr.IsDir("")
	}
	targetPath, err := o.anyPathOf(targetIno)
	if err != nil {
		return nil, err
	}
	_, linkParentPath, err := o.requireWritableDir(linkParentIno, caller)
	if err != nil {
		return nil, err
	}
	linkPath, err := pathcodec.ChildPathOf(linkParentPath, linkName)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(targetIno, func() error {
		if err := o.backing.Link(o.codec.ToFsPath(targetPath.CanonicalPath), o.codec.ToFsPath(linkPath)); err != nil {
			return err
		}
		return o.meta.Transact(func(tx *metastore.Store) error {
			if err := tx.SavePath(&domain.Path{CanonicalPath: linkPath, Ino: targetIno}); err != nil {
				return err
			}
			result, err = o.describe(target, linkPath)
			return err
		})
	})
	return result, err
}

// Symlink creates a symbolic link named linkName inside linkParentIno
// pointing at the opaque string targetPath.
func (o *Ops) Symlink(targetPath string, linkParentIno uint64, linkName string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("symlink", start, err) }(time.Now())

	linkParent, linkParentPath, err := o.requireWritableDir(linkParentIno, caller)
	if err != nil {
		return nil, err
	}
	linkPath, err := pathcodec.ChildPathOf(linkParentPath, linkName)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(linkParentIno, func() error {
		fsPath := o.codec.ToFsPath(linkPath)
		if err := o.backing.Symlink(targetPath, fsPath); err != nil {
			return err
		}
		st, err := o.backing.Lstat(fsPath)
		if err != nil {
			return err
		}

		return o.meta.Transact(func(tx *metastore.Store) error {
			file := &domain.File{
				Ino: st.Ino, Type: domain.TypeSymlink, Permissions: 0o755,
				OwnerUID: caller.UID, GroupGID: linkParent.GroupGID,
			}
			if err := tx.SaveFile(file); err != nil {
				return err
			}
			if err := tx.SavePath(&domain.Path{CanonicalPath: linkPath, Ino: st.Ino}); err != nil {
				return err
			}
			result = entry.Assemble(file, linkPath, linkName, st)
			return nil
		})
	})
	return result, err
}

// Readlink returns the target path stored in the symbolic link ino.
func (o *Ops) Readlink(ino uint64) (target string, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("readlink", start, err) }(time.Now())

	file, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return "", err
	}
	if file.Type != domain.TypeSymlink {
		return "", rfserr.Invalid("not a symlink")
	}
	path, err := o.anyPathOf(ino)
	if err != nil {
		return "", err
	}
	return o.backing.Readlink(o.codec.ToFsPath(path.CanonicalPath))
}
