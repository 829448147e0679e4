// Package attrops implements readdir, lookup, getattr, and setattr on top
// of MetaStore, BackingStore, and PermissionEvaluator.
package attrops

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

// Ops bundles the collaborators AttrOps needs.
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
// latency.
func (o *Ops) SetMetrics(m *metrics.Metrics) *Ops {
	o.metrics = m
	return o
}

// anyPathOf returns some canonical path referencing ino. Directories and
// symlinks always have exactly one; regular files may have several, any
// of which resolves to the same backing inode.
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

func (o *Ops) statAt(canonicalPath string) (*backingstore.Stat, error) {
	return o.backing.Lstat(o.codec.ToFsPath(canonicalPath))
}

func (o *Ops) describe(file *domain.File, canonicalPath string) (*entry.Descriptor, error) {
	st, err := o.statAt(canonicalPath)
	if err != nil {
		return nil, err
	}
	if st.Ino != file.Ino {
		return nil, rfserr.Mismatch(canonicalPath, "backing inode does not match metadata row")
	}
	return entry.Assemble(file, canonicalPath, pathcodec.Basename(canonicalPath), st), nil
}

func requireDir(file *domain.File, path string) error {
	if file.Type != domain.TypeDirectory {
		return rfserr.NotDir(path)
	}
	return nil
}

// Lookup resolves parentIno/name into the child's entry descriptor.
func (o *Ops) Lookup(parentIno uint64, name string, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("lookup", start, err) }(time.Now())

	parent, err := o.meta.FindFileByIno(parentIno)
	if err != nil {
		return nil, err
	}
	parentPath, err := o.anyPathOf(parentIno)
	if err != nil {
		return nil, err
	}
	if err := requireDir(parent, parentPath.CanonicalPath); err != nil {
		return nil, err
	}
	if !permission.Allowed(parent, domain.OpRead, caller) {
		return nil, rfserr.AccessDenied(parentPath.CanonicalPath)
	}

	childPath, err := pathcodec.ChildPathOf(parentPath.CanonicalPath, name)
	if err != nil {
		return nil, err
	}

	err = o.meta.WithInodeLock(parentIno, func() error {
		st, err := o.statAt(childPath)
		if err != nil {
			return err
		}
		childFile, err := o.meta.FindFileByIno(st.Ino)
		if err != nil {
			return rfserr.Mismatch(childPath, "backing entry has no metadata row")
		}
		if _, err := o.meta.FindPath(childPath); err != nil {
			return rfserr.Mismatch(childPath, "metadata has no path row for backing entry")
		}
		result = entry.Assemble(childFile, childPath, pathcodec.Basename(childPath), st)
		return nil
	})
	return result, err
}

// Readdir lists the entries of the directory identified by ino, silently
// omitting children the caller cannot read.
func (o *Ops) Readdir(ino uint64, caller *domain.User) (result []*entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("readdir", start, err) }(time.Now())

	dir, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return nil, err
	}
	dirPath, err := o.anyPathOf(ino)
	if err != nil {
		return nil, err
	}
	if err := requireDir(dir, dirPath.CanonicalPath); err != nil {
		return nil, err
	}
	if !permission.Allowed(dir, domain.OpRead, caller) {
		return nil, rfserr.AccessDenied(dirPath.CanonicalPath)
	}

	err = o.meta.WithInodeLock(ino, func() error {
		names, err := o.backing.Readdir(o.codec.ToFsPath(dirPath.CanonicalPath))
		if err != nil {
			return err
		}

		out := make([]*entry.Descriptor, 0, len(names))
		for _, name := range names {
			childPath, err := pathcodec.ChildPathOf(dirPath.CanonicalPath, name)
			if err != nil {
				return err
			}
			st, err := o.statAt(childPath)
			if err != nil {
				return err
			}
			childFile, err := o.meta.FindFileByIno(st.Ino)
			if err != nil {
				return rfserr.Mismatch(childPath, "backing entry has no metadata row")
			}
			if _, err := o.meta.FindPath(childPath); err != nil {
				return rfserr.Mismatch(childPath, "metadata has no path row for backing entry")
			}
			if !permission.Allowed(childFile, domain.OpRead, caller) {
				continue
			}
			out = append(out, entry.Assemble(childFile, childPath, name, st))
		}
		result = out
		return nil
	})
	return result, err
}

// GetattrResult carries either a fresh descriptor or a not-modified
// signal for the conditional getattr variant.
type GetattrResult struct {
	NotModified bool
	Descriptor  *entry.Descriptor
}

// Getattr returns the entry descriptor for ino. When sinceUnixSeconds is
// non-nil and is at least as recent (seconds resolution) as the file's
// current mtime, it returns a not-modified result with no body.
func (o *Ops) Getattr(ino uint64, caller *domain.User, sinceUnixSeconds *int64) (result *GetattrResult, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("getattr", start, err) }(time.Now())

	file, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return nil, err
	}
	path, err := o.anyPathOf(ino)
	if err != nil {
		return nil, err
	}
	if !permission.Allowed(file, domain.OpRead, caller) {
		return nil, rfserr.AccessDenied(path.CanonicalPath)
	}

	st, err := o.statAt(path.CanonicalPath)
	if err != nil {
		return nil, err
	}
	if sinceUnixSeconds != nil && *sinceUnixSeconds >= st.Mtime/1_000_000_000 {
		return &GetattrResult{NotModified: true}, nil
	}

	desc := entry.Assemble(file, path.CanonicalPath, pathcodec.Basename(path.CanonicalPath), st)
	return &GetattrResult{Descriptor: desc}, nil
}

// SetattrRequest carries the optional fields a setattr call may change.
type SetattrRequest struct {
	Perm *uint16
	UID  *uint32
	GID  *uint32
	Size *int64
}

// Setattr applies the requested attribute changes and returns the
// resulting entry descriptor. Ownership-change policy: if UID names a
// known User, ownership transfers to that User with the User's primary
// group; if UID is set but unknown, ownership transfers to the caller
// with the caller's group; otherwise ownership is left unchanged. GID is
// applied independently of UID: if GID names a known Group, the file's
// group changes to it (overriding whatever group a UID change would
// otherwise have derived); an unknown GID is rejected rather than
// silently ignored.
func (o *Ops) Setattr(ino uint64, req SetattrRequest, caller *domain.User) (result *entry.Descriptor, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("setattr", start, err) }(time.Now())

	file, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return nil, err
	}
	path, err := o.anyPathOf(ino)
	if err != nil {
		return nil, err
	}
	if !permission.Allowed(file, domain.OpWrite, caller) {
		return nil, rfserr.AccessDenied(path.CanonicalPath)
	}

	if req.Perm != nil {
		if *req.Perm > 0o777 {
			return nil, rfserr.Invalid("permission out of range")
		}
		if err := o.meta.UpdatePermissions(ino, *req.Perm); err != nil {
			return nil, err
		}
	}

	if req.UID != nil || req.GID != nil {
		targetUID := file.OwnerUID
		groupGID := file.GroupGID

		if req.UID != nil {
			targetUID = *req.UID
			if targetUser, err := o.meta.FindUser(targetUID); err == nil {
				groupGID = targetUser.GroupGID
			} else {
				targetUID = caller.UID
				groupGID = caller.GroupGID
			}
		}
		if req.GID != nil {
			if _, err := o.meta.FindGroup(*req.GID); err != nil {
				return nil, rfserr.Invalid("unknown gid")
			}
			gid := *req.GID
			groupGID = &gid
		}

		if err := o.meta.UpdateOwnerGroup(ino, targetUID, groupGID); err != nil {
			return nil, err
		}
	}

	if req.Size != nil {
		if file.Type == domain.TypeDirectory {
			return nil, rfserr.IsDir(path.CanonicalPath)
		}
		if err := o.backing.Truncate(o.codec.ToFsPath(path.CanonicalPath), *req.Size); err != nil {
			return nil, err
		}
	}

	file, err = o.meta.FindFileByIno(ino)
	if err != nil {
		return nil, err
	}
	return o.describe(file, path.CanonicalPath)
}
