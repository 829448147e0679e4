// Package backingstore is a thin wrapper over the host filesystem rooted
// at a fixed directory: create/read/write/truncate/rename/unlink/rmdir/
// symlink/hardlink/stat/lstat, all with explicit offsets and error-code
// mapping into the taxonomy in internal/rfserr.
package backingstore

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"

	"github.com/openrfs/rfsd/internal/rfserr"
	"golang.org/x/sys/unix"
)

// Store wraps host filesystem calls rooted at a fixed directory.
type Store struct {
	root string
}

// New returns a Store rooted at root. root must already exist.
func New(root string) *Store {
	return &Store{root: root}
}

// Stat describes the raw attributes read from the host filesystem. Ino and
// Nlink come straight from the platform's stat structure; the core never
// invents its own inode numbers.
type Stat struct {
	Ino      uint64
	Nlink    uint64
	Size     int64
	Mode     fs.FileMode
	IsDir    bool
	IsSymlnk bool
	Atime    int64 // unix nanos
	Mtime    int64
	Ctime    int64
}

func mapHostError(path string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return rfserr.NotFound(path)
	case errors.Is(err, syscall.ENOTEMPTY):
		return rfserr.NotEmpty(path)
	case errors.Is(err, fs.ErrExist):
		return rfserr.Exists(path)
	case errors.Is(err, syscall.ENOTDIR):
		return rfserr.NotDir(path)
	case errors.Is(err, syscall.EISDIR):
		return rfserr.IsDir(path)
	case errors.Is(err, syscall.EACCES), errors.Is(err, fs.ErrPermission):
		return rfserr.AccessDenied(path)
	default:
		var perr *fs.PathError
		if errors.As(err, &perr) {
			return mapHostError(path, perr.Err)
		}
		return rfserr.IOFailure(path, err)
	}
}

// Mkdir creates a directory at path.
func (s *Store) Mkdir(path string) error {
	if err := os.Mkdir(path, 0o755); err != nil {
		return mapHostError(path, err)
	}
	return nil
}

// Rmdir removes an empty directory at path.
func (s *Store) Rmdir(path string) error {
	if err := os.Remove(path); err != nil {
		return mapHostError(path, err)
	}
	return nil
}

// WriteFileExclusive creates path with O_EXCL semantics, failing with
// EEXIST if it already exists.
func (s *Store) WriteFileExclusive(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return mapHostError(path, err)
	}
	return f.Close()
}

// OpenReadWrite opens an existing file at path for random-access reads and
// writes. Callers must Close the returned handle.
func (s *Store) OpenReadWrite(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, mapHostError(path, err)
	}
	return f, nil
}

// Read reads up to len(buf) bytes from path starting at offset, returning
// the bytes actually read. A read past EOF returns 0 bytes and no error.
func (s *Store) Read(path string, offset int64, buf []byte) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, mapHostError(path, err)
	}
	defer f.Close()

	n, err := f.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, mapHostError(path, err)
	}
	return n, nil
}

// Write writes data to path at offset. Writing past the current end of
// file extends it, filling the gap with zero bytes, per host semantics.
func (s *Store) Write(path string, offset int64, data []byte) (int, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return 0, mapHostError(path, err)
	}
	defer f.Close()

	n, err := f.WriteAt(data, offset)
	if err != nil {
		return n, mapHostError(path, err)
	}
	return n, nil
}

// Truncate sets the size of the file at path.
func (s *Store) Truncate(path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		return mapHostError(path, err)
	}
	return nil
}

// Rename moves oldPath to newPath.
func (s *Store) Rename(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return mapHostError(newPath, err)
	}
	return nil
}

// Unlink removes the directory entry at path.
func (s *Store) Unlink(path string) error {
	if err := os.Remove(path); err != nil {
		return mapHostError(path, err)
	}
	return nil
}

// Symlink creates a symbolic link at linkPath pointing at target. target
// is stored opaquely; it is never validated against the backing root.
func (s *Store) Symlink(target, linkPath string) error {
	if err := os.Symlink(target, linkPath); err != nil {
		return mapHostError(linkPath, err)
	}
	return nil
}

// Link creates a hard link at linkPath pointing at the same inode as
// target.
func (s *Store) Link(target, linkPath string) error {
	if err := os.Link(target, linkPath); err != nil {
		return mapHostError(linkPath, err)
	}
	return nil
}

// Readlink returns the target of the symbolic link at path.
func (s *Store) Readlink(path string) (string, error) {
	target, err := os.Readlink(path)
	if err != nil {
		return "", mapHostError(path, err)
	}
	return target, nil
}

// Readdir returns the names of the entries directly under path, in
// directory order.
func (s *Store) Readdir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, mapHostError(path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Lstat stats path without following a trailing symlink, extracting the
// raw 64-bit inode and link count the host filesystem assigned it. Every
// lstat result used anywhere in the core comes from this method.
func (s *Store) Lstat(path string) (*Stat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, mapHostError(path, err)
	}

	sysStat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return nil, rfserr.IOFailure(path, errors.New("host does not expose raw inode stat"))
	}

	return &Stat{
		Ino:      sysStat.Ino,
		Nlink:    uint64(sysStat.Nlink),
		Size:     info.Size(),
		Mode:     info.Mode(),
		IsDir:    info.IsDir(),
		IsSymlnk: info.Mode()&os.ModeSymlink != 0,
		Atime:    sysStat.Atim.Nano(),
		Mtime:    sysStat.Mtim.Nano(),
		Ctime:    sysStat.Ctim.Nano(),
	}, nil
}

// Root returns the fixed filesystem root this store is rooted at.
func (s *Store) Root() string {
	return s.root
}

// FreeSpace reports total and available bytes on the filesystem hosting
// the root, for the free-space endpoint.
func (s *Store) FreeSpace() (total, available uint64, err error) {
	var statfs unix.Statfs_t
	if err := unix.Statfs(s.root, &statfs); err != nil {
		return 0, 0, rfserr.IOFailure(s.root, err)
	}
	total = uint64(statfs.Blocks) * uint64(statfs.Bsize)
	available = uint64(statfs.Bavail) * uint64(statfs.Bsize)
	return total, available, nil
}
