// Package entry assembles the entry descriptor JSON shape returned by
// every lookup/readdir/getattr/setattr/mkdir/create response.
package entry

import (
	"strconv"

	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/domain"
)

// Descriptor is the wire shape of a filesystem entry.
type Descriptor struct {
	Ino         string `json:"ino"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        int    `json:"type"`
	Permissions int    `json:"permissions"`
	Owner       uint32 `json:"owner"`
	Group       *uint32 `json:"group"`
	Size        string `json:"size"`
	Atime       int64  `json:"atime"`
	Mtime       int64  `json:"mtime"`
	Ctime       int64  `json:"ctime"`
	Btime       int64  `json:"btime"`
	Nlinks      int    `json:"nlinks"`
}

func msSinceEpoch(nanos int64) int64 {
	return nanos / int64(1_000_000)
}

// Assemble builds the wire descriptor from a File row, its canonical
// path, and a fresh host stat.
func Assemble(file *domain.File, canonicalPath string, name string, st *backingstore.Stat) *Descriptor {
	mtime := msSinceEpoch(st.Mtime)
	return &Descriptor{
		Ino:         strconv.FormatUint(file.Ino, 10),
		Name:        name,
		Path:        canonicalPath,
		Type:        int(file.Type),
		Permissions: int(file.Permissions),
		Owner:       file.OwnerUID,
		Group:       file.GroupGID,
		Size:        strconv.FormatInt(st.Size, 10),
		Atime:       msSinceEpoch(st.Atime),
		Mtime:       mtime,
		// Ctime doubles as the creation time (btime) since the host
		// filesystem this backing store wraps does not expose a
		// separate birth time on every platform.
		Ctime:  msSinceEpoch(st.Ctime),
		Btime:  msSinceEpoch(st.Ctime),
		Nlinks: int(st.Nlink),
	}
}
