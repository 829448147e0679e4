// Package ioops implements read and write with explicit byte offsets and
// length caps, plus streaming variants that loop over the same primitive.
package ioops

import (
	"io"
	"time"

	"github.com/openrfs/rfsd/internal/backingstore"
	"github.com/openrfs/rfsd/internal/bytesize"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/metastore"
	"github.com/openrfs/rfsd/internal/metrics"
	"github.com/openrfs/rfsd/internal/pathcodec"
	"github.com/openrfs/rfsd/internal/permission"
	"github.com/openrfs/rfsd/internal/rfserr"
)

// MaxReadSize is the largest number of bytes a single Read call returns.
const MaxReadSize = bytesize.MiB

// MaxWriteSize is the largest request body a single Write call accepts.
const MaxWriteSize = bytesize.GiB

// streamChunkSize is the buffer size used by the streaming variants.
const streamChunkSize = 256 * bytesize.KiB

// Ops bundles the collaborators IOOps needs.
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

// SetMetrics attaches m so Read/Write record op latency and byte counts.
func (o *Ops) SetMetrics(m *metrics.Metrics) *Ops {
	o.metrics = m
	return o
}

func (o *Ops) resolveRegular(ino uint64, op domain.Op, caller *domain.User) (string, error) {
	file, err := o.meta.FindFileByIno(ino)
	if err != nil {
		return "", err
	}
	if file.Type == domain.TypeDirectory {
		return "", rfserr.IsDir("")
	}
	if !permission.Allowed(file, op, caller) {
		return "", rfserr.AccessDenied("")
	}
	paths, err := o.meta.FindPathsOfFile(ino)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", rfserr.Mismatch("", "file row has no path rows")
	}
	return o.codec.ToFsPath(paths[0].CanonicalPath), nil
}

// Read returns up to size bytes from ino starting at offset, capped at
// MaxReadSize.
func (o *Ops) Read(ino uint64, offset int64, size int64, caller *domain.User) (data []byte, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("read", start, err) }(time.Now())

	fsPath, err := o.resolveRegular(ino, domain.OpRead, caller)
	if err != nil {
		return nil, err
	}
	if size > int64(MaxReadSize) {
		size = int64(MaxReadSize)
	}
	if size < 0 {
		return nil, rfserr.Invalid("negative read size")
	}
	buf := make([]byte, size)
	n, err := o.backing.Read(fsPath, offset, buf)
	if err != nil {
		return nil, err
	}
	o.metrics.AddBytesRead(n)
	return buf[:n], nil
}

// Write writes data to ino at offset, rejecting bodies larger than
// MaxWriteSize, and returns the number of bytes written.
func (o *Ops) Write(ino uint64, offset int64, data []byte, caller *domain.User) (n int, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("write", start, err) }(time.Now())

	if int64(len(data)) > int64(MaxWriteSize) {
		return 0, rfserr.Invalid("write body exceeds maximum size")
	}
	fsPath, err := o.resolveRegular(ino, domain.OpWrite, caller)
	if err != nil {
		return 0, err
	}
	n, err = o.backing.Write(fsPath, offset, data)
	if err == nil {
		o.metrics.AddBytesWritten(n)
	}
	return n, err
}

// ReadStream copies the full contents of ino, starting at offset, to w in
// bounded chunks.
func (o *Ops) ReadStream(ino uint64, offset int64, w io.Writer, caller *domain.User) (total int64, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("readStream", start, err) }(time.Now())

	fsPath, err := o.resolveRegular(ino, domain.OpRead, caller)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, streamChunkSize)
	for {
		n, err := o.backing.Read(fsPath, offset, buf)
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
		if _, werr := w.Write(buf[:n]); werr != nil {
			return total, rfserr.IOFailure(fsPath, werr)
		}
		o.metrics.AddBytesRead(n)
		total += int64(n)
		offset += int64(n)
	}
}

// WriteStream copies r to ino starting at offset, in bounded chunks,
// enforcing MaxWriteSize across the whole body.
func (o *Ops) WriteStream(ino uint64, offset int64, r io.Reader, caller *domain.User) (total int64, err error) {
	defer func(start time.Time) { o.metrics.ObserveOp("writeStream", start, err) }(time.Now())

	fsPath, err := o.resolveRegular(ino, domain.OpWrite, caller)
	if err != nil {
		return 0, err
	}

	buf := make([]byte, streamChunkSize)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if total+int64(n) > int64(MaxWriteSize) {
				return total, rfserr.Invalid("write body exceeds maximum size")
			}
			written, werr := o.backing.Write(fsPath, offset, buf[:n])
			if werr != nil {
				return total, werr
			}
			o.metrics.AddBytesWritten(written)
			total += int64(written)
			offset += int64(written)
		}
		if rerr == io.EOF {
			return total, nil
		}
		if rerr != nil {
			return total, rfserr.IOFailure(fsPath, rerr)
		}
	}
}
