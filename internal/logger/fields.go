package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging across the filesystem core.
// Use these keys consistently so log lines can be filtered/aggregated.
const (
	KeyRequestID = "request_id"
	KeyOp        = "op" // operation name: lookup, mkdir, rename, read, write, ...
	KeyIno       = "ino"
	KeyPath      = "path"
	KeyOldPath   = "old_path"
	KeyNewPath   = "new_path"
	KeyName      = "name"
	KeyType      = "type"
	KeyMode      = "mode"
	KeyUID       = "uid"
	KeyGID       = "gid"
	KeyOffset    = "offset"
	KeySize      = "size"
	KeyBytes     = "bytes"
	KeyMethod    = "method"
	KeyStatus    = "status"
	KeyDuration  = "duration"
	KeyRemoteIP  = "remote_addr"
	KeyError     = "error"
	KeyErrorCode = "error_code"
)

// Op returns a slog.Attr for the operation name.
func Op(name string) slog.Attr { return slog.String(KeyOp, name) }

// Ino returns a slog.Attr for an inode number.
func Ino(ino uint64) slog.Attr { return slog.String(KeyIno, fmt.Sprintf("%d", ino)) }

// Path returns a slog.Attr for a canonical path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// Name returns a slog.Attr for a directory entry name.
func Name(n string) slog.Attr { return slog.String(KeyName, n) }

// UID returns a slog.Attr for a user id.
func UID(uid uint32) slog.Attr { return slog.Uint64(KeyUID, uint64(uid)) }

// GID returns a slog.Attr for a group id.
func GID(gid uint32) slog.Attr { return slog.Uint64(KeyGID, uint64(gid)) }

// Offset returns a slog.Attr for a byte offset.
func Offset(off int64) slog.Attr { return slog.Int64(KeyOffset, off) }

// Bytes returns a slog.Attr for a byte count.
func Bytes(n int) slog.Attr { return slog.Int(KeyBytes, n) }

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
