package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/openrfs/rfsd/internal/attrops"
	"github.com/openrfs/rfsd/internal/domain"
	"github.com/openrfs/rfsd/internal/ioops"
	"github.com/openrfs/rfsd/internal/reserved"
	"github.com/openrfs/rfsd/internal/rfserr"
	httpmw "github.com/openrfs/rfsd/pkg/httpapi/middleware"
)

// Files handles the /api/files/... routes: read, write, the streaming
// variants, and getattr/setattr on /attributes.
type Files struct {
	attr     *attrops.Ops
	io       *ioops.Ops
	reserved *reserved.Handler
	paths    pathResolver
}

// pathResolver resolves an inode to the canonical path the reserved-file
// side channel checks writes against.
type pathResolver interface {
	CanonicalPathOf(ino uint64) (string, error)
}

// NewFiles constructs a Files handler set. reservedHandler may be nil,
// in which case writes never trigger the side channel.
func NewFiles(attr *attrops.Ops, io_ *ioops.Ops, reservedHandler *reserved.Handler, paths pathResolver) *Files {
	return &Files{attr: attr, io: io_, reserved: reservedHandler, paths: paths}
}

// Read handles GET /api/files/{ino}.
func (h *Files) Read(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseQueryInt64(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	size, err := parseQueryInt64(r, "size", int64(ioops.MaxReadSize))
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := h.io.Read(ino, offset, size, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Write handles PUT /api/files/{ino}.
func (h *Files) Write(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseQueryInt64(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, int64(ioops.MaxWriteSize)+1))
	if err != nil {
		writeError(w, rfserr.IOFailure("", err))
		return
	}

	user := httpmw.UserFromContext(r.Context())
	n, err := h.io.Write(ino, offset, body, user)
	if err != nil {
		writeError(w, err)
		return
	}

	h.maybeHandleReserved(ino, body)
	writeJSON(w, http.StatusOK, map[string]int{"bytes": n})
}

// ReadStream handles GET /api/files/stream/{ino}.
func (h *Files) ReadStream(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseQueryInt64(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	if _, err := h.io.ReadStream(ino, offset, w, httpmw.UserFromContext(r.Context())); err != nil {
		return
	}
}

// WriteStream handles PUT /api/files/stream/{ino}.
func (h *Files) WriteStream(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := parseQueryInt64(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	n, err := h.io.WriteStream(ino, offset, r.Body, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"bytes": n})
}

// Getattr handles GET /api/files/{ino}/attributes.
func (h *Files) Getattr(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}

	var since *int64
	if raw := r.Header.Get("If-Modified-Since-Unix"); raw != "" {
		if v, perr := strconv.ParseInt(raw, 10, 64); perr == nil {
			since = &v
		}
	}

	result, err := h.attr.Getattr(ino, httpmw.UserFromContext(r.Context()), since)
	if err != nil {
		writeError(w, err)
		return
	}
	if result.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, result.Descriptor)
}

// setattrRequest is the body of PATCH /api/files/{ino}/attributes.
type setattrRequest struct {
	Perm *uint16 `json:"perm,omitempty"`
	UID  *uint32 `json:"uid,omitempty"`
	GID  *uint32 `json:"gid,omitempty"`
	Size *int64  `json:"size,omitempty"`
}

// Setattr handles PATCH /api/files/{ino}/attributes.
func (h *Files) Setattr(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}

	var req setattrRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rfserr.Invalid("malformed setattr body"))
		return
	}

	desc, err := h.attr.Setattr(ino, attrops.SetattrRequest{
		Perm: req.Perm, UID: req.UID, GID: req.GID, Size: req.Size,
	}, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// maybeHandleReserved drives the authentication side channel after a
// write to one of the two reserved files completes, overwriting the file
// with the result string.
func (h *Files) maybeHandleReserved(ino uint64, content []byte) {
	if h.reserved == nil || h.paths == nil {
		return
	}
	path, err := h.paths.CanonicalPathOf(ino)
	if err != nil || !reserved.IsReserved(path) {
		return
	}
	result, err := h.reserved.Handle(path, content)
	if err != nil {
		return
	}
	admin := &domain.User{UID: domain.AdminUID}
	empty := int64(0)
	if _, err := h.attr.Setattr(ino, attrops.SetattrRequest{Size: &empty}, admin); err != nil {
		return
	}
	_, _ = h.io.Write(ino, 0, []byte(result), admin)
}
