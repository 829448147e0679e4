package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/openrfs/rfsd/internal/fileops"
	"github.com/openrfs/rfsd/internal/rfserr"
	httpmw "github.com/openrfs/rfsd/pkg/httpapi/middleware"
)

// Links handles /api/links and /api/symlinks: hardlink, symlink, and
// readlink.
type Links struct {
	files *fileops.Ops
}

// NewLinks constructs a Links handler set.
func NewLinks(files *fileops.Ops) *Links {
	return &Links{files: files}
}

type hardlinkRequest struct {
	LinkParentIno uint64 `json:"linkParentIno"`
	LinkName      string `json:"linkName"`
}

// Hardlink handles POST /api/links/{targetIno}.
func (h *Links) Hardlink(w http.ResponseWriter, r *http.Request) {
	targetIno, err := parseIno(r, "targetIno")
	if err != nil {
		writeError(w, err)
		return
	}

	var req hardlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rfserr.Invalid("malformed hardlink body"))
		return
	}

	desc, err := h.files.Hardlink(targetIno, req.LinkParentIno, req.LinkName, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type symlinkRequest struct {
	LinkParentIno uint64 `json:"linkParentIno"`
	LinkName      string `json:"linkName"`
	TargetPath    string `json:"targetPath"`
}

// Symlink handles POST /api/symlinks.
func (h *Links) Symlink(w http.ResponseWriter, r *http.Request) {
	var req symlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rfserr.Invalid("malformed symlink body"))
		return
	}

	desc, err := h.files.Symlink(req.TargetPath, req.LinkParentIno, req.LinkName, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// Readlink handles GET /api/symlinks/{ino}.
func (h *Links) Readlink(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "ino")
	if err != nil {
		writeError(w, err)
		return
	}
	target, err := h.files.Readlink(ino)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"target": target})
}
