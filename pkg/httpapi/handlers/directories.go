package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/openrfs/rfsd/internal/attrops"
	"github.com/openrfs/rfsd/internal/fileops"
	"github.com/openrfs/rfsd/internal/rfserr"
	httpmw "github.com/openrfs/rfsd/pkg/httpapi/middleware"
)

// Directories handles the /api/directories/... routes: readdir, lookup,
// mkdir, rmdir, create, unlink, and rename.
type Directories struct {
	attr  *attrops.Ops
	files *fileops.Ops
}

// NewDirectories constructs a Directories handler set.
func NewDirectories(attr *attrops.Ops, files *fileops.Ops) *Directories {
	return &Directories{attr: attr, files: files}
}

// Entries handles GET /api/directories/{ino}/entries.
func (h *Directories) Entries(w http.ResponseWriter, r *http.Request) {
	ino, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	entries, err := h.attr.Readdir(ino, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Lookup handles GET /api/directories/{parentIno}/entries/lookup?name=NAME.
func (h *Directories) Lookup(w http.ResponseWriter, r *http.Request) {
	parentIno, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	name := r.URL.Query().Get("name")
	desc, err := h.attr.Lookup(parentIno, name, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// Mkdir handles POST /api/directories/{parentIno}/dirs/{name}.
func (h *Directories) Mkdir(w http.ResponseWriter, r *http.Request) {
	parentIno, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	desc, err := h.files.Mkdir(parentIno, name, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, desc)
}

// Rmdir handles DELETE /api/directories/{parentIno}/dirs/{name}.
func (h *Directories) Rmdir(w http.ResponseWriter, r *http.Request) {
	parentIno, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.files.Rmdir(parentIno, name, httpmw.UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// Create handles POST /api/directories/{parentIno}/files/{name}.
func (h *Directories) Create(w http.ResponseWriter, r *http.Request) {
	parentIno, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	desc, err := h.files.Create(parentIno, name, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, desc)
}

// Unlink handles DELETE /api/directories/{parentIno}/files/{name}.
func (h *Directories) Unlink(w http.ResponseWriter, r *http.Request) {
	parentIno, err := parseIno(r, "parentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	name := chi.URLParam(r, "name")
	if err := h.files.Unlink(parentIno, name, httpmw.UserFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// renameRequest is the body of PATCH /api/directories/{oldParentIno}/entries/{oldName}.
type renameRequest struct {
	NewParentIno uint64 `json:"newParentIno"`
	NewName      string `json:"newName"`
}

// Rename handles PATCH /api/directories/{oldParentIno}/entries/{oldName}.
func (h *Directories) Rename(w http.ResponseWriter, r *http.Request) {
	oldParentIno, err := parseIno(r, "oldParentIno")
	if err != nil {
		writeError(w, err)
		return
	}
	oldName := chi.URLParam(r, "oldName")

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, rfserr.Invalid("malformed rename body"))
		return
	}

	desc, err := h.files.Rename(oldParentIno, oldName, req.NewParentIno, req.NewName, httpmw.UserFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}
