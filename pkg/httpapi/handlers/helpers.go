// Package handlers implements the HTTP handlers for the filesystem API,
// translating chi route parameters and JSON/octet-stream bodies into
// calls on the AttrOps, FileOps, and IOOps collaborators.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/openrfs/rfsd/internal/rfserr"
)

func parseIno(r *http.Request, param string) (uint64, error) {
	raw := chi.URLParam(r, param)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, rfserr.Invalid("malformed inode parameter: " + param)
	}
	return n, nil
}

func parseQueryInt64(r *http.Request, name string, fallback int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, rfserr.Invalid("malformed query parameter: " + name)
	}
	return n, nil
}
