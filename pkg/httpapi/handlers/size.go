package handlers

import (
	"net/http"

	"github.com/openrfs/rfsd/internal/backingstore"
)

// Size handles GET /api/size, the free-space endpoint.
type Size struct {
	backing *backingstore.Store
}

// NewSize constructs a Size handler.
func NewSize(backing *backingstore.Store) *Size {
	return &Size{backing: backing}
}

// FreeSpace handles GET /api/size.
func (h *Size) FreeSpace(w http.ResponseWriter, r *http.Request) {
	total, available, err := h.backing.FreeSpace()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"total": total, "available": available})
}
