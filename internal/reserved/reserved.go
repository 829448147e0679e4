// Package reserved implements the two reserved regular files,
// /create-user.txt and /create-group.txt, through which the
// authentication collaborator is driven from ordinary file writes.
//
// When a write to either file completes, its content is parsed as two
// whitespace-separated fields (an integer uid and a password token, or an
// integer uid and an integer gid), the
// corresponding authbridge operation is invoked in-process, and the file
// is overwritten with a human-readable success or failure string. Calling
// authbridge directly in-process replaces the fragile self-HTTP round
// trip the side channel used to require.
package reserved

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openrfs/rfsd/internal/authbridge"
)

const (
	// CreateUserPath is the reserved path that triggers SignupUser.
	CreateUserPath = "/create-user.txt"
	// CreateGroupPath is the reserved path that triggers AssociateGroup.
	CreateGroupPath = "/create-group.txt"
)

// IsReserved reports whether canonicalPath names one of the reserved
// files.
func IsReserved(canonicalPath string) bool {
	return canonicalPath == CreateUserPath || canonicalPath == CreateGroupPath
}

// Handler drives the authentication collaborator from reserved-file
// writes.
type Handler struct {
	bridge *authbridge.Bridge
}

// New constructs a Handler over bridge.
func New(bridge *authbridge.Bridge) *Handler {
	return &Handler{bridge: bridge}
}

// Handle processes a completed write to canonicalPath and returns the
// human-readable result string to overwrite the reserved file with. It
// is the caller's responsibility to perform that overwrite through the
// normal write path.
func (h *Handler) Handle(canonicalPath string, content []byte) (string, error) {
	fields := strings.Fields(string(content))
	if len(fields) != 2 {
		return fmt.Sprintf("failure: expected two whitespace-separated integers, got %q", string(content)), nil
	}

	first, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return fmt.Sprintf("failure: invalid uid %q", fields[0]), nil
	}

	switch canonicalPath {
	case CreateUserPath:
		if err := h.bridge.SignupUser(uint32(first), fields[1]); err != nil {
			return fmt.Sprintf("failure: %s", err), nil
		}
		return "success: user created", nil
	case CreateGroupPath:
		second, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return fmt.Sprintf("failure: invalid second field %q", fields[1]), nil
		}
		if err := h.bridge.AssociateGroup(uint32(first), uint32(second)); err != nil {
			return fmt.Sprintf("failure: %s", err), nil
		}
		return "success: group associated", nil
	default:
		return "", fmt.Errorf("reserved: not a reserved path: %s", canonicalPath)
	}
}
