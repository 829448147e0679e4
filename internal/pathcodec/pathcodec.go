// Package pathcodec normalizes client-supplied paths into canonical POSIX
// form and maps them onto the backing filesystem root, keeping all path
// hygiene in one place so nothing downstream has to reason about traversal.
package pathcodec

import (
	"strings"

	"github.com/openrfs/rfsd/internal/rfserr"
)

// Codec converts between client-supplied paths, canonical paths, and host
// filesystem paths rooted at a fixed directory established at startup.
type Codec struct {
	root string
}

// New returns a Codec rooted at root. root must be an absolute host path;
// it is not created or validated here.
func New(root string) *Codec {
	return &Codec{root: strings.TrimRight(root, "/")}
}

// Normalize converts raw, which may be a single string, a sequence of path
// segments, or a path containing backslashes, into a canonical POSIX path
// beginning with "/" and containing no "." or ".." components.
func Normalize(raw string) (string, error) {
	return normalizeSegments(splitRaw(raw))
}

// NormalizeSegments normalizes a pre-split sequence of path segments (as
// might arrive from a JSON array in a request body) into canonical form.
func NormalizeSegments(segments []string) (string, error) {
	return normalizeSegments(segments)
}

func splitRaw(raw string) []string {
	raw = strings.ReplaceAll(raw, "\\", "/")
	return strings.Split(raw, "/")
}

func normalizeSegments(segments []string) (string, error) {
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", rfserr.Invalid("path escapes root")
		default:
			out = append(out, seg)
		}
	}
	canonical := "/" + strings.Join(out, "/")
	if !strings.HasPrefix(canonical, "/") {
		return "", rfserr.Invalid("path escapes root")
	}
	return canonical, nil
}

// ToFsPath appends canonical to the fixed filesystem root.
func (c *Codec) ToFsPath(canonical string) string {
	if canonical == "/" {
		return c.root
	}
	return c.root + canonical
}

// ChildPathOf returns parent+"/"+name, or "/"+name when parent is root.
// name must be a single non-empty segment containing no "/" and not equal
// to "." or "..".
func ChildPathOf(parent, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return "", rfserr.Invalid("invalid name: " + name)
	}
	if parent == "/" {
		return "/" + name, nil
	}
	return parent + "/" + name, nil
}

// Basename returns the final segment of canonical.
func Basename(canonical string) string {
	if canonical == "/" {
		return "/"
	}
	idx := strings.LastIndex(canonical, "/")
	return canonical[idx+1:]
}
