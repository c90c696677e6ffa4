// Package pathutil maps API paths to the stored form used throughout the
// Contents and Checkpoint managers, and enforces the hidden-name policy
// (spec §4.1). Escape-from-root rejection itself is not implemented here:
// it is guaranteed by opening the configured root once with os.OpenRoot and
// routing every filesystem call through that handle (grounded on
// timeship/internal/storage/local.Storage.urlToRelPath).
package pathutil

import (
	"path"
	"strings"
)

// Clean normalizes an API path into its stored form: surrounding spaces
// trimmed, "/"-separated, no leading or trailing slash, "." segments and
// inner ".." segments resolved away. Leading ".." segments that would climb
// above the root are kept; the os.Root handle rejects them on use.
// An empty result denotes the root directory.
func Clean(apiPath string) string {
	p := strings.TrimSpace(apiPath)
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == "/" {
		return ""
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	return cleaned
}

// Split returns the parent directory and base name of an API path.
// Split("foo/bar/baz.ipynb") -> ("foo/bar", "baz.ipynb").
// Split("baz.ipynb") -> ("", "baz.ipynb").
func Split(apiPath string) (parent, name string) {
	cleaned := Clean(apiPath)
	if cleaned == "" {
		return "", ""
	}
	idx := strings.LastIndexByte(cleaned, '/')
	if idx < 0 {
		return "", cleaned
	}
	return cleaned[:idx], cleaned[idx+1:]
}

// Join joins a parent API path and a child name into a stored-form path.
func Join(parent, name string) string {
	parent = Clean(parent)
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// IsHidden reports whether name begins with a dot, per Invariant 4.
// It operates on a single path segment, not a whole path.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Ext returns the extension of name, including the leading dot, or "" if
// there is none. Ext("a.b.ipynb") -> ".ipynb".
func Ext(name string) string {
	return path.Ext(name)
}

// Stem returns name with its extension (as returned by Ext) removed.
func Stem(name string) string {
	ext := Ext(name)
	return strings.TrimSuffix(name, ext)
}
