// Package pkgid provides a normalized package-identity type used as map
// keys across the watcher (parked set, last-seen-in-feed map). It
// consolidates Unicode case-folding so that two spellings of the same
// scoped package name (npm scope segments are case-insensitive at the
// registry boundary even though package bodies are not) compare equal.
//
// This is a leaf package with no dependency on the watch, registry, or
// searchindex packages.
package pkgid

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/width"
)

var folder = cases.Fold()

// ID is a normalized package identifier. The zero value represents the
// empty id.
type ID struct {
	raw    string
	folded string
}

// New normalizes a raw package id from the change feed or index. Full-width
// Unicode forms are narrowed before case folding so identifiers that are
// visually identical but encoded differently still compare equal.
func New(raw string) ID {
	if raw == "" {
		return ID{}
	}

	narrow := width.Narrow.String(raw)

	return ID{raw: raw, folded: folder.String(narrow)}
}

// String returns the original, un-normalized identifier — the form that
// must be sent back to the registry and search index APIs.
func (id ID) String() string {
	return id.raw
}

// IsEmpty reports whether this is the zero id (heartbeat).
func (id ID) IsEmpty() bool {
	return id.raw == ""
}

// Equal reports whether two ids refer to the same package under
// case/width-insensitive comparison.
func (id ID) Equal(other ID) bool {
	return id.folded == other.folded
}

// Key returns a comparable value suitable for use as a map key. Go map
// keys require comparability; ID already is comparable (two plain
// strings), but Key documents the intent at call sites.
func (id ID) Key() string {
	return id.folded
}
