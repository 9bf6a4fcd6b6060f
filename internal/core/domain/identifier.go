package domain

import (
	"strings"
	"unique"
)

// Identifier is the canonical identity of a module, usually its absolute path.
// It wraps a unique.Handle[string] so that equal identities compare in O(1)
// and repeated paths across rebuilds share storage.
type Identifier struct {
	h unique.Handle[string]
}

// NewIdentifier creates a new Identifier from a string.
func NewIdentifier(s string) Identifier {
	return Identifier{
		h: unique.Make(s),
	}
}

// String returns the underlying string value.
func (id Identifier) String() string {
	if id.IsZero() {
		return ""
	}
	return id.h.Value()
}

// IsZero reports whether the identifier was never set.
func (id Identifier) IsZero() bool {
	return id == Identifier{}
}

// Compare orders identifiers by their string value.
func (id Identifier) Compare(other Identifier) int {
	return strings.Compare(id.String(), other.String())
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(text []byte) error {
	id.h = unique.Make(string(text))
	return nil
}
