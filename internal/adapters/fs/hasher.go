package fs

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/pack/internal/core/ports"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes xxhash digests.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Digest returns the hex xxhash of data.
func (h *Hasher) Digest(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Fingerprint returns the hex xxhash of the parts. Each part is prefixed with
// its length, so ("ab", "c") and ("a", "bc") differ.
func (h *Hasher) Fingerprint(parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = fmt.Fprintf(d, "%d:", len(p))
		_, _ = d.WriteString(p)
	}
	return fmt.Sprintf("%016x", d.Sum64())
}
