package ports

// Hasher computes the digests used for fingerprints, ids and content hashes.
//
//go:generate mockgen -source=hasher.go -destination=mocks/mock_hasher.go -package=mocks
type Hasher interface {
	// Digest returns the hex digest of data.
	Digest(data []byte) string
	// Fingerprint returns the hex digest of the parts joined by a separator
	// that cannot appear in any part.
	Fingerprint(parts ...string) string
}
