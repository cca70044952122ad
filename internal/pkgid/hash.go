package pkgid

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashBytes is the single sha256-hex helper shared by every content-id
// computation in the package subsystem (source hashes, evaluated digests,
// artifact keys), so they all use the same algorithm.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
