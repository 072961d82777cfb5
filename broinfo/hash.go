package broinfo

import (
	"crypto/sha256"
	"encoding/base64"
)

// Digest returns the fixed-length lookup key for large dimension values:
// SHA-256 of the input, base64 standard alphabet without padding (43 chars).
// It only accelerates the unique index — uniqueness is always enforced on
// (hash, value), never on the hash alone.
func Digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(sum[:])
}
