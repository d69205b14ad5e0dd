package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Fingerprint returns the hex SHA-256 digest of data. It depends only on the
// bytes, never on file names or upload times.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintReader digests r without buffering it in memory.
func FingerprintReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
