package core

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint is the lowercase hex SHA-256 digest of a file's raw bytes.
// It is the global dedup key for uploads.
type Fingerprint string

// ComputeFingerprint hashes the exact byte sequence. Filename and content
// type never contribute, so identical bytes always collide.
func ComputeFingerprint(data []byte) Fingerprint {
	sum := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// String returns the hex digest.
func (f Fingerprint) String() string {
	return string(f)
}
