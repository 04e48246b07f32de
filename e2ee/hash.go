package e2ee

import (
	"crypto/sha256"
	"encoding/hex"
)

// CreateHash returns the SHA-256 hex digest of data.
func CreateHash(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// VerifyHash reports whether data hashes to the expected digest.
func VerifyHash(data string, hash string) bool {
	return CreateHash(data) == hash
}

// SecureCompare compares two strings by accumulating the XOR of every byte
// pair. Known limitation: the length-mismatch short-circuit means the
// comparison is not constant-time across inputs of differing length.
func SecureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	var result byte
	for i := 0; i < len(a); i++ {
		result |= a[i] ^ b[i]
	}
	return result == 0
}
