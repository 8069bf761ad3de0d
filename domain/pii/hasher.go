package pii

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DigestLen is the length in hex characters of every digest the hasher emits.
const DigestLen = 64

// SentinelDigest is the reserved digest for null/empty input. It is not a
// possible SHA-256 output of any salted value except by collision.
const SentinelDigest = "0000000000000000000000000000000000000000000000000000000000000000"

// Hasher anonymizes sensitive values with salted SHA-256. The same value and
// salt always produce the same digest, so hashed columns stay joinable while
// the raw value is unrecoverable.
type Hasher struct {
	salt string
}

// NewHasher creates a hasher bound to a fixed salt. The salt must stay
// constant across runs for digests to remain comparable.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the hex digest of salt+value. Null/empty input (after
// trimming) maps to SentinelDigest.
func (h *Hasher) Hash(value string) string {
	if strings.TrimSpace(value) == "" {
		return SentinelDigest
	}
	sum := sha256.Sum256([]byte(h.salt + value))
	return hex.EncodeToString(sum[:])
}

// HashPreserving hashes value unless it is already a digest. This makes the
// cleaning stage a fixed point: re-cleaning hashed output does not double-hash.
func (h *Hasher) HashPreserving(value string) string {
	if IsDigest(value) {
		return value
	}
	return h.Hash(value)
}

// IsDigest reports whether s has the shape of a digest emitted by Hash.
func IsDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
