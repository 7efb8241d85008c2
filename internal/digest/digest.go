// Package digest derives the storage-safe form of an issued key.
//
// Only the HMAC-SHA256 digest of a key is ever persisted. A key presented
// later can be checked with Match without the plaintext having been stored.
package digest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes keyed digests with a process-wide salt.
type Hasher struct {
	salt []byte
}

// NewHasher creates a Hasher keyed by salt.
func NewHasher(salt string) *Hasher {
	return &Hasher{salt: []byte(salt)}
}

// Digest returns the lowercase hex HMAC-SHA256 of credential.
func (h *Hasher) Digest(credential string) string {
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(credential)) //nolint:errcheck
	return hex.EncodeToString(mac.Sum(nil))
}

// Match reports whether credential hashes to digest.
func (h *Hasher) Match(credential, digest string) bool {
	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.salt)
	mac.Write([]byte(credential)) //nolint:errcheck
	return hmac.Equal(mac.Sum(nil), want)
}

// String keeps the salt out of logs and formatted output.
func (h *Hasher) String() string {
	return "digest.Hasher{salt: [REDACTED]}"
}
