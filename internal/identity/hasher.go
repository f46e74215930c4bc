// Package identity derives the privacy-preserving voter keys used by the
// vote ledger.
//
// A Hasher turns a network address into a keyed HMAC-SHA256 digest so raw
// addresses never reach storage. The key (Secret) is loaded once at startup
// with LoadSecret and is immutable afterwards, which makes a Hasher safe for
// concurrent use.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes keyed, non-reversible digests of network addresses.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed with s.
func NewHasher(s Secret) *Hasher {
	key := make([]byte, len(s.key))
	copy(key, s.key)
	return &Hasher{key: key}
}

// Hash returns the HMAC-SHA256 of addr as 64 lowercase hex characters.
// Equal inputs under the same secret always produce equal outputs.
func (h *Hasher) Hash(addr string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}
