// Package signer produces and verifies the HMAC tags that make tracking
// identifiers tamper-evident. Every tracking URL carries a tag over a
// canonical string; a request whose tag does not verify is rejected before
// any storage access.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes keyed SHA-256 tags over canonical strings. The key is
// process-wide configuration, read once at startup; rotating it invalidates
// every tracking link already embedded in sent mail.
type Signer struct {
	key []byte
}

// New creates a signer with the given secret key.
func New(secret string) *Signer {
	return &Signer{key: []byte(secret)}
}

// Sign returns the HMAC-SHA256 tag of msg as a 64-character hex string.
// Deterministic: same message and key always yield the same tag.
func (s *Signer) Sign(msg string) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(msg))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether sig is the valid tag for msg. It fails closed:
// empty arguments, non-hex signatures, and wrong-length signatures are all
// false, never an error. The comparison is constant-time.
func (s *Signer) Verify(msg, sig string) bool {
	if msg == "" || sig == "" {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(msg))
	want := h.Sum(nil)
	if len(got) != len(want) {
		return false
	}
	return hmac.Equal(got, want)
}
