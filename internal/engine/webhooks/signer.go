package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes a lowercase hex HMAC-SHA256 over the exact wire bytes of a
// payload. Receivers must verify against the raw request body, not a
// re-serialized equivalent.
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify recomputes the signature and compares in constant time.
func Verify(secret string, payload []byte, signatureHex string) bool {
	expected, err := hex.DecodeString(signatureHex)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hmac.Equal(h.Sum(nil), expected)
}
