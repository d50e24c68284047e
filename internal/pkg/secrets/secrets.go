package secrets

import (
	"crypto/rand"
	"encoding/hex"
)

const prefix = "whsec_"

// Generate returns a fresh webhook signing secret: 32 random bytes,
// hex-encoded, with a recognizable prefix.
func Generate() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(buf), nil
}

// Redact returns the display form of a secret: the prefix plus the first
// eight hex characters. The full secret is only ever shown at creation and
// rotation time.
func Redact(secret string) string {
	visible := len(prefix) + 8
	if len(secret) <= visible {
		return secret
	}
	return secret[:visible] + "..."
}
