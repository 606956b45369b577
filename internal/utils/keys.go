package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// GenerateDeviceKey derives the opaque per-device credential: the android id
// mixed with a fresh 128-bit secret, run through SHA-256. The result is a
// fixed-length hex token unlinkable to its inputs.
func GenerateDeviceKey(androidID string) (string, error) {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(androidID + hex.EncodeToString(secret)))
	return hex.EncodeToString(sum[:]), nil
}

// GenerateSecureToken creates a cryptographically secure random token.
func GenerateSecureToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// MaskKey keeps a short prefix of a credential for display.
func MaskKey(key string) string {
	if len(key) <= 10 {
		return key
	}
	return key[:10] + "..."
}
