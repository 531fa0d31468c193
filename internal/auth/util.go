package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const DefaultRefreshTokenBytes = 64

// GenerateRawToken returns nBytes of crypto/rand output, hex encoded.
func GenerateRawToken(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = DefaultRefreshTokenBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken is the storage key of a raw refresh token.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
