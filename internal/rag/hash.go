package rag

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the lowercase hex SHA-256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
