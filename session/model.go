package session

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Record is the stored form of a user's refresh credential.
type Record struct {
	UserID    string
	ValueHash string
	ExpiresAt time.Time
}

// HashValue returns the hex SHA-256 digest stored in place of a refresh value.
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
