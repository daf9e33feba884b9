package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores expensive LLM outputs (query expansions, generated search
// queries) keyed by hashed input so identical questions skip the provider.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key hashes an arbitrary cache input into a stable, filesystem-safe key.
// The version prefix lets a format change invalidate old entries wholesale.
func Key(input string) string {
	hash := sha256.Sum256([]byte(input))
	return "medtrust:v1:" + hex.EncodeToString(hash[:])
}
