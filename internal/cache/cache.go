// Package cache stores lookup answers in memory and, optionally, on disk
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// keyPrefix is bumped whenever the stored value layout changes
const keyPrefix = "chartcode:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key for a lookup of term in the named code system.
// Terms are compared case-insensitively with surrounding space ignored
func Key(system, term string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(term), " "))
	hash := sha256.Sum256([]byte(normalized))
	return keyPrefix + system + ":" + hex.EncodeToString(hash[:])
}
