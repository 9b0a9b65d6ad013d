// Package cache defines the key/value cache interface and the Adapter that
// applies AERIS's per-key-family TTLs on top of a backing store.
package cache

import "time"

type Interface interface {
	MGet(keys []string) (map[string][]byte, error)
	Set(key string, val []byte, ttl time.Duration) error
	Del(keys ...string) error
}
