package cache

import (
	"strconv"
	"time"
)

// Cache stores serialized tree and layout views with a TTL.
type Cache interface {
	// Get returns the value and true if found and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. A ttl of 0 means the cache default.
	Set(key string, value []byte, ttl time.Duration)

	Delete(key string)

	// Clear removes everything.
	Clear()

	Stats() Stats
}

// Stats represents cache statistics.
type Stats struct {
	Hits      uint64
	Misses    uint64
	KeysAdded uint64
	Evictions uint64
	Size      int64 // Approximate size in bytes
	Items     int64
}

// Key builds the cache key of a view of the layout at a given mutation
// version. Every mutation bumps the version, so stale views are never
// read back and simply age out.
func Key(view string, version uint64) string {
	return view + "@" + strconv.FormatUint(version, 10)
}
