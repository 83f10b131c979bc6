package config

import (
	"os"
	"time"
)

// CacheConfig configures the Redis response cache used for snapshot
// reads.  Snapshots never change once written, so a long TTL is safe; the
// live plan document is never cached.
type CacheConfig struct {
	Enabled      bool
	TTL          time.Duration
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		TTL:          envDur("CACHE_TTL", 10*time.Minute),
		Prefix:       envStr("CACHE_PREFIX", "plan-cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
