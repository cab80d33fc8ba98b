package fabric

import (
	"fmt"
	"os"
	"time"
)

// Config is Context-Fabric's immutable, process-wide configuration,
// read once at Open from environment variables plus functional
// Options, then threaded into the components that use it (the result
// cache and the per-Search wall-clock budget) — the teacher's
// Config (libravdb/database.go) is mutated only at construction time
// the same way.
type Config struct {
	// EmbeddingCache mirrors CF_EMBEDDING_CACHE=on|off. Open only logs
	// that the preload was requested; the flag copies nothing. The
	// levUp/levDown CSRs, like every store array, are decoded into heap
	// memory at Open whether the flag is on or off.
	EmbeddingCache bool

	// CacheDir overrides the per-user corpus cache directory
	// (CF_CACHE_DIR); empty means "caller-provided path only, no
	// implicit cache directory resolution."
	CacheDir string

	// CancelBudget is the default per-call wall-clock budget applied
	// to a Search when the caller doesn't pass its own context
	// deadline (spec.md §5's "query API accepts a per-call wall-clock
	// budget"). Zero means no default budget.
	CancelBudget time.Duration

	// ResultCacheCapacity bounds the §4.6 result cache in bytes.
	ResultCacheCapacity int64
	// ResultCacheTTL bounds how long a cached handle stays valid.
	ResultCacheTTL time.Duration

	// MetricsEnabled toggles Prometheus metric registration
	// (internal/obs.NewMetrics), following the teacher's
	// Config.MetricsEnabled/WithMetrics.
	MetricsEnabled bool
}

// Option configures a Config, matching the teacher's
// Option func(*Config) error pattern (libravdb/options.go): each
// option validates its own input and returns an error immediately
// rather than leaving the Config half-applied.
type Option func(*Config) error

func defaultConfig() *Config {
	return &Config{
		EmbeddingCache:      false,
		CacheDir:            "",
		CancelBudget:        0,
		ResultCacheCapacity: 256 << 20, // 256 MiB, matching the teacher's default LRU scale
		ResultCacheTTL:      5 * time.Minute,
		MetricsEnabled:      true,
	}
}

// applyEnv seeds a Config from CF_EMBEDDING_CACHE and CF_CACHE_DIR
// (spec.md §6's Configuration section), before Options are applied so
// explicit Option calls always win over the environment.
func applyEnv(c *Config) {
	switch os.Getenv("CF_EMBEDDING_CACHE") {
	case "on":
		c.EmbeddingCache = true
	case "off":
		c.EmbeddingCache = false
	}
	if dir := os.Getenv("CF_CACHE_DIR"); dir != "" {
		c.CacheDir = dir
	}
}

// WithEmbeddingCache overrides CF_EMBEDDING_CACHE's effect explicitly.
func WithEmbeddingCache(enabled bool) Option {
	return func(c *Config) error {
		c.EmbeddingCache = enabled
		return nil
	}
}

// WithCacheDir overrides CF_CACHE_DIR's effect explicitly.
func WithCacheDir(path string) Option {
	return func(c *Config) error {
		if path == "" {
			return fmt.Errorf("cache dir cannot be empty")
		}
		c.CacheDir = path
		return nil
	}
}

// WithCancelBudget sets the default per-query wall-clock budget.
func WithCancelBudget(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("cancel budget cannot be negative")
		}
		c.CancelBudget = d
		return nil
	}
}

// WithResultCache sets the §4.6 result cache's byte capacity and TTL.
func WithResultCache(capacityBytes int64, ttl time.Duration) Option {
	return func(c *Config) error {
		if capacityBytes <= 0 {
			return fmt.Errorf("result cache capacity must be positive")
		}
		if ttl <= 0 {
			return fmt.Errorf("result cache TTL must be positive")
		}
		c.ResultCacheCapacity = capacityBytes
		c.ResultCacheTTL = ttl
		return nil
	}
}

// WithMetrics enables or disables Prometheus metric registration.
func WithMetrics(enabled bool) Option {
	return func(c *Config) error {
		c.MetricsEnabled = enabled
		return nil
	}
}
