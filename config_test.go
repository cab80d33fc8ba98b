package fabric

import (
	"testing"
	"time"
)

func TestWithCacheDir_RejectsEmpty(t *testing.T) {
	cfg := defaultConfig()
	if err := WithCacheDir("")(cfg); err == nil {
		t.Error("expected error for empty cache dir")
	}
	if err := WithCacheDir("/tmp/corpus-cache")(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.CacheDir != "/tmp/corpus-cache" {
		t.Errorf("expected CacheDir set, got %q", cfg.CacheDir)
	}
}

func TestWithCancelBudget_RejectsNegative(t *testing.T) {
	cfg := defaultConfig()
	if err := WithCancelBudget(-time.Second)(cfg); err == nil {
		t.Error("expected error for negative cancel budget")
	}
	if err := WithCancelBudget(5 * time.Second)(cfg); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if cfg.CancelBudget != 5*time.Second {
		t.Errorf("expected CancelBudget=5s, got %v", cfg.CancelBudget)
	}
}

func TestWithResultCache_RejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name     string
		capacity int64
		ttl      time.Duration
		wantErr  bool
	}{
		{"zero capacity", 0, time.Minute, true},
		{"negative capacity", -1, time.Minute, true},
		{"zero ttl", 1024, 0, true},
		{"valid", 1024, time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			err := WithResultCache(tc.capacity, tc.ttl)(cfg)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestApplyEnv_ReadsEmbeddingCacheToggle(t *testing.T) {
	t.Setenv("CF_EMBEDDING_CACHE", "on")
	t.Setenv("CF_CACHE_DIR", "")
	cfg := defaultConfig()
	applyEnv(cfg)
	if !cfg.EmbeddingCache {
		t.Error("expected CF_EMBEDDING_CACHE=on to enable EmbeddingCache")
	}

	t.Setenv("CF_EMBEDDING_CACHE", "off")
	cfg2 := defaultConfig()
	applyEnv(cfg2)
	if cfg2.EmbeddingCache {
		t.Error("expected CF_EMBEDDING_CACHE=off to leave EmbeddingCache false")
	}
}

func TestOptions_OverrideEnvironment(t *testing.T) {
	t.Setenv("CF_EMBEDDING_CACHE", "on")
	cfg := defaultConfig()
	applyEnv(cfg)
	if err := WithEmbeddingCache(false)(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.EmbeddingCache {
		t.Error("expected explicit WithEmbeddingCache(false) to override the environment")
	}
}
