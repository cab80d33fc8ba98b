package cache

import (
	"testing"
	"time"
)

func TestCache_PutGet(t *testing.T) {
	c := New(1<<20, time.Minute)
	key := Key("corpus1", "word lex=foo")
	h := c.Put(key, [][]int32{{1, 2}, {3, 4}})

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != h {
		t.Error("expected same handle back")
	}
	if c.Stats().Hits != 1 {
		t.Errorf("expected 1 hit, got %d", c.Stats().Hits)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New(1<<20, time.Minute)
	if _, ok := c.Get("nonexistent"); ok {
		t.Error("expected miss on unknown key")
	}
	if c.Stats().Misses != 1 {
		t.Errorf("expected 1 miss, got %d", c.Stats().Misses)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(1<<20, time.Millisecond)
	key := Key("corpus1", "word lex=foo")
	c.Put(key, [][]int32{{1}})

	time.Sleep(5 * time.Millisecond)

	if _, ok := c.Get(key); ok {
		t.Error("expected expired entry to miss")
	}
}

func TestCache_EvictsUnderCapacityPressure(t *testing.T) {
	// Capacity fits exactly one 2-tuple row (8 bytes).
	c := New(8, time.Minute)
	c.Put(Key("c", "t1"), [][]int32{{1, 2}})
	c.Put(Key("c", "t2"), [][]int32{{3, 4}})

	if _, ok := c.Get(Key("c", "t1")); ok {
		t.Error("expected t1 to be evicted once t2 exceeded capacity")
	}
	if _, ok := c.Get(Key("c", "t2")); !ok {
		t.Error("expected t2 to remain cached")
	}
}

func TestHandle_Cursor(t *testing.T) {
	h := &Handle{Tuples: [][]int32{{1}, {2}, {3}, {4}, {5}}, Expires: time.Now().Add(time.Minute)}

	p := h.Cursor(0, 2)
	if len(p.Slice) != 2 || !p.HasMore {
		t.Errorf("expected 2 rows with more, got %v hasMore=%v", p.Slice, p.HasMore)
	}

	p2 := h.Cursor(2, 2)
	if len(p2.Slice) != 2 || !p2.HasMore {
		t.Errorf("expected 2 rows with more, got %v hasMore=%v", p2.Slice, p2.HasMore)
	}

	p3 := h.Cursor(4, 2)
	if len(p3.Slice) != 1 || p3.HasMore {
		t.Errorf("expected final row with no more, got %v hasMore=%v", p3.Slice, p3.HasMore)
	}

	p4 := h.Cursor(10, 2)
	if p4.Slice != nil || p4.HasMore {
		t.Errorf("expected empty page for out-of-range offset, got %v", p4)
	}
}
