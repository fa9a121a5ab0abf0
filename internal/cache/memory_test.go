package cache

import (
	"testing"
	"time"
)

func TestMemoryCacheSetGet(t *testing.T) {
	c := NewMemoryCache(time.Hour)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss on empty cache")
	}

	c.Set("key", "value")
	v, ok := c.Get("key")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if v.(string) != "value" {
		t.Errorf("expected value, got %v", v)
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	c := NewMemoryCache(10 * time.Millisecond)
	c.Set("key", "value")

	if _, ok := c.Get("key"); !ok {
		t.Fatal("expected immediate hit")
	}

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("key"); ok {
		t.Error("expected entry to have expired")
	}
}

func TestMemoryCacheDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("expected deleted key to miss")
	}
	if c.Size() != 1 {
		t.Errorf("expected 1 entry after delete, got %d", c.Size())
	}

	c.Clear()
	if c.Size() != 0 {
		t.Errorf("expected 0 entries after clear, got %d", c.Size())
	}
}

func TestSearchCacheRoundTrip(t *testing.T) {
	sc := NewSearchCache()

	if _, ok := sc.GetResults("v1\x00query"); ok {
		t.Error("expected miss before SetResults")
	}

	sc.SetResults("v1\x00query", []string{"a/1.mp3", "a/2.mp3"})

	paths, ok := sc.GetResults("v1\x00query")
	if !ok {
		t.Fatal("expected hit after SetResults")
	}
	if len(paths) != 2 || paths[0] != "a/1.mp3" {
		t.Errorf("unexpected cached paths: %v", paths)
	}

	// A different snapshot version namespaces the key, so a rescan's
	// new results don't collide with a stale cached entry.
	if _, ok := sc.GetResults("v2\x00query"); ok {
		t.Error("expected a different snapshot version to miss")
	}
}
