package cache

import (
	"testing"
	"time"

	"github.com/use-agent/partfit/models"
)

func TestCache_SetGet(t *testing.T) {
	c := New(10, time.Hour)
	defer c.Close()

	key := Key("https://www.rockauto.com/en/moreinfo.php?pk=1")
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	recs := []models.MeasurementRecord{{Label: "Thickness", Millimeter: "25"}}
	c.Set(key, recs)
	recs[0].Label = "mutated"

	got, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if len(got) != 1 || got[0].Label != "Thickness" {
		t.Errorf("got %+v", got)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := New(10, time.Minute)
	defer c.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("k", []models.MeasurementRecord{{Label: "A", Raw: "1"}})
	now = now.Add(2 * time.Minute)

	if _, ok := c.Get("k"); ok {
		t.Error("expected expired entry to miss")
	}
	c.evictExpired()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after eviction, want 0", c.Len())
	}
}

func TestCache_Capacity(t *testing.T) {
	c := New(2, time.Hour)
	defer c.Close()

	c.Set("a", nil)
	c.Set("b", nil)
	c.Set("a", nil)
	if c.Len() != 2 {
		t.Fatalf("overwriting an existing key should not evict: Len() = %d", c.Len())
	}
	c.Set("c", nil)
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("newest entry should be present")
	}
}

func TestCache_Disabled(t *testing.T) {
	c := New(10, 0)
	defer c.Close()
	c.Set("k", nil)
	if _, ok := c.Get("k"); ok {
		t.Error("maxAge <= 0 should disable lookups")
	}
}

func TestKey(t *testing.T) {
	if Key(" https://example.com/a\n") != Key("https://example.com/a") {
		t.Error("Key should ignore surrounding whitespace")
	}
	if Key("https://example.com/a") == Key("https://example.com/b") {
		t.Error("different URLs must not collide")
	}
}
