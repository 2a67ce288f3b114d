package cache

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"
)

// manualClock is a settable time source for expiry tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClockedCache() (*MemoryCache, *manualClock) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	c := NewMemoryCache()
	c.now = clock.Now
	return c, clock
}

func TestMemoryCache_GetSetDelete(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	val, ok := cache.Get(ctx, "nonexistent")
	if ok {
		t.Error("Get on empty cache should return ok=false")
	}
	if val != nil {
		t.Error("Get on empty cache should return nil value")
	}

	key := "pokedex:species:mewtwo"
	value := []byte(`{"name":"mewtwo"}`)
	if err := cache.Set(ctx, key, value, 5*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := cache.Get(ctx, key)
	if !ok {
		t.Error("Get after Set should return ok=true")
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get returned %q, want %q", got, value)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get after Delete should return ok=false")
	}

	if err := cache.Delete(ctx, "nonexistent"); err != nil {
		t.Errorf("Delete on non-existent key should not error, got: %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	cache, clock := newClockedCache()
	ctx := context.Background()

	key := "expiring-key"
	if err := cache.Set(ctx, key, []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	clock.Advance(59 * time.Second)
	if _, ok := cache.Get(ctx, key); !ok {
		t.Error("Get before expiry should return ok=true")
	}

	clock.Advance(time.Second)
	if _, ok := cache.Get(ctx, key); ok {
		t.Error("Get at expiry should return ok=false")
	}
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after lazy expiry", cache.Len())
	}
}

func TestMemoryCache_ZeroTTL(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	if err := cache.Set(ctx, "zero-ttl-key", []byte("v"), 0); err != nil {
		t.Fatalf("Set with TTL=0 failed: %v", err)
	}
	if _, ok := cache.Get(ctx, "zero-ttl-key"); ok {
		t.Error("Get after Set with TTL=0 should return ok=false")
	}
}

func TestMemoryCache_SetOverwrite(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	_ = cache.Set(ctx, "k", []byte("value1"), time.Minute)
	_ = cache.Set(ctx, "k", []byte("value2"), time.Minute)

	got, ok := cache.Get(ctx, "k")
	if !ok || string(got) != "value2" {
		t.Errorf("Get = %q, %v, want value2, true", got, ok)
	}
}

func TestMemoryCache_DeletePattern(t *testing.T) {
	cache, clock := newClockedCache()
	ctx := context.Background()

	_ = cache.Set(ctx, "pokedex:species:mewtwo", []byte("a"), time.Hour)
	_ = cache.Set(ctx, "pokedex:species:ditto", []byte("b"), time.Hour)
	_ = cache.Set(ctx, "pokedex:translation:yoda:abc", []byte("c"), time.Hour)
	_ = cache.Set(ctx, "other:species:mewtwo", []byte("d"), time.Hour)
	_ = cache.Set(ctx, "pokedex:species:stale", []byte("e"), time.Minute)
	clock.Advance(2 * time.Minute)

	n, err := cache.DeletePattern(ctx, "pokedex:species:*")
	if err != nil {
		t.Fatalf("DeletePattern failed: %v", err)
	}
	if n != 2 {
		t.Errorf("DeletePattern removed %d live keys, want 2", n)
	}

	for _, key := range []string{"pokedex:species:mewtwo", "pokedex:species:ditto", "pokedex:species:stale"} {
		if _, ok := cache.Get(ctx, key); ok {
			t.Errorf("%s should be gone", key)
		}
	}
	for _, key := range []string{"pokedex:translation:yoda:abc", "other:species:mewtwo"} {
		if _, ok := cache.Get(ctx, key); !ok {
			t.Errorf("%s should survive", key)
		}
	}
}

func TestMemoryCache_DeletePatternInvalid(t *testing.T) {
	cache := NewMemoryCache()
	if _, err := cache.DeletePattern(context.Background(), "pokedex:[species"); err == nil {
		t.Error("DeletePattern with unterminated class should error")
	}
}

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"pokedex:*", "pokedex:species:mewtwo", true},
		{"pokedex:*", "pokedex", false},
		{"pokedex:species:?itto", "pokedex:species:ditto", true},
		{"pokedex:species:?itto", "pokedex:species:dditto", false},
		{"pokedex:translation:[ys]*", "pokedex:translation:yoda:1", true},
		{"pokedex:translation:[ys]*", "pokedex:translation:shakespeare:1", true},
		{"pokedex:translation:[^y]*", "pokedex:translation:yoda:1", false},
		{`a\*b`, "a*b", true},
		{`a\*b`, "axb", false},
		{"a.b", "axb", false},
		{"*/*", "x/y", true},
	}

	for _, tt := range tests {
		re, err := compileGlob(tt.pattern)
		if err != nil {
			t.Fatalf("compileGlob(%q) error = %v", tt.pattern, err)
		}
		if got := re.MatchString(tt.key); got != tt.want {
			t.Errorf("glob %q match %q = %v, want %v", tt.pattern, tt.key, got, tt.want)
		}
	}
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache()
	ctx := context.Background()

	const numGoroutines = 50
	const opsPerGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				switch j % 4 {
				case 0:
					_ = cache.Set(ctx, "pokedex:species:concurrent", []byte("v"), time.Minute)
				case 1:
					_, _ = cache.Get(ctx, "pokedex:species:concurrent")
				case 2:
					_ = cache.Delete(ctx, "pokedex:species:concurrent")
				case 3:
					_, _ = cache.DeletePattern(ctx, "pokedex:species:*")
				}
			}
		}()
	}

	wg.Wait()
}

// Verify MemoryCache implements Cache interface at compile time
var _ Cache = (*MemoryCache)(nil)
