package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	if err := mc.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	now = now.Add(59 * time.Second)
	if _, found, _ := mc.Get(ctx, "k"); !found {
		t.Fatal("expected entry before expiry")
	}

	now = now.Add(time.Second)
	if _, found, _ := mc.Get(ctx, "k"); found {
		t.Fatal("expected entry to expire")
	}
	if _, ok := mc.entries["k"]; ok {
		t.Error("expected expired entry to be dropped")
	}
}

func TestMemoryCache_CounterRestartsAfterExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	mc.IncrWithExpiry(ctx, "c", time.Second)
	mc.IncrWithExpiry(ctx, "c", time.Second)

	now = now.Add(2 * time.Second)
	n, err := mc.IncrWithExpiry(ctx, "c", time.Second)
	if err != nil {
		t.Fatalf("incr: %v", err)
	}
	if n != 1 {
		t.Errorf("expected counter to restart at 1, got %d", n)
	}
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mc := NewMemoryCache()
	mc.now = func() time.Time { return now }
	ctx := context.Background()

	mc.Set(ctx, "k", []byte("v"), 0)
	now = now.Add(1000 * time.Hour)

	if _, found, _ := mc.Get(ctx, "k"); !found {
		t.Error("expected entry without TTL to persist")
	}
}
