package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMemoryStoreWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore().WithClock(func() time.Time { return now })
	ctx := context.Background()

	if active, _ := store.Active(ctx, "u"); active {
		t.Fatal("cooldown active before Start")
	}
	if err := store.Start(ctx, "u", 5*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}

	tests := []struct {
		name    string
		elapsed time.Duration
		want    bool
	}{
		{"just started", 0, true},
		{"inside window", 4*time.Minute + 59*time.Second, true},
		{"at expiry", 5 * time.Minute, false},
	}
	for _, tt := range tests {
		now = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC).Add(tt.elapsed)
		got, err := store.Active(ctx, "u")
		if err != nil {
			t.Fatalf("%s: Active: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: Active = %v, want %v", tt.name, got, tt.want)
		}
	}

	if active, _ := store.Active(ctx, "other"); active {
		t.Error("cooldown leaked to another user")
	}
}

func TestMemoryStoreZeroDurationIsNoop(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.Start(ctx, "u", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if active, _ := store.Active(ctx, "u"); active {
		t.Error("zero-length cooldown should never be active")
	}
}

func TestKeyIsNamespaced(t *testing.T) {
	t.Parallel()
	if got := key("abc"); got != "safety:cooldown:abc" {
		t.Errorf("key(abc) = %q", got)
	}
}

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), mr.Addr(), "")
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client), mr
}

func TestRedisStoreWindow(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	if active, err := store.Active(ctx, "u"); err != nil || active {
		t.Fatalf("Active before Start = %v, %v", active, err)
	}
	if err := store.Start(ctx, "u", 5*time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if ttl := mr.TTL(key("u")); ttl != 5*time.Minute {
		t.Errorf("TTL = %v, want 5m", ttl)
	}
	if active, err := store.Active(ctx, "u"); err != nil || !active {
		t.Fatalf("Active after Start = %v, %v", active, err)
	}
	if active, _ := store.Active(ctx, "other"); active {
		t.Error("cooldown leaked to another user")
	}

	mr.FastForward(4*time.Minute + 59*time.Second)
	if active, _ := store.Active(ctx, "u"); !active {
		t.Error("cooldown expired early")
	}
	mr.FastForward(time.Second)
	if active, _ := store.Active(ctx, "u"); active {
		t.Error("cooldown still active after its window")
	}
}

func TestRedisStoreIgnoresNonPositiveWindow(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	if err := store.Start(context.Background(), "u", 0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if mr.Exists(key("u")) {
		t.Error("zero window should not write a key")
	}
}

func TestRedisStoreSurfacesErrors(t *testing.T) {
	t.Parallel()

	store, mr := newTestRedisStore(t)
	mr.SetError("ERR backend unavailable")
	if _, err := store.Active(context.Background(), "u"); err == nil {
		t.Error("Active: expected error")
	}
	if err := store.Start(context.Background(), "u", time.Minute); err == nil {
		t.Error("Start: expected error")
	}
}
