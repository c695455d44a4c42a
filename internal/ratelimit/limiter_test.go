package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	gwerrors "github.com/assistdeck/gateway/internal/errors"
	"github.com/assistdeck/gateway/internal/logging"
	"github.com/assistdeck/gateway/internal/trust"
)

func testRegistry() *trust.Registry {
	return trust.NewRegistry([]trust.Source{
		{Name: "testbot"},
		{Name: "agent-manager", Tier: trust.TierTrustedService},
	}, nil)
}

func TestLimiter_Boundary(t *testing.T) {
	store := NewMemoryStore()
	limiter := NewLimiter(store, testRegistry(), logging.NewNop())
	ctx := context.Background()

	limit := trust.DefaultUserLimit

	// The first L requests in the window pass.
	for i := 1; i <= limit; i++ {
		if err := limiter.Allow(ctx, "testbot", "agent-manager:list_tasks", trust.TierUser); err != nil {
			t.Fatalf("request %d: Allow() error = %v, want nil", i, err)
		}
	}

	// Request L+1 is the first to be rejected.
	err := limiter.Allow(ctx, "testbot", "agent-manager:list_tasks", trust.TierUser)
	if !gwerrors.IsRateLimited(err) {
		t.Fatalf("request %d: Allow() error = %v, want RateLimitExceeded", limit+1, err)
	}

	se := gwerrors.GetServiceError(err)
	if se.Details["limit"] != limit {
		t.Errorf("limit detail = %v, want %d", se.Details["limit"], limit)
	}
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore()
	registry := trust.NewRegistry(nil, map[trust.Tier]int{trust.TierUser: 2})
	limiter := NewLimiter(store, registry, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, "alice", "reports:generate", trust.TierUser); err != nil {
			t.Fatalf("alice request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "alice", "reports:generate", trust.TierUser); !gwerrors.IsRateLimited(err) {
		t.Fatalf("alice over limit: error = %v, want RateLimitExceeded", err)
	}

	// A different caller and a different endpoint are unaffected.
	if err := limiter.Allow(ctx, "bob", "reports:generate", trust.TierUser); err != nil {
		t.Errorf("bob: Allow() error = %v, want nil", err)
	}
	if err := limiter.Allow(ctx, "alice", "reports:list", trust.TierUser); err != nil {
		t.Errorf("alice other endpoint: Allow() error = %v, want nil", err)
	}
}

func TestLimiter_TierLimits(t *testing.T) {
	registry := trust.NewRegistry(nil, map[trust.Tier]int{
		trust.TierUser:           1,
		trust.TierTrustedService: 3,
	})
	limiter := NewLimiter(NewMemoryStore(), registry, logging.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "agent-manager", "tasks:run", trust.TierTrustedService); err != nil {
			t.Fatalf("trusted request %d: %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "agent-manager", "tasks:run", trust.TierTrustedService); !gwerrors.IsRateLimited(err) {
		t.Errorf("trusted over limit: error = %v, want RateLimitExceeded", err)
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store down")
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	limiter := NewLimiter(failingStore{}, testRegistry(), logging.NewNop())

	if err := limiter.Allow(context.Background(), "testbot", "x:y", trust.TierUser); err != nil {
		t.Errorf("Allow() with failing store error = %v, want nil (fail open)", err)
	}
}

func TestMemoryStore_WindowReset(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := store.Incr(ctx, "k", Window)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if count != i {
			t.Fatalf("count = %d, want %d", count, i)
		}
	}

	// Advance past the window: the counter starts over.
	now = now.Add(Window + time.Second)
	count, err := store.Incr(ctx, "k", Window)
	if err != nil {
		t.Fatalf("Incr() error = %v", err)
	}
	if count != 1 {
		t.Errorf("count after window = %d, want 1", count)
	}
}

func TestMemoryStore_ConcurrentIncr(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	const goroutines = 50
	const perGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				if _, err := store.Incr(ctx, "shared", Window); err != nil {
					t.Errorf("Incr() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	count, err := store.Incr(ctx, "shared", Window)
	if err != nil {
		t.Fatalf("final Incr() error = %v", err)
	}
	if want := int64(goroutines*perGoroutine + 1); count != want {
		t.Errorf("final count = %d, want %d (no lost increments)", count, want)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if _, err := store.Incr(ctx, "old", Window); err != nil {
		t.Fatal(err)
	}

	now = now.Add(10 * time.Minute)
	store.sweep(5 * time.Minute)

	count, _ := store.Incr(ctx, "old", Window)
	if count != 1 {
		t.Errorf("count after sweep = %d, want 1 (record dropped)", count)
	}
}
