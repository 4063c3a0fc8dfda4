package assistants

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	gets    int
	fail    bool
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.fail {
		return "", false, errors.New("cache down")
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("cache down")
	}
	c.entries[key] = value
	return nil
}

func (c *memCache) Del(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

type countingRepo struct {
	*MemoryRepo
	mu   sync.Mutex
	gets int
}

func (r *countingRepo) GetByExternalID(ctx context.Context, externalID string) (*Assistant, error) {
	r.mu.Lock()
	r.gets++
	r.mu.Unlock()
	return r.MemoryRepo.GetByExternalID(ctx, externalID)
}

func TestResolve_PopulatesAndServesFromCache(t *testing.T) {
	repo := &countingRepo{MemoryRepo: NewMemoryRepo()}
	cache := newMemCache()
	reg := NewRegistry(repo, cache)
	ctx := context.Background()

	if err := reg.Register(ctx, &Assistant{ExternalID: "asst-1", TenantID: "t1", Active: true}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		a, err := reg.Resolve(ctx, "asst-1")
		if err != nil {
			t.Fatalf("resolve %d failed: %v", i, err)
		}
		if a.TenantID != "t1" {
			t.Fatalf("tenant = %q", a.TenantID)
		}
	}
	if repo.gets != 1 {
		t.Fatalf("repo hit %d times, want 1 (cache should serve the rest)", repo.gets)
	}
}

func TestResolve_CacheFailureFallsThrough(t *testing.T) {
	repo := &countingRepo{MemoryRepo: NewMemoryRepo()}
	cache := newMemCache()
	cache.fail = true
	reg := NewRegistry(repo, cache)
	ctx := context.Background()

	if err := repo.Upsert(ctx, &Assistant{ExternalID: "asst-1", TenantID: "t1"}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	a, err := reg.Resolve(ctx, "asst-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a.TenantID != "t1" {
		t.Fatalf("tenant = %q", a.TenantID)
	}
}

func TestRegister_InvalidatesCacheEntry(t *testing.T) {
	repo := &countingRepo{MemoryRepo: NewMemoryRepo()}
	cache := newMemCache()
	reg := NewRegistry(repo, cache)
	ctx := context.Background()

	if err := reg.Register(ctx, &Assistant{ExternalID: "asst-1", TenantID: "t1"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := reg.Resolve(ctx, "asst-1"); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// Re-home the assistant; the stale cache entry must not survive.
	if err := reg.Register(ctx, &Assistant{ExternalID: "asst-1", TenantID: "t2"}); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}
	a, err := reg.Resolve(ctx, "asst-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a.TenantID != "t2" {
		t.Fatalf("tenant = %q, want t2 after re-register", a.TenantID)
	}
}

func TestResolveTenant_EmptyOnUnknown(t *testing.T) {
	reg := NewRegistry(NewMemoryRepo(), nil)
	if got := reg.ResolveTenant(context.Background(), "nope"); got != "" {
		t.Fatalf("tenant = %q, want empty", got)
	}
}

func TestDeactivate(t *testing.T) {
	repo := NewMemoryRepo()
	reg := NewRegistry(repo, newMemCache())
	ctx := context.Background()

	if err := reg.Register(ctx, &Assistant{ExternalID: "asst-1", TenantID: "t1", Active: true}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := reg.Deactivate(ctx, "t1", "asst-1"); err != nil {
		t.Fatalf("deactivate failed: %v", err)
	}
	a, err := reg.Resolve(ctx, "asst-1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if a.Active {
		t.Fatalf("assistant still active")
	}

	if err := reg.Deactivate(ctx, "t2", "asst-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-tenant deactivate: err = %v, want ErrNotFound", err)
	}
}
