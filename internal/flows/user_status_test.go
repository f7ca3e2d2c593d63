package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vrental/gatewayauth/cache"
	"github.com/vrental/gatewayauth/store"
)

func newStatusDeps(users map[int64]string) (UserStatusDeps, *cache.Memory, *store.Memory) {
	c := cache.NewMemory(cache.MemoryConfig{Now: func() time.Time { return testNow }})
	s := store.NewMemory(users)
	return UserStatusDeps{
		Cache:       c,
		Store:       s,
		Keys:        Keys{Namespace: "t:"},
		CacheTTL:    300 * time.Second,
		ActiveValue: "Active",
	}, c, s
}

func TestCheckUserActiveMapsAndCaches(t *testing.T) {
	deps, c, _ := newStatusDeps(map[int64]string{1: "Active", 2: "Suspended", 3: "active"})
	ctx := context.Background()

	want := map[int64]string{1: StatusActive, 2: StatusInactive, 3: StatusInactive, 4: StatusNotFound}
	for id, status := range want {
		res := RunCheckUserActive(ctx, id, deps)
		if res.Status != status || res.Source != UserStatusFromStore {
			t.Fatalf("user %d: expected %s from store, got %+v", id, status, res)
		}
		cached, ok, _ := c.Get(ctx, deps.Keys.UserActive(id))
		if !ok || cached != status {
			t.Fatalf("user %d: expected cached %s, got %q", id, status, cached)
		}
		if ttl, _ := c.TTL(deps.Keys.UserActive(id)); ttl != 300*time.Second {
			t.Fatalf("user %d: expected 300s ttl, got %v", id, ttl)
		}
	}
}

func TestCheckUserActiveServesCache(t *testing.T) {
	deps, c, s := newStatusDeps(map[int64]string{1: "Active"})
	ctx := context.Background()

	_ = RunCheckUserActive(ctx, 1, deps)
	s.SetStatus(1, "Banned")

	res := RunCheckUserActive(ctx, 1, deps)
	if res.Status != StatusActive || res.Source != UserStatusFromCache {
		t.Fatalf("expected cached active, got %+v", res)
	}

	if err := InvalidateUserStatus(ctx, 1, deps); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, deps.Keys.UserActive(1)); ok {
		t.Fatal("expected cache entry removed")
	}
	if res := RunCheckUserActive(ctx, 1, deps); res.Status != StatusInactive {
		t.Fatalf("expected fresh inactive after invalidation, got %+v", res)
	}
}

func TestCheckUserActiveIgnoresUnknownCacheValue(t *testing.T) {
	deps, c, _ := newStatusDeps(map[int64]string{5: "Active"})
	ctx := context.Background()
	_ = c.Set(ctx, deps.Keys.UserActive(5), "maybe", time.Minute)

	if res := RunCheckUserActive(ctx, 5, deps); res.Status != StatusActive || res.Source != UserStatusFromStore {
		t.Fatalf("expected store lookup for unknown cached value, got %+v", res)
	}
}

func TestCheckUserActiveStoreErrorDeniesByDefault(t *testing.T) {
	deps, _, s := newStatusDeps(map[int64]string{1: "Active"})
	s.FailWith(errors.New("connection refused"))

	res := RunCheckUserActive(context.Background(), 1, deps)
	if res.Status != StatusInactive || res.Source != UserStatusDenyByDefault || res.Err == nil {
		t.Fatalf("expected deny by default, got %+v", res)
	}
}

// racyStore fills the cache from another request while its own query fails.
type racyStore struct {
	c   *cache.Memory
	key string
}

func (r racyStore) UserStatus(ctx context.Context, _ int64) (string, bool, error) {
	_ = r.c.Set(ctx, r.key, StatusActive, time.Minute)
	return "", false, errors.New("timeout")
}

func TestCheckUserActiveStoreErrorServesCachedValue(t *testing.T) {
	deps, c, _ := newStatusDeps(nil)
	deps.Store = racyStore{c: c, key: deps.Keys.UserActive(9)}

	res := RunCheckUserActive(context.Background(), 9, deps)
	if res.Status != StatusActive || res.Source != UserStatusFromCacheAfterStoreError {
		t.Fatalf("expected cached value after store error, got %+v", res)
	}
}
