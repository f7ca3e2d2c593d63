package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vrental/gatewayauth/cache"
)

var errTestUnavailable = errors.New("cache unavailable")

func TestRunBlacklistTTLMatchesExpiry(t *testing.T) {
	c := cache.NewMemory(cache.MemoryConfig{Now: func() time.Time { return testNow }})
	deps := BlacklistDeps{Cache: c, Now: func() time.Time { return testNow }, CacheUnavailable: errTestUnavailable}

	if err := RunBlacklist(context.Background(), "a.b.c", testNow.Add(90*time.Second), deps); err != nil {
		t.Fatalf("blacklist: %v", err)
	}
	key := deps.Keys.Blacklist(TokenHash("a.b.c"))
	if ttl, ok := c.TTL(key); !ok || ttl != 90*time.Second {
		t.Fatalf("expected 90s ttl, got %v %v", ttl, ok)
	}
	if ok, err := IsBlacklisted(context.Background(), "a.b.c", deps); err != nil || !ok {
		t.Fatalf("expected blacklisted, got %v %v", ok, err)
	}
}

func TestRunBlacklistExpiredTokenIsNoop(t *testing.T) {
	c := cache.NewMemory(cache.MemoryConfig{})
	deps := BlacklistDeps{Cache: c, Now: func() time.Time { return testNow }, CacheUnavailable: errTestUnavailable}

	if err := RunBlacklist(context.Background(), "a.b.c", testNow.Add(-time.Second), deps); err != nil {
		t.Fatalf("expected nil for expired token, got %v", err)
	}
	if ok, _ := c.Exists(context.Background(), deps.Keys.Blacklist(TokenHash("a.b.c"))); ok {
		t.Fatal("expired token must not be stored")
	}
}

func TestRunBlacklistCacheDown(t *testing.T) {
	deps := BlacklistDeps{Cache: &toggleCache{Memory: cache.NewMemory(cache.MemoryConfig{}), down: true}, Now: time.Now, CacheUnavailable: errTestUnavailable}

	if err := RunBlacklist(context.Background(), "a.b.c", time.Now().Add(time.Hour), deps); !errors.Is(err, errTestUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestTokenHashIsSHA256Hex(t *testing.T) {
	// sha256("abc")
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := TokenHash("abc"); got != want {
		t.Fatalf("unexpected hash %s", got)
	}
}
