package gatewayauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gjwt "github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/vrental/gatewayauth/cache"
	"github.com/vrental/gatewayauth/jwt"
	"github.com/vrental/gatewayauth/store"
)

var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

const testSecret = "gateway-test-secret-0123456789abcdef"

type fixture struct {
	mr    *miniredis.Miniredis
	cache *switchCache
	users *store.Memory
	auth  *Authenticator
	mgr   *jwt.Manager
}

// switchCache lets a test take the cache offline without losing its data.
type switchCache struct {
	*cache.Redis
	down bool
}

func (c *switchCache) Available(ctx context.Context) bool {
	return !c.down && c.Redis.Available(ctx)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	return cfg
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newFixture(t testing.TB, mutate func(*Config), opts ...func(*Builder)) *fixture {
	t.Helper()
	mr, rdb := newTestRedis(t)

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	c := &switchCache{Redis: cache.NewRedisFromClient(rdb, 0)}
	users := store.NewMemory(map[int64]string{
		42: "Active",
		43: "Inactive",
		44: "Suspended",
		7:  "Active",
	})

	b := New().
		WithConfig(cfg).
		WithCache(c).
		WithUserStore(users).
		WithClock(func() time.Time { return testNow })
	for _, opt := range opts {
		opt(b)
	}
	auth, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(auth.Close)

	mgr, err := NewJWTManager(cfg.JWT, func() time.Time { return testNow })
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	return &fixture{mr: mr, cache: c, users: users, auth: auth, mgr: mgr}
}

func (f *fixture) token(t testing.TB, c jwt.AccessClaims) string {
	t.Helper()
	tok, err := f.mgr.CreateAccess(c)
	if err != nil {
		t.Fatalf("CreateAccess failed: %v", err)
	}
	return tok
}

func (f *fixture) signed(t *testing.T, claims gjwt.MapClaims) string {
	t.Helper()
	tok, err := f.mgr.Sign(claims)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return tok
}

func bearer(token string) string {
	return "Bearer " + token
}

func hashHex(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
