package flows

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// BlacklistDeps captures the collaborators of [RunBlacklist].
type BlacklistDeps struct {
	Cache            Cache
	Keys             Keys
	Now              func() time.Time
	CacheUnavailable error
}

// RunBlacklist stores the hash of token until exp. Tokens already past exp
// need no entry and return nil. A down cache returns deps.CacheUnavailable.
func RunBlacklist(ctx context.Context, token string, exp time.Time, deps BlacklistDeps) error {
	if deps.Cache == nil || !deps.Cache.Available(ctx) {
		return deps.CacheUnavailable
	}
	now := deps.Now()
	ttl := exp.Sub(now)
	if ttl <= 0 {
		return nil
	}

	key := deps.Keys.Blacklist(TokenHash(token))
	if err := deps.Cache.Set(ctx, key, strconv.FormatInt(now.Unix(), 10), ttl); err != nil {
		return fmt.Errorf("%w: %v", deps.CacheUnavailable, err)
	}
	return nil
}

// IsBlacklisted reports whether token has a live blacklist entry.
func IsBlacklisted(ctx context.Context, token string, deps BlacklistDeps) (bool, error) {
	if deps.Cache == nil || !deps.Cache.Available(ctx) {
		return false, deps.CacheUnavailable
	}
	ok, err := deps.Cache.Exists(ctx, deps.Keys.Blacklist(TokenHash(token)))
	if err != nil {
		return false, fmt.Errorf("%w: %v", deps.CacheUnavailable, err)
	}
	return ok, nil
}
