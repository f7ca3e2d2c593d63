package flows

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Resolved account states. Only StatusActive authenticates.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusNotFound = "not_found"
)

// UserStatusSource records where a status answer came from.
type UserStatusSource int

const (
	UserStatusFromCache UserStatusSource = iota
	UserStatusFromStore
	// UserStatusFromCacheAfterStoreError is a cached value served because the
	// store query failed.
	UserStatusFromCacheAfterStoreError
	// UserStatusDenyByDefault is the fail-closed answer when neither the
	// store nor the cache could answer.
	UserStatusDenyByDefault
)

type UserStatusResult struct {
	Status string
	Source UserStatusSource
	Err    error
}

// UserStatusDeps captures the collaborators of [RunCheckUserActive].
type UserStatusDeps struct {
	Cache       Cache
	Store       UserStore
	Keys        Keys
	CacheTTL    time.Duration
	ActiveValue string
	Logger      *zap.Logger
}

// RunCheckUserActive resolves the account state of userID: cache first, then
// the store (cached for CacheTTL), and on a store error the cache again or
// StatusInactive. It never answers StatusActive without evidence.
func RunCheckUserActive(ctx context.Context, userID int64, deps UserStatusDeps) UserStatusResult {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	key := deps.Keys.UserActive(userID)
	cacheUp := deps.Cache != nil && deps.Cache.Available(ctx)

	if cacheUp {
		if status, ok := cachedStatus(ctx, deps.Cache, key, logger); ok {
			return UserStatusResult{Status: status, Source: UserStatusFromCache}
		}
	}

	raw, found, err := deps.Store.UserStatus(ctx, userID)
	if err != nil {
		logger.Error("user status lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		if cacheUp {
			if status, ok := cachedStatus(ctx, deps.Cache, key, logger); ok {
				return UserStatusResult{Status: status, Source: UserStatusFromCacheAfterStoreError, Err: err}
			}
		}
		return UserStatusResult{Status: StatusInactive, Source: UserStatusDenyByDefault, Err: err}
	}

	status := StatusInactive
	switch {
	case !found:
		status = StatusNotFound
	case raw == deps.ActiveValue:
		status = StatusActive
	}

	if cacheUp {
		if err := deps.Cache.Set(ctx, key, status, deps.CacheTTL); err != nil {
			logger.Warn("user status not cached", zap.Int64("user_id", userID), zap.Error(err))
		}
	}
	return UserStatusResult{Status: status, Source: UserStatusFromStore}
}

// InvalidateUserStatus drops the cached state of userID.
func InvalidateUserStatus(ctx context.Context, userID int64, deps UserStatusDeps) error {
	return deps.Cache.Delete(ctx, deps.Keys.UserActive(userID))
}

func cachedStatus(ctx context.Context, c Cache, key string, logger *zap.Logger) (string, bool) {
	v, ok, err := c.Get(ctx, key)
	if err != nil {
		logger.Warn("user status cache read failed", zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	switch v {
	case StatusActive, StatusInactive, StatusNotFound:
		return v, true
	default:
		return "", false
	}
}
