package flows

import (
	"context"
	"time"
)

// Cache mirrors the root package cache contract so flows can run without
// importing it.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Available(ctx context.Context) bool
}

// UserStore mirrors the root package user store contract.
type UserStore interface {
	UserStatus(ctx context.Context, userID int64) (string, bool, error)
}

// Deps groups flow dependency sets. The root Authenticator builds this once
// and delegates request methods to the matching flow implementation.
type Deps struct {
	Authenticate AuthenticateDeps
	UserStatus   UserStatusDeps
	Blacklist    BlacklistDeps
}
