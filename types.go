package gatewayauth

import (
	"context"
	"time"
)

// Cache is the shared key/value store holding rate-limit counters, failed
// attempt counters, blacklist entries, cached account status and jti reuse
// markers. Implementations must make Increment atomic. Get reports a missing
// key as ok=false with a nil error.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Increment(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	Available(ctx context.Context) bool
}

// UserStore returns the raw status column of a user row. found is false
// when no row exists.
type UserStore interface {
	UserStatus(ctx context.Context, userID int64) (status string, found bool, err error)
}

// Pinger is optionally implemented by a UserStore to take part in Health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Request is what Authenticate looks at: the raw Authorization header and
// the already-resolved client IP.
type Request struct {
	Authorization string
	ClientIP      string
}

// Result is the outcome of Authenticate and RequireRole. On success it
// carries the identity; on failure Success is false, Message holds a generic
// user-facing text and Err the classifying sentinel.
type Result struct {
	Success bool   `json:"success"`
	UserID  int64  `json:"user_id,omitempty"`
	Role    string `json:"role,omitempty"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
	Err     error  `json:"-"`
}

// UserStatus is the resolved account state.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserNotFound UserStatus = "not_found"
)

// HealthStatus reports collaborator reachability.
type HealthStatus struct {
	CacheAvailable bool   `json:"cache_available"`
	StoreAvailable bool   `json:"store_available"`
	StoreError     string `json:"store_error,omitempty"`
}

// Healthy is true when both collaborators answered. The gateway keeps
// serving with the cache down, so callers may treat a cache outage as
// degraded rather than failed.
func (h HealthStatus) Healthy() bool {
	return h.CacheAvailable && h.StoreAvailable
}
