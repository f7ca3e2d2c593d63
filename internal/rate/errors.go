package rate

import "errors"

var (
	// ErrRateLimited reports an exhausted attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable wraps counter store failures.
	ErrStoreUnavailable = errors.New("counter store unavailable")
)
