package cache

import "errors"

var (
	// ErrUnavailable wraps every transport or server failure.
	ErrUnavailable = errors.New("cache unavailable")
	// ErrNotInteger is returned when incrementing a non-integer value.
	ErrNotInteger = errors.New("value is not an integer")
)
