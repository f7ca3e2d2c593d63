package gatewayauth

import "errors"

var (
	// ErrRateLimited is returned when an IP exhausted its authentication budget.
	ErrRateLimited = errors.New("authentication rate limited")
	// ErrMissingAuthorization is returned when the Authorization header is absent.
	ErrMissingAuthorization = errors.New("authorization header missing")
	// ErrInvalidAuthorizationFormat is returned when the header is not "Bearer <jwt>".
	ErrInvalidAuthorizationFormat = errors.New("invalid authorization format")
	// ErrTokenTooLong is returned when the bearer token exceeds Token.MaxLength.
	ErrTokenTooLong = errors.New("token too long")
	// ErrTokenRevoked is returned for blacklisted tokens.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrTokenInvalid is returned when signature or registered-claim verification fails.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrInvalidPayload is returned when user_id or exp is missing or not numeric.
	ErrInvalidPayload = errors.New("invalid token payload")
	// ErrInvalidUserID is returned when user_id is not a positive integer.
	ErrInvalidUserID = errors.New("invalid user id")
	// ErrTokenExpired is returned when exp is in the past.
	ErrTokenExpired = errors.New("token expired")
	// ErrUserInactive is returned when the account is not active, or its state could not be established.
	ErrUserInactive = errors.New("user inactive")
	// ErrUserNotFound is returned when no user row exists for the token's user_id.
	ErrUserNotFound = errors.New("user not found")
	// ErrTokenReplay is returned when a jti is presented twice inside the reuse window.
	ErrTokenReplay = errors.New("token reuse detected")
	// ErrAuthenticationFailed is returned for unexpected internal failures.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrCacheUnavailable is returned by operations that require the cache.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrUnauthorized wraps every authentication failure returned by RequireRole.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned by RequireRole when the role is not allowed.
	ErrForbidden = errors.New("forbidden")
)

const (
	msgRateLimited    = "Too many authentication attempts. Please try again later."
	msgMissingHeader  = "Authorization header required"
	msgInvalidFormat  = "Invalid authorization format"
	msgTokenRevoked   = "Token has been revoked"
	msgTokenInvalid   = "Invalid or expired token"
	msgInvalidPayload = "Invalid token payload"
	msgTokenExpired   = "Token has expired"
	msgUserInactive   = "User account is inactive"
	msgTokenReplay    = "Token reuse detected"
	msgAuthFailed     = "Authentication failed"
	msgForbidden      = "Insufficient permissions"
)

// Message returns the user-facing text for a failure sentinel. Messages are
// generic on purpose: not-found and inactive accounts read the same.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrForbidden):
		return msgForbidden
	case errors.Is(err, ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, ErrMissingAuthorization):
		return msgMissingHeader
	case errors.Is(err, ErrInvalidAuthorizationFormat), errors.Is(err, ErrTokenTooLong):
		return msgInvalidFormat
	case errors.Is(err, ErrTokenRevoked):
		return msgTokenRevoked
	case errors.Is(err, ErrTokenInvalid):
		return msgTokenInvalid
	case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrInvalidUserID):
		return msgInvalidPayload
	case errors.Is(err, ErrTokenExpired):
		return msgTokenExpired
	case errors.Is(err, ErrUserInactive), errors.Is(err, ErrUserNotFound):
		return msgUserInactive
	case errors.Is(err, ErrTokenReplay):
		return msgTokenReplay
	default:
		return msgAuthFailed
	}
}
