// Package gatewayauth is the authentication gate in front of the rental
// platform's customer, vehicle, rental, order, payment and notification
// services.
//
// Every protected request goes through [Authenticator.Authenticate]: a per-IP
// rate limit, the bearer header shape, the token blacklist, JWT signature
// verification, claim checks, a fail-closed account status lookup and
// optional jti reuse detection. [Authenticator.RequireRole] layers role
// membership on top. Logout calls [Authenticator.BlacklistToken] or
// [Authenticator.RevokeToken].
//
// The Authenticator is safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// gatewayauth is the public surface. It exposes [Authenticator], [Builder],
// [Config], the [Cache] and [UserStore] collaborator contracts and value types
// ([Result], [MetricsSnapshot], [SecurityReport]). Flow orchestration and
// counter handling live under internal/.
//
// # Failure posture
//
// Cache outages disable rate limiting, blacklist checks, failed-attempt
// counting and reuse detection (fail open). The account status check fails
// closed: a user whose state cannot be established is treated as inactive.
// Callers map every failure to 401 except [ErrForbidden] (403).
package gatewayauth
