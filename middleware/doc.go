// Package middleware exposes net/http adapters over gatewayauth.Authenticator.
//
// # Guards
//
//   - [Guard] authenticates every request and injects the [gatewayauth.Result]
//     into the request context.
//   - [RequireRole] additionally restricts the route to a role set.
//
// Failures are written as {"success":false,"message":...} with 401, or 403
// for a role mismatch.
//
// # Request plumbing
//
// [RequestID] assigns an X-Request-ID and [AccessLog] writes one zap entry per
// request.
//
// # What this package must NOT do
//
//   - Parse or verify JWTs directly (delegates to the Authenticator).
//   - Access the cache or the users table.
package middleware
