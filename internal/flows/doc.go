// Package flows holds the request-time algorithms behind the root
// Authenticator: the ordered authenticate pipeline, fail-closed account
// status resolution and token blacklisting.
//
// Flows take explicit dependency structs and return classified results; the
// root package owns error sentinels, user-facing messages, metrics and audit.
//
// # What this package must NOT do
//
//   - Import the root package (it would create a cycle).
//   - Write to the relational store. All mutation goes through the cache.
package flows
