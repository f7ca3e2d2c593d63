// Package internal groups the packages private to the gateway module.
//
// # Sub-packages
//
//   - flows: the authenticate pipeline, account status resolution and blacklisting
//   - rate: cache-backed fixed-window counters
//   - security: effective security posture reporting
//   - config: process configuration for cmd/gateway
//   - logger: the zap logger used by the binaries
//   - gateway: HTTP router, admin handlers and reverse proxy
package internal
