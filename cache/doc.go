// Package cache provides the shared key/value backends the gateway keeps its
// ephemeral authentication state in: rate-limit and failed-attempt counters,
// revoked-token hashes, cached account status and jti reuse markers.
//
// [Redis] is the production backend. [Memory] is a single-process stand-in
// for development and load tooling; its counters are not shared between
// gateway replicas. Its LRU bound never applies to revoked-token hashes or
// jti markers, which live until their own TTL.
//
// Every backend reports transport failures wrapped in [ErrUnavailable] so
// callers can tell "key absent" from "cache down".
package cache
