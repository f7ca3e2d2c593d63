// Package rate implements fixed-window attempt counters on top of the
// gateway cache.
//
// # Window semantics
//
// GET, reject at the budget, otherwise INCR + conditional EXPIRE on the first
// hit. The window starts with the first counted attempt and is never extended
// by later ones.
//
// # What this package must NOT do
//
//   - Decide fail-open or fail-closed; store errors are returned to the caller.
//   - Build cache keys (the flows package owns the key layout).
package rate
