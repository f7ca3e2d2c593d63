// Package jwt verifies the bearer access tokens presented at the gateway and
// mints tokens with the same claim layout for tests and load tooling.
//
// Verification is signature plus registered time claims only. Shape checks on
// user_id and exp belong to the caller; [NumericClaim] and [StringClaim] give
// typed access to the raw claim map without trusting its JSON types.
package jwt
