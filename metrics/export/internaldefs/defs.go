package internaldefs

import (
	"github.com/vrental/gatewayauth"
)

type CounterDef struct {
	ID   gatewayauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   gatewayauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: gatewayauth.MetricAuthSuccess, Name: "gatewayauth_auth_success_total", Help: "Successful authentications."},
	{ID: gatewayauth.MetricAuthFailure, Name: "gatewayauth_auth_failure_total", Help: "Failed authentications of any kind."},
	{ID: gatewayauth.MetricRateLimited, Name: "gatewayauth_rate_limited_total", Help: "Authentications rejected by the per-IP rate limit."},
	{ID: gatewayauth.MetricHeaderRejected, Name: "gatewayauth_header_rejected_total", Help: "Missing, malformed or oversized Authorization headers."},
	{ID: gatewayauth.MetricTokenRevoked, Name: "gatewayauth_token_revoked_total", Help: "Blacklisted tokens presented."},
	{ID: gatewayauth.MetricTokenInvalid, Name: "gatewayauth_token_invalid_total", Help: "Tokens failing signature or registered-claim verification."},
	{ID: gatewayauth.MetricPayloadInvalid, Name: "gatewayauth_payload_invalid_total", Help: "Tokens with missing or invalid user_id or exp."},
	{ID: gatewayauth.MetricTokenExpired, Name: "gatewayauth_token_expired_total", Help: "Tokens rejected by the exp value check."},
	{ID: gatewayauth.MetricUserInactive, Name: "gatewayauth_user_inactive_total", Help: "Tokens of inactive or unknown accounts."},
	{ID: gatewayauth.MetricReplayDetected, Name: "gatewayauth_replay_detected_total", Help: "Token ids presented twice within the reuse window."},
	{ID: gatewayauth.MetricInternalError, Name: "gatewayauth_internal_error_total", Help: "Authentications aborted by an internal error."},
	{ID: gatewayauth.MetricForbidden, Name: "gatewayauth_forbidden_total", Help: "Authenticated requests rejected by a role check."},
	{ID: gatewayauth.MetricTokenBlacklisted, Name: "gatewayauth_token_blacklisted_total", Help: "Tokens added to the blacklist."},
	{ID: gatewayauth.MetricUserStatusCacheHit, Name: "gatewayauth_user_status_cache_hit_total", Help: "Account status answers served from cache."},
	{ID: gatewayauth.MetricUserStatusStoreLookup, Name: "gatewayauth_user_status_store_lookup_total", Help: "Account status answers read from the users table."},
	{ID: gatewayauth.MetricUserStatusStoreError, Name: "gatewayauth_user_status_store_error_total", Help: "Failed users table lookups."},
	{ID: gatewayauth.MetricUserStatusDenyByDefault, Name: "gatewayauth_user_status_deny_by_default_total", Help: "Accounts treated as inactive because no source could answer."},
	{ID: gatewayauth.MetricCacheDegraded, Name: "gatewayauth_cache_degraded_total", Help: "Authentications that skipped a cache-backed check."},
}

var HistogramDefs = []HistogramDef{
	{ID: gatewayauth.MetricAuthenticateLatency, Name: "gatewayauth_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

// HistogramBoundSuffix names each bucket for exporters without native
// histograms, in bucket order.
var HistogramBoundSuffix = []string{
	"0_00025",
	"0_0005",
	"0_001",
	"0_0025",
	"0_005",
	"0_01",
	"0_025",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
