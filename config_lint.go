package gatewayauth

import (
	"fmt"
	"strings"
	"time"
)

// LintWarning is a configuration that validates but is risky.
type LintWarning struct {
	Code    string
	Message string
}

// LintResult is the set of warnings produced by [Config.Lint].
type LintResult []LintWarning

// Codes returns the warning codes in order.
func (ws LintResult) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

func (ws LintResult) String() string {
	parts := make([]string, 0, len(ws))
	for _, w := range ws {
		parts = append(parts, w.Code+": "+w.Message)
	}
	return strings.Join(parts, "; ")
}

// Lint reports valid but risky settings. It never fails.
func (c *Config) Lint() LintResult {
	var ws LintResult
	add := func(code, format string, args ...any) {
		ws = append(ws, LintWarning{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	if len(c.ClientIP.TrustedHeaders) > 0 && c.ClientIP.ProxyHops == 0 {
		add("client_ip_headers_spoofable",
			"proxy headers %v are trusted as sent; clients can pick the IP they are rate limited under",
			c.ClientIP.TrustedHeaders)
	}
	if !c.RateLimit.Enabled {
		add("rate_limit_disabled", "per-IP authentication rate limit is disabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxAttempts > 1000 {
		add("rate_limit_high", "rate limit allows %d attempts per %s", c.RateLimit.MaxAttempts, c.RateLimit.Window)
	}
	if !c.Replay.Enabled {
		add("replay_detection_disabled", "jti reuse detection is disabled")
	}
	if !c.FailedAttempts.Enabled {
		add("failed_attempts_disabled", "failed verification attempts are not counted")
	}
	if c.JWT.Leeway > 30*time.Second {
		add("leeway_large", "JWT leeway %s exceeds 30s", c.JWT.Leeway)
	}
	if c.UserStatus.CacheTTL > 15*time.Minute {
		add("status_cache_ttl_long", "deactivated accounts stay authenticated for up to %s", c.UserStatus.CacheTTL)
	}
	if c.JWT.SigningMethod == "hs256" && len(c.JWT.PrivateKey) > 0 && len(c.JWT.PrivateKey) < 32 {
		add("hs256_secret_short", "hs256 secret is %d bytes; use at least 32", len(c.JWT.PrivateKey))
	}

	return ws
}
