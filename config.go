package gatewayauth

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"
)

// Config is the full Authenticator configuration. Start from
// [DefaultConfig] and override fields.
type Config struct {
	JWT            JWTConfig
	RateLimit      RateLimitConfig
	FailedAttempts FailedAttemptsConfig
	Token          TokenConfig
	UserStatus     UserStatusConfig
	Replay         ReplayConfig
	ClientIP       ClientIPConfig
	Keys           KeyConfig
	Audit          AuditConfig
	Metrics        MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig describes how access tokens issued by the login service are
// verified. For hs256 PrivateKey is the shared secret. AccessTTL only
// affects tokens minted through the issuer helper.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	AccessTTL     time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
}

/*
====================================
COUNTERS
====================================
*/

// RateLimitConfig is the per-IP fixed-window authentication budget.
type RateLimitConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// FailedAttemptsConfig controls the per-IP counter of signature failures
// kept for monitoring.
type FailedAttemptsConfig struct {
	Enabled bool
	TTL     time.Duration
}

// ReplayConfig controls jti reuse detection.
type ReplayConfig struct {
	Enabled bool
	Window  time.Duration
}

/*
====================================
TOKEN / ACCOUNT
====================================
*/

type TokenConfig struct {
	MaxLength   int
	DefaultRole string
}

// UserStatusConfig controls the cached account status check. ActiveValue is
// the status column value that means active; anything else is inactive.
type UserStatusConfig struct {
	CacheTTL    time.Duration
	ActiveValue string
}

/*
====================================
CLIENT IP
====================================
*/

// ClientIPConfig lists the proxy headers trusted for client IP attribution,
// in priority order. ProxyHops selects the X-Forwarded-For entry: 0 takes
// the left-most value, n takes the n-th value from the right.
type ClientIPConfig struct {
	TrustedHeaders []string
	ProxyHops      int
	Fallback       string
}

// KeyConfig prefixes every cache key.
type KeyConfig struct {
	Namespace string
}

/*
====================================
AUDIT / METRICS
====================================
*/

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 20 attempts per 60s per IP,
// 1h failed-attempt counters, 2048-byte tokens, 300s account status caching,
// 5s reuse window and the CF-Connecting-IP / X-Forwarded-For / X-Real-IP
// header order.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: 20,
			Window:      60 * time.Second,
		},
		FailedAttempts: FailedAttemptsConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Token: TokenConfig{
			MaxLength:   2048,
			DefaultRole: "user",
		},
		UserStatus: UserStatusConfig{
			CacheTTL:    300 * time.Second,
			ActiveValue: "Active",
		},
		Replay: ReplayConfig{
			Enabled: true,
			Window:  5 * time.Second,
		},
		ClientIP: ClientIPConfig{
			TrustedHeaders: []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"},
			Fallback:       "0.0.0.0",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	if cfg.JWT.VerifyKeys != nil {
		out.JWT.VerifyKeys = make(map[string][]byte, len(cfg.JWT.VerifyKeys))
		for kid, key := range cfg.JWT.VerifyKeys {
			out.JWT.VerifyKeys[kid] = cloneBytes(key)
		}
	}
	if cfg.ClientIP.TrustedHeaders != nil {
		out.ClientIP.TrustedHeaders = append([]string(nil), cfg.ClientIP.TrustedHeaders...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("hs256 requires PrivateKey")
		}
	case "ed25519":
		if len(c.JWT.PublicKey) == 0 && len(c.JWT.VerifyKeys) == 0 {
			return errors.New("ed25519 requires PublicKey or VerifyKeys")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}
	if c.JWT.AccessTTL < 0 {
		return errors.New("JWT AccessTTL must be >= 0")
	}

	// Counters
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}
	if c.FailedAttempts.Enabled && c.FailedAttempts.TTL <= 0 {
		return errors.New("FailedAttempts TTL must be > 0")
	}
	if c.Replay.Enabled && c.Replay.Window <= 0 {
		return errors.New("Replay Window must be > 0")
	}

	// Token / account
	if c.Token.MaxLength <= 0 {
		return errors.New("Token MaxLength must be > 0")
	}
	if strings.TrimSpace(c.Token.DefaultRole) == "" {
		return errors.New("Token DefaultRole must not be empty")
	}
	if c.UserStatus.CacheTTL <= 0 {
		return errors.New("UserStatus CacheTTL must be > 0")
	}
	if c.UserStatus.ActiveValue == "" {
		return errors.New("UserStatus ActiveValue must not be empty")
	}

	// Client IP
	for _, h := range c.ClientIP.TrustedHeaders {
		if strings.TrimSpace(h) == "" {
			return errors.New("ClientIP TrustedHeaders contains an empty name")
		}
		if http.CanonicalHeaderKey(h) == "Authorization" {
			return errors.New("ClientIP TrustedHeaders must not include Authorization")
		}
	}
	if c.ClientIP.ProxyHops < 0 {
		return errors.New("ClientIP ProxyHops must be >= 0")
	}
	if _, err := netip.ParseAddr(c.ClientIP.Fallback); err != nil {
		return fmt.Errorf("ClientIP Fallback is not an IP address: %w", err)
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
