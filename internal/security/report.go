package security

import "time"

// Posture says how a check behaves when its backing store is unreachable.
type Posture string

const (
	FailOpen   Posture = "fail_open"
	FailClosed Posture = "fail_closed"
	Disabled   Posture = "disabled"
)

type Report struct {
	SigningAlgorithm         string
	IssuerPinned             bool
	AudiencePinned           bool
	KeyRotation              bool
	Leeway                   time.Duration
	MaxTokenLength           int
	RateLimit                Posture
	RateLimitBudget          int
	RateLimitWindow          time.Duration
	Blacklist                Posture
	FailedAttemptTracking    Posture
	ReplayDetection          Posture
	ReplayWindow             time.Duration
	UserStatus               Posture
	UserStatusCacheTTL       time.Duration
	TrustedClientIPHeaders   []string
	ClientIPHeadersSpoofable bool
}

type ReportInput struct {
	SigningAlgorithm      string
	Issuer                string
	Audience              string
	VerifyKeyCount        int
	Leeway                time.Duration
	MaxTokenLength        int
	RateLimitEnabled      bool
	MaxAttempts           int
	RateLimitWindow       time.Duration
	FailedAttemptsEnabled bool
	ReplayEnabled         bool
	ReplayWindow          time.Duration
	UserStatusCacheTTL    time.Duration
	TrustedHeaders        []string
	ProxyHops             int
}

// BuildReport summarises the effective posture. Every cache-backed check
// fails open; the account status check always fails closed.
func BuildReport(input ReportInput) Report {
	posture := func(enabled bool) Posture {
		if !enabled {
			return Disabled
		}
		return FailOpen
	}

	return Report{
		SigningAlgorithm:         input.SigningAlgorithm,
		IssuerPinned:             input.Issuer != "",
		AudiencePinned:           input.Audience != "",
		KeyRotation:              input.VerifyKeyCount > 1,
		Leeway:                   input.Leeway,
		MaxTokenLength:           input.MaxTokenLength,
		RateLimit:                posture(input.RateLimitEnabled && input.MaxAttempts > 0),
		RateLimitBudget:          input.MaxAttempts,
		RateLimitWindow:          input.RateLimitWindow,
		Blacklist:                FailOpen,
		FailedAttemptTracking:    posture(input.FailedAttemptsEnabled),
		ReplayDetection:          posture(input.ReplayEnabled),
		ReplayWindow:             input.ReplayWindow,
		UserStatus:               FailClosed,
		UserStatusCacheTTL:       input.UserStatusCacheTTL,
		TrustedClientIPHeaders:   append([]string(nil), input.TrustedHeaders...),
		ClientIPHeadersSpoofable: len(input.TrustedHeaders) > 0 && input.ProxyHops == 0,
	}
}
