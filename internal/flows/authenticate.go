package flows

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/vrental/gatewayauth/internal/rate"
	"github.com/vrental/gatewayauth/jwt"
)

var bearerPattern = regexp.MustCompile(`^Bearer\s+([A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+)$`)

// AuthenticateFailureKind classifies authenticate failures for root-level mapping.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureRateLimited
	AuthenticateFailureMissingHeader
	AuthenticateFailureMalformedHeader
	AuthenticateFailureTokenTooLong
	AuthenticateFailureRevoked
	AuthenticateFailureInvalidToken
	AuthenticateFailureInvalidPayload
	AuthenticateFailureInvalidUserID
	AuthenticateFailureExpired
	AuthenticateFailureInactive
	AuthenticateFailureNotFound
	AuthenticateFailureReplay
	AuthenticateFailureInternal
)

// AuthenticateInput is the per-request data authenticate looks at.
type AuthenticateInput struct {
	Authorization string
	ClientIP      string
}

// AuthenticateResult carries the identity on success or the classified failure.
type AuthenticateResult struct {
	Failure AuthenticateFailureKind
	Err     error
	UserID  int64
	Role    string
	Email   string
	Token   string
	// Degraded is set when a cache-backed check was skipped because the cache
	// was unavailable.
	Degraded bool
}

// AuthenticateDeps captures the collaborators of [RunAuthenticate].
// A nil RateLimiter or FailureCounter disables that step.
type AuthenticateDeps struct {
	Cache             Cache
	RateLimiter       *rate.Limiter
	FailureCounter    *rate.Limiter
	FailedAttemptsTTL time.Duration
	ParseAccess       func(string) (gjwt.MapClaims, error)
	CheckUserActive   func(context.Context, int64) string
	Keys              Keys
	Now               func() time.Time
	MaxTokenLength    int
	DefaultRole       string
	Leeway            time.Duration
	ReplayEnabled     bool
	ReplayWindow      time.Duration
	Logger            *zap.Logger
}

// RunAuthenticate executes the ordered, short-circuiting gateway check:
// rate limit, header shape, blacklist, signature, claim shape, claim values,
// account status, jti reuse.
//
// Cache-backed steps (rate limit, blacklist, failure counter, reuse) fail
// open when the cache is down. The account status step fails closed.
func RunAuthenticate(ctx context.Context, in AuthenticateInput, deps AuthenticateDeps) (res AuthenticateResult) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("authenticate panicked", zap.Any("panic", r), zap.String("ip", in.ClientIP))
			recordFailureAfterPanic(ctx, deps, in.ClientIP, logger)
			res = AuthenticateResult{Failure: AuthenticateFailureInternal, Err: fmt.Errorf("recovered: %v", r)}
		}
	}()

	cacheUp := deps.Cache != nil && deps.Cache.Available(ctx)
	degraded := !cacheUp

	// 1. rate limit
	if cacheUp && deps.RateLimiter != nil {
		if err := deps.RateLimiter.Allow(ctx, deps.Keys.RateLimit(in.ClientIP)); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				logger.Warn("authentication rate limit exceeded", zap.String("ip", in.ClientIP))
				return AuthenticateResult{Failure: AuthenticateFailureRateLimited, Err: err}
			}
			logger.Warn("rate limit check skipped", zap.Error(err))
			degraded = true
		}
	}

	// 2. header presence and shape
	if in.Authorization == "" {
		return AuthenticateResult{Failure: AuthenticateFailureMissingHeader}
	}
	m := bearerPattern.FindStringSubmatch(in.Authorization)
	if m == nil {
		return AuthenticateResult{Failure: AuthenticateFailureMalformedHeader}
	}
	token := m[1]
	if deps.MaxTokenLength > 0 && len(token) > deps.MaxTokenLength {
		return AuthenticateResult{Failure: AuthenticateFailureTokenTooLong}
	}

	// 3. blacklist, before the signature check so revoked tokens fail fast
	if cacheUp {
		revoked, err := deps.Cache.Exists(ctx, deps.Keys.Blacklist(TokenHash(token)))
		switch {
		case err != nil:
			logger.Warn("blacklist check skipped", zap.Error(err))
			degraded = true
		case revoked:
			return AuthenticateResult{Failure: AuthenticateFailureRevoked}
		}
	}

	// 4. signature and registered claims
	claims, err := deps.ParseAccess(token)
	if err != nil {
		logger.Warn("token verification failed", zap.String("ip", in.ClientIP), zap.Error(err))
		recordFailure(ctx, deps, in.ClientIP, logger)
		return AuthenticateResult{Failure: AuthenticateFailureInvalidToken, Err: err}
	}

	// 5. claim shape
	uid, err := jwt.NumericClaim(claims, jwt.ClaimUserID)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInvalidPayload, Err: fmt.Errorf("user_id: %w", err)}
	}
	exp, err := jwt.NumericClaim(claims, jwt.ClaimExp)
	if err != nil {
		return AuthenticateResult{Failure: AuthenticateFailureInvalidPayload, Err: fmt.Errorf("exp: %w", err)}
	}

	// 6. claim values
	userID, ok := uid.Int64()
	if !ok || userID <= 0 {
		return AuthenticateResult{Failure: AuthenticateFailureInvalidUserID}
	}
	if !deps.Now().Before(UnixTime(exp.Float64()).Add(deps.Leeway)) {
		return AuthenticateResult{Failure: AuthenticateFailureExpired}
	}

	// 7. account status, fail closed
	switch status := deps.CheckUserActive(ctx, userID); status {
	case StatusActive:
	case StatusNotFound:
		return AuthenticateResult{Failure: AuthenticateFailureNotFound, UserID: userID}
	default:
		return AuthenticateResult{Failure: AuthenticateFailureInactive, UserID: userID}
	}

	// 8. jti reuse
	if jti := jwt.StringClaim(claims, jwt.ClaimJTI); jti != "" && deps.ReplayEnabled && cacheUp {
		key := deps.Keys.TokenUse(jti)
		seen, err := deps.Cache.Exists(ctx, key)
		switch {
		case err != nil:
			logger.Warn("token reuse check skipped", zap.Error(err))
			degraded = true
		case seen:
			logger.Warn("token reuse detected", zap.Int64("user_id", userID), zap.String("ip", in.ClientIP))
			return AuthenticateResult{Failure: AuthenticateFailureReplay, UserID: userID}
		default:
			if err := deps.Cache.Set(ctx, key, "1", deps.ReplayWindow); err != nil {
				logger.Warn("token reuse marker not stored", zap.Error(err))
				degraded = true
			}
		}
	}

	// 9. identity
	role := jwt.StringClaim(claims, jwt.ClaimRole)
	if role == "" {
		role = deps.DefaultRole
	}
	return AuthenticateResult{
		UserID:   userID,
		Role:     role,
		Email:    jwt.StringClaim(claims, jwt.ClaimEmail),
		Token:    token,
		Degraded: degraded,
	}
}

func recordFailure(ctx context.Context, deps AuthenticateDeps, ip string, logger *zap.Logger) {
	if deps.FailureCounter == nil || deps.Cache == nil || !deps.Cache.Available(ctx) {
		return
	}
	if _, err := deps.FailureCounter.Record(ctx, deps.Keys.FailedAttempts(ip), deps.FailedAttemptsTTL); err != nil {
		logger.Warn("failed attempt not recorded", zap.Error(err))
	}
}

// recordFailureAfterPanic records the failed attempt for a recovered panic.
// The panic may have come from the cache itself, so a second one is
// swallowed here.
func recordFailureAfterPanic(ctx context.Context, deps AuthenticateDeps, ip string, logger *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("failed attempt not recorded after panic", zap.Any("panic", r), zap.String("ip", ip))
		}
	}()
	recordFailure(ctx, deps, ip, logger)
}

// maxUnixSeconds keeps absurd exp values representable.
const maxUnixSeconds = 1 << 40

// UnixTime converts a numeric exp claim in seconds to a time, clamping
// values too large to represent.
func UnixTime(sec float64) time.Time {
	if sec > maxUnixSeconds {
		sec = maxUnixSeconds
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
