package gatewayauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/vrental/gatewayauth/internal/flows"
	"github.com/vrental/gatewayauth/internal/rate"
	"github.com/vrental/gatewayauth/internal/security"
	"github.com/vrental/gatewayauth/jwt"
)

// Authenticator verifies bearer tokens at the gateway edge. It is safe for
// concurrent use. Build one with [New].
type Authenticator struct {
	config         Config
	cache          Cache
	store          UserStore
	jwtManager     *jwt.Manager
	failureCounter *rate.Limiter
	keys           flows.Keys
	clientIP       *ClientIPResolver
	metrics        *Metrics
	audit          *auditDispatcher
	logger         *zap.Logger
	now            func() time.Time
	flowDeps       flows.Deps
}

// Authenticate runs the gateway check for one request. It never returns a
// nil Result and never panics. When req.ClientIP is empty the IP from
// [WithClientIP] or the configured fallback is used.
func (a *Authenticator) Authenticate(ctx context.Context, req Request) Result {
	start := time.Now()
	ip := req.ClientIP
	if ip == "" {
		ip = ClientIPFromContext(ctx)
	}
	if ip == "" {
		ip = a.config.ClientIP.Fallback
	}

	fr := flows.RunAuthenticate(ctx, flows.AuthenticateInput{
		Authorization: req.Authorization,
		ClientIP:      ip,
	}, a.flowDeps.Authenticate)
	a.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	if fr.Degraded {
		a.metrics.Inc(MetricCacheDegraded)
	}

	if fr.Failure == flows.AuthenticateFailureNone {
		a.metrics.Inc(MetricAuthSuccess)
		a.emitAudit(ctx, AuditAuthSuccess, true, fr.UserID, ip, nil, nil)
		return Result{
			Success: true,
			UserID:  fr.UserID,
			Role:    fr.Role,
			Email:   fr.Email,
		}
	}

	sentinel, metric := classifyFailure(fr.Failure)
	a.metrics.Inc(MetricAuthFailure)
	a.metrics.Inc(metric)

	err := sentinel
	if fr.Err != nil {
		err = fmt.Errorf("%w: %v", sentinel, fr.Err)
	}

	event := AuditAuthFailure
	switch sentinel {
	case ErrRateLimited:
		event = AuditRateLimited
	case ErrTokenReplay:
		event = AuditReplayDetected
	}
	a.emitAudit(ctx, event, false, fr.UserID, ip, sentinel, nil)

	return Result{
		Success: false,
		Message: Message(sentinel),
		Err:     err,
	}
}

// AuthenticateHTTP resolves the client IP of r and authenticates its
// Authorization header.
func (a *Authenticator) AuthenticateHTTP(r *http.Request) Result {
	return a.Authenticate(r.Context(), Request{
		Authorization: r.Header.Get("Authorization"),
		ClientIP:      a.ResolveClientIP(r),
	})
}

// RequireRole authenticates req and checks the role against roles. An
// authentication failure returns an error wrapping both [ErrUnauthorized]
// and the failure sentinel. A role outside roles returns [ErrForbidden]. An
// empty role list admits nobody.
func (a *Authenticator) RequireRole(ctx context.Context, req Request, roles ...string) (Result, error) {
	res := a.Authenticate(ctx, req)
	if !res.Success {
		return res, fmt.Errorf("%w: %w", ErrUnauthorized, res.Err)
	}
	if !slices.Contains(roles, res.Role) {
		a.metrics.Inc(MetricForbidden)
		ip := req.ClientIP
		if ip == "" {
			ip = ClientIPFromContext(ctx)
		}
		a.emitAudit(ctx, AuditForbidden, false, res.UserID, ip, ErrForbidden, map[string]string{"role": res.Role})
		return Result{
			Success: false,
			UserID:  res.UserID,
			Role:    res.Role,
			Message: msgForbidden,
			Err:     ErrForbidden,
		}, ErrForbidden
	}
	return res, nil
}

// RequireRoleHTTP is RequireRole over an *http.Request.
func (a *Authenticator) RequireRoleHTTP(r *http.Request, roles ...string) (Result, error) {
	return a.RequireRole(r.Context(), Request{
		Authorization: r.Header.Get("Authorization"),
		ClientIP:      a.ResolveClientIP(r),
	}, roles...)
}

// CheckUserActive resolves the account state of userID. It fails closed:
// when neither the store nor the cache can answer it reports UserInactive.
func (a *Authenticator) CheckUserActive(ctx context.Context, userID int64) UserStatus {
	return UserStatus(a.checkUserStatus(ctx, userID))
}

func (a *Authenticator) checkUserStatus(ctx context.Context, userID int64) string {
	res := flows.RunCheckUserActive(ctx, userID, a.flowDeps.UserStatus)
	switch res.Source {
	case flows.UserStatusFromCache:
		a.metrics.Inc(MetricUserStatusCacheHit)
	case flows.UserStatusFromStore:
		a.metrics.Inc(MetricUserStatusStoreLookup)
	case flows.UserStatusFromCacheAfterStoreError:
		a.metrics.Inc(MetricUserStatusStoreError)
		a.metrics.Inc(MetricUserStatusCacheHit)
	case flows.UserStatusDenyByDefault:
		a.metrics.Inc(MetricUserStatusStoreError)
		a.metrics.Inc(MetricUserStatusDenyByDefault)
	}
	return res.Status
}

// BlacklistToken revokes token until exp. A token already past exp needs
// no entry and returns nil. Returns [ErrCacheUnavailable] when the cache is
// down.
func (a *Authenticator) BlacklistToken(ctx context.Context, token string, exp time.Time) error {
	if err := flows.RunBlacklist(ctx, token, exp, a.flowDeps.Blacklist); err != nil {
		a.logger.Warn("token blacklist failed", zap.Error(err))
		return err
	}
	if exp.After(a.now()) {
		a.metrics.Inc(MetricTokenBlacklisted)
	}
	return nil
}

// RevokeToken verifies token and blacklists it for the rest of its
// lifetime. Expired tokens are already unusable and return nil.
func (a *Authenticator) RevokeToken(ctx context.Context, token string) error {
	claims, err := a.jwtManager.ParseAccess(token)
	if err != nil {
		if errors.Is(err, gjwt.ErrTokenExpired) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	exp, err := jwt.NumericClaim(claims, jwt.ClaimExp)
	if err != nil {
		return fmt.Errorf("%w: exp: %v", ErrInvalidPayload, err)
	}
	if err := a.BlacklistToken(ctx, token, flows.UnixTime(exp.Float64())); err != nil {
		return err
	}

	var userID int64
	if uid, err := jwt.NumericClaim(claims, jwt.ClaimUserID); err == nil {
		userID, _ = uid.Int64()
	}
	a.emitAudit(ctx, AuditTokenRevoked, true, userID, ClientIPFromContext(ctx), nil, nil)
	return nil
}

// IsRevoked reports whether token has a live blacklist entry.
func (a *Authenticator) IsRevoked(ctx context.Context, token string) (bool, error) {
	return flows.IsBlacklisted(ctx, token, a.flowDeps.Blacklist)
}

// InvalidateUserStatus drops the cached account state of userID so the next
// request reads the store.
func (a *Authenticator) InvalidateUserStatus(ctx context.Context, userID int64) error {
	if !a.cache.Available(ctx) {
		return ErrCacheUnavailable
	}
	if err := flows.InvalidateUserStatus(ctx, userID, a.flowDeps.UserStatus); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	a.emitAudit(ctx, AuditStatusInvalidated, true, userID, ClientIPFromContext(ctx), nil, nil)
	return nil
}

// FailedAttempts returns the number of signature failures recorded for ip
// in the current window.
func (a *Authenticator) FailedAttempts(ctx context.Context, ip string) (int64, error) {
	if !a.cache.Available(ctx) {
		return 0, ErrCacheUnavailable
	}
	n, err := a.failureCounter.Count(ctx, a.keys.FailedAttempts(ip))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return n, nil
}

// ResolveClientIP returns the client address of r per the ClientIP config.
func (a *Authenticator) ResolveClientIP(r *http.Request) string {
	return a.clientIP.Resolve(r)
}

// Health probes the cache and, when it implements [Pinger], the user store.
func (a *Authenticator) Health(ctx context.Context) HealthStatus {
	h := HealthStatus{
		CacheAvailable: a.cache.Available(ctx),
		StoreAvailable: true,
	}
	if p, ok := a.store.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			h.StoreAvailable = false
			h.StoreError = err.Error()
		}
	}
	return h
}

// SecurityReport summarises the effective security posture.
func (a *Authenticator) SecurityReport() SecurityReport {
	if a == nil {
		return SecurityReport{}
	}
	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:      a.config.JWT.SigningMethod,
		Issuer:                a.config.JWT.Issuer,
		Audience:              a.config.JWT.Audience,
		VerifyKeyCount:        len(a.config.JWT.VerifyKeys),
		Leeway:                a.config.JWT.Leeway,
		MaxTokenLength:        a.config.Token.MaxLength,
		RateLimitEnabled:      a.config.RateLimit.Enabled,
		MaxAttempts:           a.config.RateLimit.MaxAttempts,
		RateLimitWindow:       a.config.RateLimit.Window,
		FailedAttemptsEnabled: a.config.FailedAttempts.Enabled,
		ReplayEnabled:         a.config.Replay.Enabled,
		ReplayWindow:          a.config.Replay.Window,
		UserStatusCacheTTL:    a.config.UserStatus.CacheTTL,
		TrustedHeaders:        a.config.ClientIP.TrustedHeaders,
		ProxyHops:             a.config.ClientIP.ProxyHops,
	})
}

func (a *Authenticator) MetricsSnapshot() MetricsSnapshot {
	return a.metrics.Snapshot()
}

// AuditDropped returns the number of audit events dropped on a full buffer.
func (a *Authenticator) AuditDropped() uint64 {
	return a.audit.Dropped()
}

// Close flushes pending audit events. The cache and store are owned by the
// caller and stay open.
func (a *Authenticator) Close() {
	if a == nil {
		return
	}
	a.audit.Close()
}

func (a *Authenticator) emitAudit(ctx context.Context, eventType string, success bool, userID int64, ip string, err error, meta map[string]string) {
	if a.audit == nil {
		return
	}
	event := AuditEvent{
		Timestamp: a.now(),
		EventType: eventType,
		UserID:    userID,
		IP:        ip,
		RequestID: RequestIDFromContext(ctx),
		Success:   success,
		Metadata:  meta,
	}
	if err != nil {
		event.Error = err.Error()
	}
	a.audit.Emit(ctx, event)
}

func classifyFailure(kind flows.AuthenticateFailureKind) (error, MetricID) {
	switch kind {
	case flows.AuthenticateFailureRateLimited:
		return ErrRateLimited, MetricRateLimited
	case flows.AuthenticateFailureMissingHeader:
		return ErrMissingAuthorization, MetricHeaderRejected
	case flows.AuthenticateFailureMalformedHeader:
		return ErrInvalidAuthorizationFormat, MetricHeaderRejected
	case flows.AuthenticateFailureTokenTooLong:
		return ErrTokenTooLong, MetricHeaderRejected
	case flows.AuthenticateFailureRevoked:
		return ErrTokenRevoked, MetricTokenRevoked
	case flows.AuthenticateFailureInvalidToken:
		return ErrTokenInvalid, MetricTokenInvalid
	case flows.AuthenticateFailureInvalidPayload:
		return ErrInvalidPayload, MetricPayloadInvalid
	case flows.AuthenticateFailureInvalidUserID:
		return ErrInvalidUserID, MetricPayloadInvalid
	case flows.AuthenticateFailureExpired:
		return ErrTokenExpired, MetricTokenExpired
	case flows.AuthenticateFailureInactive:
		return ErrUserInactive, MetricUserInactive
	case flows.AuthenticateFailureNotFound:
		return ErrUserNotFound, MetricUserInactive
	case flows.AuthenticateFailureReplay:
		return ErrTokenReplay, MetricReplayDetected
	default:
		return ErrAuthenticationFailed, MetricInternalError
	}
}
