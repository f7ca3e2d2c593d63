package gatewayauth

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/vrental/gatewayauth/internal/flows"
	"github.com/vrental/gatewayauth/internal/rate"
	"github.com/vrental/gatewayauth/jwt"
)

// Builder assembles an [Authenticator]. A Builder is single use.
type Builder struct {
	config    Config
	cache     Cache
	store     UserStore
	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCache sets the shared cache. Required.
func (b *Builder) WithCache(c Cache) *Builder {
	b.cache = c
	return b
}

// WithUserStore sets the account status source. Required.
func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.store = s
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token expiry, blacklist TTLs and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Authenticator.
func (b *Builder) Build() (*Authenticator, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.cache == nil {
		return nil, errors.New("cache required")
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("gatewayauth")

	jm, err := NewJWTManager(cfg.JWT, now)
	if err != nil {
		return nil, err
	}

	a := &Authenticator{
		config:     cfg,
		cache:      b.cache,
		store:      b.store,
		jwtManager: jm,
		keys:       flows.Keys{Namespace: cfg.Keys.Namespace},
		clientIP:   NewClientIPResolver(cfg.ClientIP),
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		logger:     logger,
		now:        now,
	}
	a.failureCounter = rate.New(b.cache, rate.Config{})

	var limiter, failures *rate.Limiter
	if cfg.RateLimit.Enabled {
		limiter = rate.New(b.cache, rate.Config{
			MaxAttempts: cfg.RateLimit.MaxAttempts,
			Window:      cfg.RateLimit.Window,
		})
	}
	if cfg.FailedAttempts.Enabled {
		failures = a.failureCounter
	}

	a.flowDeps = flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			Cache:             b.cache,
			RateLimiter:       limiter,
			FailureCounter:    failures,
			FailedAttemptsTTL: cfg.FailedAttempts.TTL,
			ParseAccess:       jm.ParseAccess,
			CheckUserActive:   a.checkUserStatus,
			Keys:              a.keys,
			Now:               now,
			MaxTokenLength:    cfg.Token.MaxLength,
			DefaultRole:       cfg.Token.DefaultRole,
			Leeway:            cfg.JWT.Leeway,
			ReplayEnabled:     cfg.Replay.Enabled,
			ReplayWindow:      cfg.Replay.Window,
			Logger:            logger,
		},
		UserStatus: flows.UserStatusDeps{
			Cache:       b.cache,
			Store:       b.store,
			Keys:        a.keys,
			CacheTTL:    cfg.UserStatus.CacheTTL,
			ActiveValue: cfg.UserStatus.ActiveValue,
			Logger:      logger,
		},
		Blacklist: flows.BlacklistDeps{
			Cache:            b.cache,
			Keys:             a.keys,
			Now:              now,
			CacheUnavailable: ErrCacheUnavailable,
		},
	}

	if warnings := cfg.Lint(); len(warnings) > 0 {
		logger.Warn("risky gateway auth configuration", zap.Strings("codes", warnings.Codes()))
	}

	b.built = true
	return a, nil
}

// NewJWTManager builds the token verifier (and test issuer) described by
// cfg.
func NewJWTManager(cfg JWTConfig, now func() time.Time) (*jwt.Manager, error) {
	var verifyKeys map[string][]byte
	if len(cfg.VerifyKeys) > 0 {
		verifyKeys = make(map[string][]byte, len(cfg.VerifyKeys))
		for kid, key := range cfg.VerifyKeys {
			verifyKeys[kid] = cloneBytes(key)
		}
	}
	return jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.SigningMethod),
		PrivateKey:    cloneBytes(cfg.PrivateKey),
		PublicKey:     cloneBytes(cfg.PublicKey),
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Leeway:        cfg.Leeway,
		KeyID:         cfg.KeyID,
		VerifyKeys:    verifyKeys,
		Now:           now,
	})
}
