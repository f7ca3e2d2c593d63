// Package config loads the gateway process configuration from the
// environment, an optional .env file and *_FILE secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/vrental/gatewayauth"
)

// Config holds the gateway configuration. Secrets have no envconfig tag;
// they are read from NAME or from the file named by NAME_FILE.
type Config struct {
	Env         string `envconfig:"ENV" default:"development"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`

	ReadTimeout     time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`

	// Redis. An empty URL selects the in-process cache.
	RedisURL      string        `envconfig:"REDIS_URL"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	RedisPoolSize int           `envconfig:"REDIS_POOL_SIZE" default:"20"`
	RedisTimeout  time.Duration `envconfig:"REDIS_TIMEOUT" default:"500ms"`
	RedisPassword string

	// Users table.
	DBDriver          string        `envconfig:"DB_DRIVER" default:"mysql"`
	DBUsersTable      string        `envconfig:"DB_USERS_TABLE" default:"users"`
	DBMaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"20"`
	DBMaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	DBConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
	DBDSN             string

	// JWT.
	JWTSigningMethod string        `envconfig:"JWT_SIGNING_METHOD" default:"hs256"`
	JWTIssuer        string        `envconfig:"JWT_ISSUER"`
	JWTAudience      string        `envconfig:"JWT_AUDIENCE"`
	JWTLeeway        time.Duration `envconfig:"JWT_LEEWAY" default:"0s"`
	JWTKeyID         string        `envconfig:"JWT_KEY_ID"`
	JWTSecret        string
	JWTPublicKey     string

	// Auth checks.
	RateLimitEnabled      bool          `envconfig:"AUTH_RATE_LIMIT_ENABLED" default:"true"`
	RateLimitMaxAttempts  int           `envconfig:"AUTH_RATE_LIMIT_MAX_ATTEMPTS" default:"20"`
	RateLimitWindow       time.Duration `envconfig:"AUTH_RATE_LIMIT_WINDOW" default:"60s"`
	FailedAttemptsEnabled bool          `envconfig:"AUTH_FAILED_ATTEMPTS_ENABLED" default:"true"`
	FailedAttemptsTTL     time.Duration `envconfig:"AUTH_FAILED_ATTEMPTS_TTL" default:"1h"`
	MaxTokenLength        int           `envconfig:"AUTH_MAX_TOKEN_LENGTH" default:"2048"`
	StatusCacheTTL        time.Duration `envconfig:"AUTH_STATUS_CACHE_TTL" default:"300s"`
	ReplayEnabled         bool          `envconfig:"AUTH_REPLAY_ENABLED" default:"true"`
	ReplayWindow          time.Duration `envconfig:"AUTH_REPLAY_WINDOW" default:"5s"`
	KeyNamespace          string        `envconfig:"AUTH_KEY_NAMESPACE"`
	AuditEnabled          bool          `envconfig:"AUTH_AUDIT_ENABLED" default:"true"`

	TrustedProxyHeaders []string `envconfig:"TRUSTED_PROXY_HEADERS" default:"CF-Connecting-IP,X-Forwarded-For,X-Real-IP"`
	ProxyHops           int      `envconfig:"PROXY_HOPS" default:"0"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`

	// Upstreams maps the first path segment to a backend base URL, e.g.
	// "vehicle=http://vehicle-service:3002".
	Upstreams Upstreams `envconfig:"UPSTREAMS" default:"customer=http://customer-service:3001,vehicle=http://vehicle-service:3002,rental=http://rental-service:3003,order=http://order-service:3004,payment=http://payment-service:3005,notification=http://notification-service:3006"`
}

// Upstreams is a comma-separated list of name=url pairs. URLs keep their
// colons, so the pair is split on the first "=" only.
type Upstreams map[string]string

// Decode implements envconfig.Decoder.
func (u *Upstreams) Decode(value string) error {
	out := make(Upstreams)
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, target, ok := strings.Cut(item, "=")
		name, target = strings.TrimSpace(name), strings.TrimSpace(target)
		if !ok || name == "" || target == "" {
			return fmt.Errorf("invalid upstream %q, want name=url", item)
		}
		if _, dup := out[name]; dup {
			return fmt.Errorf("duplicate upstream %q", name)
		}
		out[name] = target
	}
	*u = out
	return nil
}

// Load reads envFile when it exists, then the environment, then secrets.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env vars: %w", err)
	}

	var err error
	if cfg.JWTSecret, err = ReadSecret("JWT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.JWTPublicKey, err = ReadSecret("JWT_PUBLIC_KEY"); err != nil {
		return nil, err
	}
	if cfg.DBDSN, err = ReadSecret("DB_DSN"); err != nil {
		return nil, err
	}
	if cfg.RedisPassword, err = ReadSecret("REDIS_PASSWORD"); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ReadSecret returns $NAME, or the trimmed contents of the file at
// $NAME_FILE. Both unset yields "".
func ReadSecret(name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	path := os.Getenv(name + "_FILE")
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (c *Config) validate() error {
	if c.DBDSN == "" {
		return errors.New("DB_DSN or DB_DSN_FILE is required")
	}
	switch c.JWTSigningMethod {
	case "hs256":
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET or JWT_SECRET_FILE is required for hs256")
		}
	case "ed25519":
		if c.JWTPublicKey == "" {
			return errors.New("JWT_PUBLIC_KEY or JWT_PUBLIC_KEY_FILE is required for ed25519")
		}
	default:
		return fmt.Errorf("unsupported JWT_SIGNING_METHOD %q", c.JWTSigningMethod)
	}
	for name, target := range c.Upstreams {
		if name == "" || target == "" {
			return fmt.Errorf("invalid upstream %q=%q", name, target)
		}
	}
	return nil
}

// UpstreamNames returns the configured service names in sorted order.
func (c *Config) UpstreamNames() []string {
	names := make([]string, 0, len(c.Upstreams))
	for name := range c.Upstreams {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AuthConfig translates the process config into a gatewayauth.Config.
func (c *Config) AuthConfig() gatewayauth.Config {
	cfg := gatewayauth.DefaultConfig()

	cfg.JWT.SigningMethod = c.JWTSigningMethod
	cfg.JWT.Issuer = c.JWTIssuer
	cfg.JWT.Audience = c.JWTAudience
	cfg.JWT.Leeway = c.JWTLeeway
	cfg.JWT.KeyID = c.JWTKeyID
	if c.JWTSigningMethod == "ed25519" {
		cfg.JWT.PublicKey = []byte(c.JWTPublicKey)
	} else {
		cfg.JWT.PrivateKey = []byte(c.JWTSecret)
	}

	cfg.RateLimit = gatewayauth.RateLimitConfig{
		Enabled:     c.RateLimitEnabled,
		MaxAttempts: c.RateLimitMaxAttempts,
		Window:      c.RateLimitWindow,
	}
	cfg.FailedAttempts = gatewayauth.FailedAttemptsConfig{
		Enabled: c.FailedAttemptsEnabled,
		TTL:     c.FailedAttemptsTTL,
	}
	cfg.Token.MaxLength = c.MaxTokenLength
	cfg.UserStatus.CacheTTL = c.StatusCacheTTL
	cfg.Replay = gatewayauth.ReplayConfig{
		Enabled: c.ReplayEnabled,
		Window:  c.ReplayWindow,
	}
	cfg.ClientIP.TrustedHeaders = append([]string(nil), c.TrustedProxyHeaders...)
	cfg.ClientIP.ProxyHops = c.ProxyHops
	cfg.Keys.Namespace = c.KeyNamespace
	cfg.Audit.Enabled = c.AuditEnabled

	return cfg
}
