package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the JWT algorithm used to verify (and optionally
// issue) access tokens.
type SigningMethod string

const (
	// MethodEd25519 verifies EdDSA tokens signed with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 verifies HMAC-SHA256 tokens signed with a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const (
	defaultAccessTTL = 15 * time.Minute
	maxLeeway        = 2 * time.Minute
)

var (
	// ErrNoSigningKey is returned by Sign on a verify-only manager.
	ErrNoSigningKey = errors.New("signing key not configured")

	errMissingKID = errors.New("missing kid")
	errUnknownKID = errors.New("unknown kid")
)

// Config defines verification and issuing parameters for a [Manager].
//
// For hs256 PrivateKey holds the shared secret. For ed25519 PublicKey (or
// VerifyKeys) is required for verification and PrivateKey only for issuing.
// Ed25519 keys may be raw bytes or PEM.
type Config struct {
	AccessTTL     time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
	VerifyKeys    map[string][]byte
	Now           func() time.Time
}

// keyring holds keys decoded once at construction.
type keyring struct {
	method jwt.SigningMethod
	sign   any

	// byKID is set when tokens must carry a kid; otherwise fallback
	// verifies every token.
	byKID    map[string]any
	fallback any
}

// Manager verifies bearer access tokens issued by the login service and can
// mint compatible tokens for tests and tooling.
//
// Manager is immutable after construction and safe for concurrent use.
type Manager struct {
	ttl      time.Duration
	issuer   string
	audience string
	kid      string
	now      func() time.Time
	keys     keyring
	parser   *jwt.Parser
}

// AccessClaims is the claim set the login service embeds in access tokens.
// A zero ExpiresAt means now + AccessTTL. An empty JTI gets a random UUID.
type AccessClaims struct {
	UserID    int64
	Role      string
	Email     string
	JTI       string
	ExpiresAt time.Time
}

// NewManager validates cfg, decodes its keys and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	switch {
	case cfg.AccessTTL < 0:
		return nil, errors.New("invalid TTL configuration")
	case cfg.Leeway < 0 || cfg.Leeway > maxLeeway:
		return nil, errors.New("invalid leeway configuration")
	}

	keys, err := buildKeyring(cfg)
	if err != nil {
		return nil, err
	}
	kid := strings.TrimSpace(cfg.KeyID)
	if kid != "" && keys.byKID != nil {
		if _, ok := keys.byKID[kid]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if kid != "" && keys.byKID == nil {
		keys.byKID = map[string]any{kid: keys.fallback}
	}

	m := &Manager{
		ttl:      cfg.AccessTTL,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		kid:      kid,
		now:      cfg.Now,
		keys:     keys,
	}
	if m.ttl == 0 {
		m.ttl = defaultAccessTTL
	}
	if m.now == nil {
		m.now = time.Now
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{keys.method.Alg()}),
		jwt.WithJSONNumber(),
		jwt.WithTimeFunc(m.now),
	}
	if cfg.Leeway > 0 {
		opts = append(opts, jwt.WithLeeway(cfg.Leeway))
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}
	m.parser = jwt.NewParser(opts...)

	return m, nil
}

func buildKeyring(cfg Config) (keyring, error) {
	var kr keyring
	var decode func([]byte) (any, error)

	switch cfg.SigningMethod {
	case MethodHS256:
		kr.method = jwt.SigningMethodHS256
		decode = func(b []byte) (any, error) {
			if len(b) == 0 {
				return nil, errors.New("empty hs256 key")
			}
			return b, nil
		}
		if len(cfg.PrivateKey) > 0 {
			kr.sign = cfg.PrivateKey
			kr.fallback = cfg.PrivateKey
		}
	case MethodEd25519:
		kr.method = jwt.SigningMethodEdDSA
		decode = func(b []byte) (any, error) { return parseEdPublicKey(b) }
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return kr, err
			}
			kr.sign = priv
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return kr, err
			}
			kr.fallback = pub
		}
	default:
		return kr, errors.New("unsupported signing method")
	}

	if len(cfg.VerifyKeys) > 0 {
		kr.byKID = make(map[string]any, len(cfg.VerifyKeys))
		for kid, raw := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return kr, errors.New("verify key map contains empty kid")
			}
			key, err := decode(raw)
			if err != nil {
				return kr, fmt.Errorf("invalid %s verify key for kid %q: %w", cfg.SigningMethod, kid, err)
			}
			kr.byKID[kid] = key
		}
	}

	if kr.fallback == nil && kr.byKID == nil {
		if cfg.SigningMethod == MethodHS256 {
			return kr, errors.New("hs256 requires private key")
		}
		return kr, errors.New("ed25519 requires public key or verify key set")
	}
	return kr, nil
}

// CreateAccess signs an access token carrying the login-service claim
// layout: user_id, role, email, jti, iat, exp and the configured iss/aud.
func (j *Manager) CreateAccess(c AccessClaims) (string, error) {
	now := j.now()
	exp := c.ExpiresAt
	if exp.IsZero() {
		exp = now.Add(j.ttl)
	}
	jti := c.JTI
	if jti == "" {
		jti = uuid.NewString()
	}

	claims := jwt.MapClaims{
		ClaimUserID: c.UserID,
		ClaimJTI:    jti,
		"iat":       now.Unix(),
		ClaimExp:    exp.Unix(),
	}
	setIfNotEmpty(claims, ClaimRole, c.Role)
	setIfNotEmpty(claims, ClaimEmail, c.Email)
	setIfNotEmpty(claims, "iss", j.issuer)
	setIfNotEmpty(claims, "aud", j.audience)

	return j.Sign(claims)
}

func setIfNotEmpty(claims jwt.MapClaims, name, value string) {
	if value != "" {
		claims[name] = value
	}
}

// Sign signs an arbitrary claim set with the configured key. It exists so
// callers can produce tokens of any shape, including malformed payloads.
func (j *Manager) Sign(claims jwt.MapClaims) (string, error) {
	if j.keys.sign == nil {
		return "", fmt.Errorf("%w for %s", ErrNoSigningKey, j.keys.method.Alg())
	}
	token := jwt.NewWithClaims(j.keys.method, claims)
	if j.kid != "" {
		token.Header["kid"] = j.kid
	}
	return token.SignedString(j.keys.sign)
}

// ParseAccess verifies the token signature and the registered time claims
// (exp, nbf, iat when present) and returns the raw claim map. Numeric claims
// are decoded as json.Number.
func (j *Manager) ParseAccess(tokenStr string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	token, err := j.parser.ParseWithClaims(tokenStr, claims, j.verifyKey)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (j *Manager) verifyKey(t *jwt.Token) (any, error) {
	if t.Method.Alg() != j.keys.method.Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}
	if j.keys.byKID == nil {
		return j.keys.fallback, nil
	}
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		return nil, errMissingKID
	}
	key, ok := j.keys.byKID[kid]
	if !ok {
		return nil, errUnknownKID
	}
	return key, nil
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
