package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func newHSManager(t *testing.T, cfg Config) *Manager {
	t.Helper()
	cfg.SigningMethod = MethodHS256
	if len(cfg.PrivateKey) == 0 {
		cfg.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestCreateAccessRoundTripClaims(t *testing.T) {
	m := newHSManager(t, Config{AccessTTL: time.Minute})

	token, err := m.CreateAccess(AccessClaims{UserID: 42, Role: "admin", Email: "ops@vrental.example", JTI: "j-1"})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	claims, err := m.ParseAccess(token)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}

	uid, err := NumericClaim(claims, ClaimUserID)
	if err != nil {
		t.Fatalf("user_id: %v", err)
	}
	if v, ok := uid.Int64(); !ok || v != 42 {
		t.Fatalf("expected user_id 42, got %q", uid)
	}
	if _, ok := claims[ClaimUserID].(json.Number); !ok {
		t.Fatalf("expected json.Number decoding, got %T", claims[ClaimUserID])
	}
	if StringClaim(claims, ClaimRole) != "admin" || StringClaim(claims, ClaimEmail) != "ops@vrental.example" {
		t.Fatalf("unexpected role/email: %v", claims)
	}
	if StringClaim(claims, ClaimJTI) != "j-1" {
		t.Fatalf("expected jti j-1, got %v", claims[ClaimJTI])
	}
}

func TestCreateAccessGeneratesJTI(t *testing.T) {
	m := newHSManager(t, Config{})

	a, err := m.CreateAccess(AccessClaims{UserID: 1})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	b, err := m.CreateAccess(AccessClaims{UserID: 1})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	ca, _ := m.ParseAccess(a)
	cb, _ := m.ParseAccess(b)
	if StringClaim(ca, ClaimJTI) == "" || StringClaim(ca, ClaimJTI) == StringClaim(cb, ClaimJTI) {
		t.Fatalf("expected distinct generated jti values, got %v and %v", ca[ClaimJTI], cb[ClaimJTI])
	}
}

func TestParseAccessRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	tok := gjwt.NewWithClaims(gjwt.SigningMethodHS256, gjwt.MapClaims{
		"user_id": 1,
		"exp":     time.Now().Add(time.Minute).Unix(),
	})
	token, err := tok.SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseAccessRejectsExpired(t *testing.T) {
	m := newHSManager(t, Config{})

	token, err := m.CreateAccess(AccessClaims{UserID: 5, ExpiresAt: time.Now().Add(-time.Minute)})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); !errors.Is(err, gjwt.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseAccessUsesConfiguredClock(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := issuedAt
	m := newHSManager(t, Config{AccessTTL: time.Minute, Now: func() time.Time { return now }})

	token, err := m.CreateAccess(AccessClaims{UserID: 5})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(token); err != nil {
		t.Fatalf("expected valid token at issue time: %v", err)
	}

	now = issuedAt.Add(2 * time.Minute)
	if _, err := m.ParseAccess(token); err == nil {
		t.Fatal("expected token to be expired after clock advanced")
	}
}

func TestParseAccessIssuerAudienceAndLeeway(t *testing.T) {
	pub, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "vrental-login",
		Audience:      "gateway",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, err := m.CreateAccess(AccessClaims{UserID: 9})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	other, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     pub,
		Issuer:        "someone-else",
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	foreign, err := other.CreateAccess(AccessClaims{UserID: 9})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(foreign); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}

	withinLeeway, err := m.CreateAccess(AccessClaims{UserID: 9, ExpiresAt: time.Now().Add(-10 * time.Second)})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(withinLeeway); err != nil {
		t.Fatalf("expected token inside leeway to parse: %v", err)
	}
}

func TestParseAccessKeyRotation(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)

	signer, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
	})
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, err := signer.CreateAccess(AccessClaims{UserID: 3})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}

	verifier, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		VerifyKeys:    map[string][]byte{"k1": pub1, "k2": pub2},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := verifier.ParseAccess(token); err != nil {
		t.Fatalf("expected rotated key set to verify k1 token: %v", err)
	}

	rotated, err := NewManager(Config{
		SigningMethod: MethodEd25519,
		VerifyKeys:    map[string][]byte{"k2": pub2},
	})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	if _, err := rotated.ParseAccess(token); err == nil {
		t.Fatal("expected unknown kid to be rejected")
	}
}

func TestVerifyOnlyEd25519CannotSign(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.CreateAccess(AccessClaims{UserID: 1}); err == nil {
		t.Fatal("expected signing without private key to fail")
	}
}

func TestNewManagerValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "unsupported method", cfg: Config{SigningMethod: "rs512", PrivateKey: []byte("x")}},
		{name: "hs256 without key", cfg: Config{SigningMethod: MethodHS256}},
		{name: "ed25519 without public key", cfg: Config{SigningMethod: MethodEd25519}},
		{name: "negative leeway", cfg: Config{SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: -time.Second}},
		{name: "huge leeway", cfg: Config{SigningMethod: MethodHS256, PrivateKey: []byte("k"), Leeway: time.Hour}},
		{name: "kid missing from verify keys", cfg: Config{SigningMethod: MethodHS256, PrivateKey: []byte("k"), KeyID: "a", VerifyKeys: map[string][]byte{"b": []byte("k")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewManager(tc.cfg); err == nil {
				t.Fatal("expected configuration error")
			}
		})
	}
}

func TestSignWithoutKeyReturnsErrNoSigningKey(t *testing.T) {
	m, err := NewManager(Config{SigningMethod: MethodHS256, VerifyKeys: map[string][]byte{"k1": []byte("shared")}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	if _, err := m.Sign(gjwt.MapClaims{"user_id": 1}); !errors.Is(err, ErrNoSigningKey) {
		t.Fatalf("expected ErrNoSigningKey, got %v", err)
	}
}

func TestKeyIDRequiresMatchingHeader(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")
	m := newHSManager(t, Config{PrivateKey: secret, KeyID: "2026-03"})
	unlabelled := newHSManager(t, Config{PrivateKey: secret})

	tok, err := unlabelled.CreateAccess(AccessClaims{UserID: 9})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(tok); err == nil {
		t.Fatal("expected token without kid to be rejected")
	}

	tok, err = m.CreateAccess(AccessClaims{UserID: 9})
	if err != nil {
		t.Fatalf("create access: %v", err)
	}
	if _, err := m.ParseAccess(tok); err != nil {
		t.Fatalf("expected labelled token to parse: %v", err)
	}
}
