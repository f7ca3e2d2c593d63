package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/cache"
	"github.com/vrental/gatewayauth/jwt"
	"github.com/vrental/gatewayauth/store"
)

const secret = "gateway-test-secret-0123456789abcdef"

type fixture struct {
	auth    *gatewayauth.Authenticator
	mgr     *jwt.Manager
	mr      *miniredis.Miniredis
	handler http.Handler
}

type echoBody struct {
	Path  string `json:"path"`
	User  string `json:"user"`
	Role  string `json:"role"`
	Email string `json:"email"`
}

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echoBody{
			Path:  r.URL.Path,
			User:  r.Header.Get(HeaderUserID),
			Role:  r.Header.Get(HeaderUserRole),
			Email: r.Header.Get(HeaderUserEmail),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := gatewayauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(secret)
	cfg.ClientIP.TrustedHeaders = nil

	auth, err := gatewayauth.New().
		WithConfig(cfg).
		WithCache(cache.NewRedisFromClient(rdb, 0)).
		WithUserStore(store.NewMemory(map[int64]string{42: "Active", 43: "Inactive", 1: "Active"})).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(auth.Close)

	mgr, err := gatewayauth.NewJWTManager(cfg.JWT, time.Now)
	if err != nil {
		t.Fatalf("jwt manager: %v", err)
	}

	upstreams, err := ParseUpstreams(map[string]string{"vehicle": newUpstream(t).URL})
	if err != nil {
		t.Fatalf("ParseUpstreams: %v", err)
	}
	h, err := NewRouter(Options{
		Auth:           auth,
		Upstreams:      upstreams,
		Metrics:        http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
		AllowedOrigins: []string{"https://app.example.com"},
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &fixture{auth: auth, mgr: mgr, mr: mr, handler: h}
}

func (f *fixture) token(t *testing.T, c jwt.AccessClaims) string {
	t.Helper()
	tok, err := f.mgr.CreateAccess(c)
	if err != nil {
		t.Fatalf("CreateAccess: %v", err)
	}
	return tok
}

func (f *fixture) do(method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "203.0.113.9:5100"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decode[healthBody](t, rec); body.Status != "ok" {
		t.Fatalf("expected ok, got %+v", body)
	}

	f.mr.Close()
	rec = f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 while degraded, got %d", rec.Code)
	}
	if body := decode[healthBody](t, rec); body.Status != "degraded" || body.Checks.CacheAvailable {
		t.Fatalf("expected degraded, got %+v", body)
	}
}

func TestMetricsMounted(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/api/auth/me", f.token(t, jwt.AccessClaims{UserID: 42, Role: "customer", Email: "ana@example.com"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	res := decode[gatewayauth.Result](t, rec)
	if !res.Success || res.UserID != 42 || res.Role != "customer" || res.Email != "ana@example.com" {
		t.Fatalf("unexpected identity %+v", res)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	rec = f.do(http.MethodGet, "/api/auth/me", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, jwt.AccessClaims{UserID: 42})

	rec := f.do(http.MethodPost, "/api/auth/logout", tok)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(http.MethodGet, "/api/auth/me", tok)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rec.Code)
	}
	if body := decode[messageBody](t, rec); body.Message != "Token has been revoked" {
		t.Fatalf("unexpected message %q", body.Message)
	}
}

func TestAdminAuthRoutes(t *testing.T) {
	f := newFixture(t)
	admin := func() string { return f.token(t, jwt.AccessClaims{UserID: 1, Role: "admin"}) }

	if rec := f.do(http.MethodGet, "/api/admin/auth/failed-attempts?ip=198.51.100.7", f.token(t, jwt.AccessClaims{UserID: 42, Role: "customer"})); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer, got %d", rec.Code)
	}

	f.mr.Set("auth_failed:198.51.100.7", "3")
	rec := f.do(http.MethodGet, "/api/admin/auth/failed-attempts?ip=198.51.100.7", admin())
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decode[failedAttemptsBody](t, rec); body.Attempts != 3 || body.IP != "198.51.100.7" {
		t.Fatalf("unexpected body %+v", body)
	}

	if rec := f.do(http.MethodGet, "/api/admin/auth/failed-attempts?ip=nope", admin()); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad ip, got %d", rec.Code)
	}

	f.mr.Set("user:active:43", "active")
	if rec := f.do(http.MethodDelete, "/api/admin/auth/status-cache/43", admin()); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if f.mr.Exists("user:active:43") {
		t.Fatal("expected status cache entry removed")
	}
}

func TestProxyForwardsIdentity(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/vehicle/cars/7", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, jwt.AccessClaims{UserID: 42, Role: "customer", Email: "ana@example.com"}))
	req.Header.Set(HeaderUserID, "1")
	req.Header.Set(HeaderUserRole, "admin")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[echoBody](t, rec)
	if body.Path != "/cars/7" || body.User != "42" || body.Role != "customer" || body.Email != "ana@example.com" {
		t.Fatalf("unexpected upstream view %+v", body)
	}
}

func TestProxyRequiresAuth(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/vehicle/cars", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec := f.do(http.MethodGet, "/admin/vehicle/fleet", f.token(t, jwt.AccessClaims{UserID: 42, Role: "customer"})); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	rec := f.do(http.MethodGet, "/admin/vehicle/fleet", f.token(t, jwt.AccessClaims{UserID: 1, Role: "admin"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d", rec.Code)
	}
	if body := decode[echoBody](t, rec); body.Path != "/fleet" {
		t.Fatalf("unexpected path %q", body.Path)
	}
}

func TestUnknownServiceNotFound(t *testing.T) {
	f := newFixture(t)
	if rec := f.do(http.MethodGet, "/billing/x", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpstreamDownIsBadGateway(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := gatewayauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(secret)
	auth, err := gatewayauth.New().WithConfig(cfg).
		WithCache(cache.NewRedisFromClient(rdb, 0)).
		WithUserStore(store.NewMemory(map[int64]string{42: "Active"})).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(auth.Close)
	mgr, _ := gatewayauth.NewJWTManager(cfg.JWT, time.Now)

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL, _ := url.Parse(dead.URL)
	dead.Close()

	h, err := NewRouter(Options{Auth: auth, Upstreams: map[string]*url.URL{"order": deadURL}})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	tok, _ := mgr.CreateAccess(jwt.AccessClaims{UserID: 42})
	req := httptest.NewRequest(http.MethodGet, "/order/1", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestParseUpstreams(t *testing.T) {
	if _, err := ParseUpstreams(map[string]string{"vehicle": "ftp://host"}); err == nil {
		t.Fatal("expected scheme error")
	}
	if _, err := ParseUpstreams(map[string]string{"vehicle": "http://"}); err == nil {
		t.Fatal("expected host error")
	}
	got, err := ParseUpstreams(map[string]string{"rental": "http://rental-service:3003"})
	if err != nil || got["rental"].Host != "rental-service:3003" {
		t.Fatalf("unexpected result %v %v", got, err)
	}
}

func TestNewRouterRequiresAuthenticator(t *testing.T) {
	if _, err := NewRouter(Options{}); err == nil {
		t.Fatal("expected error")
	}
}
