package gateway

import (
	"errors"
	"net/http"
	"net/url"
	"sort"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/middleware"
)

// RoleAdmin is required for /admin routes and the auth admin API.
const RoleAdmin = "admin"

// Options configures [NewRouter].
type Options struct {
	Auth      *gatewayauth.Authenticator
	Upstreams map[string]*url.URL
	// Metrics is mounted at /metrics when non-nil.
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gateway handler. Routes registered first win, so the
// fixed endpoints shadow upstreams with the same name.
func NewRouter(opts Options) (http.Handler, error) {
	if opts.Auth == nil {
		return nil, errors.New("gateway: authenticator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handlers{auth: opts.Auth, logger: logger}

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(notFound)
	router.Use(middleware.RequestID, middleware.AccessLog(logger))

	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics).Methods(http.MethodGet)
	}

	guard := middleware.Guard(opts.Auth)
	admin := middleware.RequireRole(opts.Auth, RoleAdmin)

	authRouter := router.PathPrefix("/api/auth").Subrouter()
	authRouter.Handle("/me", guard(http.HandlerFunc(h.me))).Methods(http.MethodGet)
	authRouter.Handle("/logout", guard(http.HandlerFunc(h.logout))).Methods(http.MethodPost)

	adminAuth := router.PathPrefix("/api/admin/auth").Subrouter()
	adminAuth.Use(admin)
	adminAuth.HandleFunc("/failed-attempts", h.failedAttempts).Methods(http.MethodGet)
	adminAuth.HandleFunc("/status-cache/{user_id:[0-9]+}", h.invalidateStatus).Methods(http.MethodDelete)

	names := make([]string, 0, len(opts.Upstreams))
	for name := range opts.Upstreams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		target := opts.Upstreams[name]
		prefix := "/admin/" + name
		proxy := admin(newServiceProxy(name, prefix, target, logger))
		router.PathPrefix(prefix + "/").Handler(proxy)
		router.Handle(prefix, proxy)
	}
	for _, name := range names {
		target := opts.Upstreams[name]
		prefix := "/" + name
		proxy := guard(newServiceProxy(name, prefix, target, logger))
		router.PathPrefix(prefix + "/").Handler(proxy)
		router.Handle(prefix, proxy)
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	})
	return co.Handler(router), nil
}
