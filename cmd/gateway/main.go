package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vrental/gatewayauth"
	"github.com/vrental/gatewayauth/cache"
	"github.com/vrental/gatewayauth/internal/config"
	"github.com/vrental/gatewayauth/internal/gateway"
	"github.com/vrental/gatewayauth/internal/logger"
	promexport "github.com/vrental/gatewayauth/metrics/export/prometheus"
	"github.com/vrental/gatewayauth/store"
)

func main() {
	envFile := flag.String("env-file", ".env", "optional dotenv file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.LogLevel, Encoding: cfg.LogEncoding})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	log = log.With(zap.String("env", cfg.Env))

	if err := run(cfg, log); err != nil {
		log.Error("gateway stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authCache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	log.Info("connecting to database", zap.String("driver", cfg.DBDriver))
	users, err := store.OpenSQL(ctx, store.SQLConfig{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DBDSN,
		Table:           cfg.DBUsersTable,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer func() { _ = users.Close() }()

	builder := gatewayauth.New().
		WithConfig(cfg.AuthConfig()).
		WithCache(authCache).
		WithUserStore(users).
		WithLogger(log)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(gatewayauth.NewZapSink(log))
	}
	auth, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}
	defer auth.Close()

	upstreams, err := gateway.ParseUpstreams(cfg.Upstreams)
	if err != nil {
		return err
	}
	handler, err := gateway.NewRouter(gateway.Options{
		Auth:           auth,
		Upstreams:      upstreams,
		Metrics:        promexport.Handler(promexport.NewCollector(auth)),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         log,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       2 * cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting gateway",
			zap.String("addr", cfg.ListenAddr),
			zap.Strings("upstreams", cfg.UpstreamNames()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped gracefully")
	return nil
}

func openCache(ctx context.Context, cfg *config.Config, log *zap.Logger) (gatewayauth.Cache, func(), error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL not set, using in-process cache")
		return cache.NewMemory(cache.MemoryConfig{}), func() {}, nil
	}
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		URL:                 cfg.RedisURL,
		Password:            cfg.RedisPassword,
		DB:                  cfg.RedisDB,
		PoolSize:            cfg.RedisPoolSize,
		DialTimeout:         cfg.RedisTimeout,
		ReadTimeout:         cfg.RedisTimeout,
		WriteTimeout:        cfg.RedisTimeout,
		HealthCheckInterval: time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Info("connected to redis")
	return r, func() { _ = r.Close() }, nil
}
