package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/folio-cms/folio/internal/app"
	"github.com/folio-cms/folio/internal/auth"
	"github.com/folio-cms/folio/internal/observability"
	"github.com/folio-cms/folio/internal/platform/cache"
	"github.com/folio-cms/folio/internal/platform/db"
	"github.com/folio-cms/folio/internal/policy"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/roles"
	"github.com/folio-cms/folio/internal/shared"
	"github.com/folio-cms/folio/internal/users"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns, MaxConnIdleTime: cfg.PGMaxIdleTime})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			logger.Error("migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(rbac.NewPostgresStore(pool), rbac.ServiceOptions{
		Cache:     rbac.NewGrantCache(cfg.RBACCacheSize, cfg.RBACCacheTTL, metrics),
		Logger:    logger,
		AdminRole: cfg.RBACAdminRole,
	})
	if err := rbacService.EnsureDefaultVocabulary(ctx); err != nil {
		logger.Error("ensure permission vocabulary", slog.Any("error", err))
		os.Exit(1)
	}
	resolver := rbac.NewResolver(rbacService, logger, metrics)
	registry := policy.DefaultRegistry()
	gate := policy.NewGate(registry, resolver, logger)
	rbacMiddleware := rbac.Middleware{Authorizer: gate, Logger: logger}

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	authService := auth.NewService(auth.NewRepository(pool), logger)
	authHandler := auth.NewHandler(logger, authService, sessionManager)

	auditLogger := shared.NewAuditLogger(pool)
	rolesService := roles.NewService(rbacService, gate, auditLogger)
	usersService := users.NewService(users.NewRepository(pool), rbacService, gate, auditLogger, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:   logger,
		Config:   cfg,
		Sessions: sessionManager,
		Actors:   app.NewActorLoader(authService, rbacService),
		Metrics:  metrics,
		Health: map[string]app.HealthCheck{
			"postgres": pool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
		AuthHandler:        authHandler,
		MeHandler:          auth.NewMeHandler(gate, registry.Resources()),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, gate, rbacMiddleware, registry.Resources()),
		RolesHandler:       roles.NewHandler(logger, rolesService),
		UsersHandler:       users.NewHandler(logger, usersService),
		RBACMiddleware:     rbacMiddleware,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
