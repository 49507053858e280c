package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"go-auth-service/internal/cache"
	"go-auth-service/internal/config"
	"go-auth-service/internal/database"
	"go-auth-service/internal/event"
	"go-auth-service/internal/handler"
	"go-auth-service/internal/metrics"
	"go-auth-service/internal/middleware"
	"go-auth-service/internal/repository"
	"go-auth-service/internal/router"
	"go-auth-service/internal/service"
)

const (
	shutdownTimeout = 10 * time.Second
	version         = "1.0.0"
)

type App struct {
	logger  *slog.Logger
	server  *http.Server
	db      *database.DB
	redis   *redis.Client
	audit   *service.AuditService
	cleanup *service.CleanupService
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, database.Options{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	logger.Info("database ready")

	redisClient, err := cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure redis: %w", err)
	}

	m := metrics.New()
	bus := event.NewBus(event.WithDropHandler(func(e event.Event) {
		m.EventDropped(string(e.Type))
	}))

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool, cfg.DBQueryTimeout)
	tokenRepo := repository.NewTokenRepository(pool, cfg.DBQueryTimeout)
	auditRepo := repository.NewAuditRepository(pool, cfg.DBQueryTimeout)
	sessions := cache.NewSessionCache(redisClient, cfg.CacheTimeout, logger, m)

	fail := func(err error) (*App, error) {
		_ = redisClient.Close()
		db.Close()
		return nil, err
	}

	credentials, err := service.NewCredentialService(cfg.BcryptRounds)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize credentials: %w", err))
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		Issuer:        cfg.JWTIssuer,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token service: %w", err))
	}

	authService := service.NewAuthService(service.AuthDeps{
		Users:         userRepo,
		Tokens:        tokenRepo,
		Sessions:      sessions,
		Credentials:   credentials,
		JWT:           tokens,
		Bus:           bus,
		Observer:      m,
		Logger:        logger,
		RotateRefresh: cfg.RefreshRotation,
	})
	moderationService := service.NewModerationService(userRepo, tokenRepo, sessions, bus, m, logger)
	auditService := service.NewAuditService(auditRepo, bus, logger)

	cleanupService, err := service.NewCleanupService(tokenRepo, cfg.TokenCleanupSchedule, m, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize token cleanup: %w", err))
	}

	appRouter := router.New(cfg, logger, middleware.NewAuthMiddleware(authService), m, router.Handlers{
		Auth:       handler.NewAuthHandler(authService),
		User:       handler.NewUserHandler(authService),
		Moderation: handler.NewModerationHandler(moderationService),
		Audit:      handler.NewAuditHandler(auditService),
		Health:     handler.NewHealthHandler(db, sessions, version),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return &App{
		logger:  logger,
		server:  server,
		db:      db,
		redis:   redisClient,
		audit:   auditService,
		cleanup: cleanupService,
	}, nil
}

// Run serves until ctx is cancelled, then drains HTTP traffic, flushes the
// audit trail and closes the database and redis clients.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.audit.Run(gctx)
	})

	g.Go(func() error {
		return a.cleanup.Run(gctx)
	})

	g.Go(func() error {
		a.logger.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err := g.Wait()

	if closeErr := a.redis.Close(); closeErr != nil {
		a.logger.Warn("failed to close redis client", "error", closeErr.Error())
	}
	a.db.Close()

	if err != nil {
		return err
	}

	a.logger.Info("server stopped")
	return nil
}
