package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danchettos12/EntrevistIA/internal/auth"
	"github.com/danchettos12/EntrevistIA/internal/coach"
	"github.com/danchettos12/EntrevistIA/internal/config"
	"github.com/danchettos12/EntrevistIA/internal/flow"
	"github.com/danchettos12/EntrevistIA/internal/handlers"
	"github.com/danchettos12/EntrevistIA/internal/jobs"
	"github.com/danchettos12/EntrevistIA/internal/kv"
	"github.com/danchettos12/EntrevistIA/internal/llm"
	_ "github.com/danchettos12/EntrevistIA/internal/llm/gemini"
	"github.com/danchettos12/EntrevistIA/internal/mailer"
	"github.com/danchettos12/EntrevistIA/internal/metrics"
	"github.com/danchettos12/EntrevistIA/internal/prompts"
	"github.com/danchettos12/EntrevistIA/internal/routers"
	"github.com/danchettos12/EntrevistIA/internal/store"
	"github.com/danchettos12/EntrevistIA/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// lifetime of an issued session token
const sessionTokenTTL = 7 * 24 * time.Hour

func registerRoutes(router *chi.Mux, appHandler *handlers.AppHandler, authHandler *handlers.AuthHandler, healthHandler *handlers.HealthHandler) {
	routers.HealthRoutes(router, healthHandler)
	routers.AuthRoutes(router, authHandler)
	routers.AppRoutes(router, appHandler)
}

// newAIProvider builds the configured provider. Missing credentials are not fatal: the
// gateway then fails fast and questions fall back to a fixed prompt.
func newAIProvider(name string, logger *zap.Logger) (llm.Provider, error) {
	provider, err := llm.NewProviderOrUnconfigured(name)
	if provider == nil {
		return nil, err
	}
	if u, ok := provider.(*llm.Unconfigured); ok {
		logger.Warn("AI provider not configured, running with fallback questions",
			zap.String("provider", u.Name),
			zap.String("reason", u.Reason))
	}
	return provider, nil
}

// identity is what every instance must share for sign-in state to agree.
type identity struct {
	notifier    auth.Notifier
	revocations auth.RevocationList // nil keeps revocations in process
}

func (id identity) tokens(secret string) *auth.TokenIssuer {
	return auth.NewTokenIssuer(secret, sessionTokenTTL).WithRevocations(id.revocations)
}

// backend is the persistence and auth pair chosen by the configured mode.
type backend struct {
	gateway  auth.Gateway
	sessions store.SessionStore
	cleanup  *jobs.RegistrationCleanupJob
	close    func() error
}

func newLocalBackend(cfg *config.Config, id identity, logger *zap.Logger) (*backend, error) {
	kvStore, err := kv.Open(cfg.LocalStorePath)
	if err != nil {
		return nil, err
	}
	sessions := store.NewLocalStore(kvStore, logger)
	gateway := auth.NewLocalGateway(kvStore, id.tokens(cfg.JWTSecret), id.notifier, logger)
	return &backend{
		gateway:  gateway,
		sessions: sessions,
		close:    kvStore.Close,
	}, nil
}

func newRemoteBackend(cfg *config.Config, id identity, logger *zap.Logger) (*backend, error) {
	sessions, db, err := store.OpenPostgres(cfg.BackendURL, logger)
	if err != nil {
		return nil, err
	}

	// without SMTP, accounts are confirmed at registration
	var sender auth.ConfirmationSender
	if cfg.SMTP.Enabled() {
		sender = mailer.New(cfg.SMTP, logger)
	} else {
		logger.Warn("SMTP not configured, registration confirmation is disabled")
	}

	gateway, err := auth.NewRemoteGateway(auth.RemoteOptions{
		DB:              db,
		Tokens:          id.tokens(cfg.BackendKey),
		Notifier:        id.notifier,
		Mailer:          sender,
		AppURL:          cfg.AppURL,
		ConfirmationTTL: cfg.ConfirmationTTL,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	closeDB := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return &backend{
		gateway:  gateway,
		sessions: sessions,
		cleanup:  jobs.NewRegistrationCleanupJob(gateway, cfg.CleanupSchedule, logger),
		close:    closeDB,
	}, nil
}

// app is the fully wired service, minus the listening socket.
type app struct {
	router   *chi.Mux
	registry *flow.Registry
	backend  *backend
	rdb      *redis.Client
	stop     context.CancelFunc
	logger   *zap.Logger
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	if cfg.JWTSecretGenerated {
		logger.Warn("JWT_SECRET not set, using a generated secret; local session tokens will not survive a restart")
	}

	// prompt manager
	promptManager, err := prompts.NewPromptManager()
	if err != nil {
		return nil, err
	}

	aiProvider, err := newAIProvider(cfg.Provider, logger)
	if err != nil {
		return nil, err
	}
	aiGateway := coach.NewGateway(aiProvider, promptManager, logger)

	ctx, stop := context.WithCancel(context.Background())

	// identity events and logouts cross instances through redis when it is available
	id := identity{notifier: auth.NewLocalNotifier()}
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		redisNotifier := auth.NewRedisNotifier(rdb, logger)
		id.notifier = redisNotifier
		id.revocations = auth.NewRedisRevocations(rdb)
		go func() {
			if err := redisNotifier.Listen(ctx, nil); err != nil {
				logger.Error("Identity event listener stopped", zap.Error(err))
			}
		}()
	}

	var be *backend
	if cfg.Mode() == config.ModeRemote {
		be, err = newRemoteBackend(cfg, id, logger)
	} else {
		be, err = newLocalBackend(cfg, id, logger)
	}
	if err != nil {
		stop()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}

	if be.cleanup != nil {
		if err := be.cleanup.Start(); err != nil {
			logger.Error("Failed to start registration cleanup job", zap.Error(err))
		} else {
			logger.Info("Registration cleanup job started", zap.String("schedule", cfg.CleanupSchedule))
		}
	}

	registry := flow.NewRegistry(flow.Deps{
		Auth:   be.gateway,
		Store:  be.sessions,
		AI:     aiGateway,
		Logger: logger,
	}, cfg.ClientTTL)

	appHandler := handlers.NewAppHandler(registry, cfg.AllowedOrigins, logger)
	authHandler := handlers.NewAuthHandler(be.gateway, logger)
	healthHandler := handlers.NewHealthHandler(aiGateway, promptManager, be.sessions, be.gateway, cfg.Mode())

	router := chi.NewRouter()

	// cors middleware
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// no Timeout middleware: AI calls and the events socket outlive it
	router.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer, metrics.Middleware)

	registerRoutes(router, appHandler, authHandler, healthHandler)

	return &app{
		router:   router,
		registry: registry,
		backend:  be,
		rdb:      rdb,
		stop:     stop,
		logger:   logger,
	}, nil
}

// Close releases everything newApp started.
func (a *app) Close() {
	a.registry.Close()
	if a.backend.cleanup != nil {
		a.backend.cleanup.Stop()
		a.logger.Info("Registration cleanup job stopped")
	}
	a.stop()
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if err := a.backend.close(); err != nil {
		a.logger.Warn("Failed to close backend", zap.Error(err))
	}
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger, err := utils.NewLogger(cfg.LogFile)
	if err != nil {
		bootLogger, _ := zap.NewProduction()
		bootLogger.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("provider", cfg.Provider),
		zap.String("mode", cfg.Mode()))

	application, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize service", zap.String("mode", cfg.Mode()), zap.Error(err))
	}

	serverAddr := ":" + cfg.Port

	// http server with timeouts
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           application.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// starting server in a goroutine
	go func() {
		logger.Info("EntrevistIA starting", zap.String("addr", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// wait for interrupt signal to gracefully shutdown the server
	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("EntrevistIA shutting down...")

	// graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	application.Close()
	logger.Info("EntrevistIA exited")
}
