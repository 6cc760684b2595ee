package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"profile-registry/config"
	"profile-registry/internal/database/migration"
	"profile-registry/internal/delivery/http/cache"
	v1 "profile-registry/internal/delivery/http/v1"
	"profile-registry/internal/domain"
	"profile-registry/internal/lifecycle"
	"profile-registry/internal/repository/memory"
	"profile-registry/internal/repository/postgres"
	"profile-registry/internal/repository/retrying"
	"profile-registry/internal/search"
	"profile-registry/internal/usecase"
	"profile-registry/pkg/auth"
	"profile-registry/pkg/database"
	"profile-registry/pkg/logger"
	"profile-registry/pkg/metrics"
	redispkg "profile-registry/pkg/redis"
	"profile-registry/pkg/tracing"
	"profile-registry/pkg/validation"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "profile-registry"

type stores struct {
	profiles domain.AggregateRepository
	search   domain.SearchRepository
	codes    domain.ClassificationCodeStore
	probes   map[string]usecase.Probe
	close    func()
}

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Setup Logger and tracing
	logger.Init(cfg.LogLevel)
	logger.Log.Info("Starting profile registry", "port", cfg.Port, "storage", cfg.StorageDriver)

	ctx := context.Background()
	shutdownTracing, err := tracing.Init(ctx, logger.Log, cfg.OTelEndpoint, serviceName, cfg.Environment)
	if err != nil {
		logger.Log.Error("Failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// 3. Setup Storage
	st, err := openStores(ctx, cfg)
	if err != nil {
		logger.Log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	defer st.close()

	policy := retrying.Policy(cfg.StorageRetryAttempts, cfg.StorageRetryInitialBackoff, cfg.StorageRetryMaxBackoff)
	profileRepo := retrying.NewAggregateRepository(st.profiles, policy, logger.Log)
	searchRepo := retrying.NewSearchRepository(st.search, policy, logger.Log)
	codeStore := retrying.NewClassificationCodeStore(st.codes, policy, logger.Log)

	// 4. Setup Redis (optional)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redispkg.New(ctx, redispkg.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword})
		if err != nil {
			logger.Log.Warn("Redis unavailable, continuing without cache", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			st.probes["redis"] = func(ctx context.Context) error { return redispkg.HealthCheck(ctx, redisClient) }
		}
	}

	// 5. Setup UseCases
	engine := search.NewEngine(searchRepo, codeStore, search.Options{
		DefaultLimit: cfg.SearchDefaultLimit,
		MaxLimit:     cfg.SearchMaxLimit,
	})
	profileUC := usecase.NewProfileUsecase(
		profileRepo,
		codeStore,
		engine,
		lifecycle.New(cfg.ResubmissionWindow),
		validation.New(),
		metrics.New(nil),
	)
	healthUC := usecase.NewHealthUsecase(st.probes)

	// 6. Setup Router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	var jwks *auth.Provider
	if cfg.AuthJWKSURL != "" {
		jwks = auth.NewProvider(cfg.AuthJWKSURL)
	}
	router := v1.NewRouter(v1.RouterDeps{
		ProfileUC: profileUC,
		HealthUC:  healthUC,
		Codes:     cache.NewCodeCache(profileUC, redisClient, cfg.CodeCacheTTL),
		Redis:     redisClient,
		Config:    cfg,
		JWKS:      jwks,
	})

	// 7. Start Server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("Listen failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Log.Error("Tracer shutdown failed", "error", err)
	}

	logger.Log.Info("Server exiting")
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		logger.Log.Warn("Using in-memory storage; data is lost on restart")
		profiles := memory.NewProfileStore()
		return &stores{
			profiles: profiles,
			search:   memory.NewSearchStore(profiles),
			codes:    memory.NewClassificationStore(memory.DefaultCodes),
			probes:   map[string]usecase.Probe{},
			close:    func() {},
		}, nil
	}

	opts := database.DefaultPoolOptions()
	opts.SimpleProtocol = cfg.DBSimpleProtocol
	pool, err := database.NewPostgresConnection(ctx, cfg.DBUrl, opts)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if err := (migration.Runner{}).Run(migrateCtx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &stores{
		profiles: postgres.NewProfileRepository(pool),
		search:   postgres.NewSearchRepository(pool),
		codes:    postgres.NewClassificationRepository(pool),
		probes:   map[string]usecase.Probe{"database": pool.Ping},
		close:    pool.Close,
	}, nil
}
