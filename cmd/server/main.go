package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"travel-backend/internal/archive"
	"travel-backend/internal/auth"
	"travel-backend/internal/cache"
	"travel-backend/internal/config"
	"travel-backend/internal/database"
	"travel-backend/internal/db"
	"travel-backend/internal/handlers"
	"travel-backend/internal/health"
	h "travel-backend/internal/http"
	"travel-backend/internal/logging"
	"travel-backend/internal/middleware"
	"travel-backend/internal/repositories"
	"travel-backend/internal/services"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	migrationsDir := flag.String("migrations", "migrations", "directory holding SQL migrations")
	flag.Parse()

	cfg := config.LoadFrom(*configPath)
	if cfg.JWT.Secret == "" {
		log.Fatal("JWT secret is required (set JWT_SECRET)")
	}

	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, *migrationsDir, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, migrationsDir string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.NewMigrator(pool, migrationsDir, logger).RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	deps := &services.MergeDeps{
		Stores: services.NewStores(pool),
		Tx:     services.NewPgTransactor(pool),
		Config: cfg.Merge,
		Logger: logger,
	}

	var cachePing health.CachePinger
	if cfg.Redis.Enabled {
		if err := cache.Init(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
			// Duplicate scans work uncached.
			logger.Warn("redis unavailable, caching disabled", zap.Error(err))
		} else {
			defer cache.Close()
			deps.Cache = cache.NewDuplicateCache(time.Duration(cfg.Redis.TTLSeconds) * time.Second)
			cachePing = func(ctx context.Context) error { return cache.GetClient().Ping(ctx).Err() }
			logger.Info("redis cache enabled", zap.String("addr", cfg.Redis.Addr))
		}
	}

	if cfg.Archive.Enabled {
		archiver, err := archive.NewFromConfig(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("archive: %w", err)
		}
		deps.Archiver = archiver
		logger.Info("merge audit archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	jwtManager := auth.NewJWTManager(cfg)
	userRepo := repositories.NewUserRepository(pool)

	travellerService := services.NewTravellerMergeService(deps)
	consultantService := services.NewConsultantMergeService(deps)
	auditService := services.NewMergeAuditService(deps.Stores.Audits, travellerService, consultantService)

	router := h.NewRouter(cfg, h.Handlers{
		Auth:            handlers.NewAuthHandler(services.NewUserService(userRepo, jwtManager), logger),
		Health:          handlers.NewHealthHandler(health.NewHealthChecker(pool, cachePing)),
		TravellerMerge:  handlers.NewTravellerMergeHandler(travellerService, logger),
		ConsultantMerge: handlers.NewConsultantMergeHandler(consultantService, logger),
		MergeAudit:      handlers.NewMergeAuditHandler(auditService, logger),
	}, middleware.NewAuthMiddleware(jwtManager, userRepo), logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
