package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/adforge/core/internal/config"
	"github.com/adforge/core/internal/database"
	"github.com/adforge/core/internal/middleware"
	"github.com/adforge/core/internal/modules/billing/credits"
	"github.com/adforge/core/internal/modules/campaign"
	"github.com/adforge/core/internal/modules/generation/coordinator"
	"github.com/adforge/core/internal/modules/generation/fallback"
	"github.com/adforge/core/internal/modules/generation/provider"
	"github.com/adforge/core/internal/modules/learning/optimizer"
	"github.com/adforge/core/internal/modules/learning/performance"
	"github.com/adforge/core/internal/modules/storage/hosting"
	pkgcron "github.com/adforge/core/internal/pkg/cron"
	"github.com/adforge/core/internal/pkg/jwt"
	"github.com/adforge/core/internal/pkg/metrics"
	pkgredis "github.com/adforge/core/internal/pkg/redis"
	"github.com/adforge/core/internal/pkg/taskqueue"
)

// App holds all application dependencies.
type App struct {
	cfg      *config.AppConfig
	router   *gin.Engine
	db       *gorm.DB
	logger   *zap.Logger
	cancel   context.CancelFunc
	sched    *pkgcron.Scheduler
	registry *metrics.Registry
}

// New initializes the application: config → DB → Redis → pipeline → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	jwt.SetSecret(cfg.JWTSecret)

	db, err := database.Connect(cfg, true)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	rc, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	chains, err := provider.BuildChains(cfg.Providers, cfg.Timeouts)
	if err != nil {
		return nil, fmt.Errorf("providers: %w", err)
	}
	tiers, err := hosting.BuildTiers(cfg.Storage, cfg.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	registry := metrics.NewRegistry()
	pipeline := hosting.NewPipeline(db, tiers, registry, logger.Named("hosting"))
	orchestrator := fallback.NewOrchestrator(chains, cfg.Timeouts, registry, logger.Named("fallback"))

	creditsSvc := credits.NewService(db, cfg.Credits, logger.Named("credits"))
	optimizerSvc := optimizer.NewService(db, cfg.Learning, logger.Named("optimizer"))
	performanceSvc := performance.NewService(db, cfg.Learning, chains, logger.Named("performance"))
	campaignSvc := campaign.NewService(db)
	coordinatorSvc := coordinator.NewService(
		creditsSvc, optimizerSvc, orchestrator, pipeline, campaignSvc, registry,
		logger.Named("coordinator"),
	)
	tasks := taskqueue.NewService(rc)

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "x-idempotence"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
		for _, origin := range cfg.AllowedOrigins {
			allowed[origin] = struct{}{}
		}
		corsConfig.AllowOriginFunc = func(origin string) bool {
			_, ok := allowed[origin]
			return ok
		}
	} else {
		corsConfig.AllowOriginFunc = func(string) bool { return true }
	}
	router.Use(cors.New(corsConfig))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	registerCronJobs(sched, pipeline, tasks, logger.Named("cron"))
	go sched.Start(ctx)

	app := &App{
		cfg:      cfg,
		router:   router,
		db:       db,
		logger:   logger,
		cancel:   cancel,
		sched:    sched,
		registry: registry,
	}
	app.registerRoutes(rc, routeDeps{
		coordinator: coordinator.NewHandler(coordinatorSvc, logger.Named("generate")),
		performance: performance.NewHandler(performanceSvc, tasks, logger.Named("performance")),
		credits:     credits.NewHandler(creditsSvc),
		campaigns:   campaign.NewHandler(campaignSvc),
		tasks:       tasks,
		localTier:   pipeline.LocalTier(),
	})

	return app, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }
