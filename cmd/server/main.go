package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"liquidity-pulse/internal/bot"
	"liquidity-pulse/internal/cache"
	"liquidity-pulse/internal/config"
	"liquidity-pulse/internal/db"
	"liquidity-pulse/internal/handler"
	"liquidity-pulse/internal/job"
	"liquidity-pulse/internal/pipeline"
	"liquidity-pulse/internal/provider"
	"liquidity-pulse/internal/repository"
	"liquidity-pulse/internal/service"
	"liquidity-pulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	_ "liquidity-pulse/docs"
)

var (
	loadEnvFunc             = godotenv.Load
	loadConfigFunc          = config.Load
	initPostgresFunc        = db.InitPostgres
	initRedisFunc           = cache.InitRedis
	initTracerFunc          = tracing.InitTracer
	newFREDProviderFunc     = func(tracer trace.Tracer) pipeline.FREDClient { return provider.NewFREDProvider(tracer) }
	newTreasuryProviderFunc = func(tracer trace.Tracer) pipeline.TreasuryClient { return provider.NewTreasuryProvider(tracer) }
	startRefreshJobFunc     = func(j *job.RefreshJob, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc    = bot.StartTelegramBot
	newRouterFunc           = gin.Default
	setupSignalNotify       = signal.Notify
	waitForSignalFunc       = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc     = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc  = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Liquidity Pulse API
// @version         1.0
// @description     US net-liquidity pipeline: FRED and Treasury series reconciled into one snapshot.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Run audit trail is optional: without Postgres the pipeline still
	// refreshes the artifact, it just keeps no history.
	var runStore service.RunStore
	if db.Pool != nil {
		runRepo := repository.NewRunRepository(db.Pool, tracer)
		if err := runRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		runStore = runRepo
	}

	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}

	// Providers and the batch pipeline
	fred := newFREDProviderFunc(tracer)
	treasury := newTreasuryProviderFunc(tracer)
	pipelineSvc := pipeline.NewService(tracer, fred, treasury, pipeline.Config{
		StartDate:    cfg.StartDate,
		FetchTimeout: time.Duration(cfg.FetchTimeoutSecs) * time.Second,
	})

	alerter := bot.NewAlerter(cfg.TelegramBotToken, cfg.TelegramChatID)
	liquidityService := service.NewLiquidityService(tracer, pipelineSvc, runStore, redisClient, alerter, cfg.OutputPath)

	// Background refresh (runs one cycle immediately, stopped by ctx cancel)
	refreshJob := job.NewRefreshJob(tracer, liquidityService, time.Duration(cfg.RefreshIntervalSecs)*time.Second)
	startRefreshJobFunc(refreshJob, ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(liquidityService)

	// Create handlers and routes
	h := handler.New(tracer, liquidityService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("liquidity-pulse"))

	h.RegisterRoutes(r, cfg.APIKey)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
