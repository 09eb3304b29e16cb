package main

import (
	"context"
	"log"
	"time"

	"liquidity-pulse/internal/bot"
	"liquidity-pulse/internal/config"
	"liquidity-pulse/internal/db"
	"liquidity-pulse/internal/pipeline"
	"liquidity-pulse/internal/provider"
	"liquidity-pulse/internal/repository"
	"liquidity-pulse/internal/service"
	"liquidity-pulse/pkg/tracing"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc             = godotenv.Load
	loadConfigFunc          = config.Load
	initPostgresFunc        = db.InitPostgres
	initTracerFunc          = tracing.InitTracer
	newFREDProviderFunc     = func(tracer trace.Tracer) pipeline.FREDClient { return provider.NewFREDProvider(tracer) }
	newTreasuryProviderFunc = func(tracer trace.Tracer) pipeline.TreasuryClient { return provider.NewTreasuryProvider(tracer) }
	fatalFunc               = log.Fatalf
)

// One-shot batch entry point: fetch, reconcile, write the snapshot, exit.
// Built for cron and CI; a fatal pipeline error exits non-zero and leaves
// any previous artifact untouched.
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initPostgresFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		fatalFunc("failed to initialize tracer: %v", err)
		return
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	var runStore service.RunStore
	if db.Pool != nil {
		runRepo := repository.NewRunRepository(db.Pool, tracer)
		if err := runRepo.RunMigrations(ctx); err != nil {
			fatalFunc("failed to run migrations: %v", err)
			return
		}
		runStore = runRepo
	}

	fred := newFREDProviderFunc(tracer)
	treasury := newTreasuryProviderFunc(tracer)
	pipelineSvc := pipeline.NewService(tracer, fred, treasury, pipeline.Config{
		StartDate:    cfg.StartDate,
		FetchTimeout: time.Duration(cfg.FetchTimeoutSecs) * time.Second,
	})

	alerter := bot.NewAlerter(cfg.TelegramBotToken, cfg.TelegramChatID)
	liquidityService := service.NewLiquidityService(tracer, pipelineSvc, runStore, nil, alerter, cfg.OutputPath)

	if err := liquidityService.Refresh(ctx); err != nil {
		fatalFunc("pipeline run failed: %v", err)
		return
	}
	log.Printf("snapshot written to %s", cfg.OutputPath)
}
