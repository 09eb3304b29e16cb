package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"liquidity-pulse/internal/domain"
	"liquidity-pulse/internal/pipeline"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	snapshotCacheKey = "liquidity:snapshot"
	snapshotCacheTTL = 5 * time.Minute
)

// PipelineRunner executes one batch reconciliation cycle.
type PipelineRunner interface {
	Run(ctx context.Context) (*pipeline.RunResult, error)
}

// RunStore persists and lists the run audit trail.
type RunStore interface {
	RecordResult(ctx context.Context, status domain.RunStatus, startedAt, finishedAt time.Time, rowCount int, lastDate string, outcomes []domain.FetchOutcome, runErr string) (int64, error)
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
}

// Notifier pushes operational alerts. Implementations must be safe to skip
// (the service tolerates nil).
type Notifier interface {
	SendRunAlert(message string)
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// LiquidityService sits between the pipeline and the API: it refreshes the
// artifact, keeps the audit trail, and serves snapshot reads with a Redis
// cache in front of the file.
type LiquidityService struct {
	tracer     trace.Tracer
	runner     PipelineRunner
	runs       RunStore
	redis      RedisClient
	notifier   Notifier
	outputPath string
}

func NewLiquidityService(
	tracer trace.Tracer,
	runner PipelineRunner,
	runs RunStore,
	redisClient RedisClient,
	notifier Notifier,
	outputPath string,
) *LiquidityService {
	return &LiquidityService{
		tracer:     tracer,
		runner:     runner,
		runs:       runs,
		redis:      redisClient,
		notifier:   notifier,
		outputPath: outputPath,
	}
}

// Refresh runs the pipeline and, on success, atomically replaces the artifact,
// refreshes the cache, and records the run. A failed run records the failure
// and leaves the previous artifact untouched.
func (s *LiquidityService) Refresh(ctx context.Context) error {
	_, span := s.tracer.Start(ctx, "liquidity-service.refresh")
	defer span.End()

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.record(ctx, domain.RunStatusFailed, result, err)
		s.alert(fmt.Sprintf("Liquidity pipeline failed: %v", err))
		return err
	}

	if err := pipeline.WriteSnapshot(s.outputPath, result.Snapshot); err != nil {
		s.record(ctx, domain.RunStatusFailed, result, err)
		s.alert(fmt.Sprintf("Liquidity snapshot write failed: %v", err))
		return err
	}

	s.cacheSnapshot(ctx, result.Snapshot)
	s.record(ctx, result.Status(), result, nil)

	if result.Degraded {
		s.alert("Liquidity pipeline running in degraded mode: daily cash balance unavailable, using weekly fallback")
	}

	log.Printf("liquidity snapshot refreshed: %d rows, last_updated=%s, status=%s",
		len(result.Rows), result.Snapshot.Meta.LastUpdated, result.Status())
	return nil
}

// GetSnapshot returns the published artifact, preferring the Redis cache and
// falling back to the file the batch job wrote.
func (s *LiquidityService) GetSnapshot(ctx context.Context) (*pipeline.Snapshot, error) {
	_, span := s.tracer.Start(ctx, "liquidity-service.get-snapshot")
	defer span.End()

	if s.redis != nil {
		if data, err := s.redis.Get(ctx, snapshotCacheKey).Bytes(); err == nil {
			var snap pipeline.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
			log.Printf("discarding corrupt cached snapshot: %v", err)
		}
	}

	snap, err := pipeline.ReadSnapshot(s.outputPath)
	if err != nil {
		return nil, fmt.Errorf("no snapshot available: %w", err)
	}
	s.cacheSnapshot(ctx, snap)
	return snap, nil
}

// Latest summarizes the most recent aligned row of the published artifact.
type Latest struct {
	Date            string  `json:"date"`
	NetLiquidity    float64 `json:"net_liquidity"`
	FedAssets       float64 `json:"fed_assets"`
	TGA             float64 `json:"tga"`
	RRP             float64 `json:"rrp"`
	LoansFacilities float64 `json:"loans_facilities"`
	LoansHeld       float64 `json:"loans_held"`
	FormulaVersion  string  `json:"formula_version"`
}

func (s *LiquidityService) GetLatest(ctx context.Context) (*Latest, error) {
	ctx, span := s.tracer.Start(ctx, "liquidity-service.get-latest")
	defer span.End()

	snap, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(snap.Formula1) == 0 {
		return nil, fmt.Errorf("snapshot has no rows")
	}

	last := func(entries []pipeline.SnapshotEntry) float64 {
		return entries[len(entries)-1].Value
	}
	return &Latest{
		Date:            snap.Meta.LastUpdated,
		NetLiquidity:    last(snap.Formula1),
		FedAssets:       last(snap.FedAssets),
		TGA:             last(snap.TGA),
		RRP:             last(snap.RRP),
		LoansFacilities: last(snap.LoansFacilities),
		LoansHeld:       last(snap.LoansHeld),
		FormulaVersion:  domain.FormulaVersion,
	}, nil
}

// GetSeries returns one published array by snapshot key.
func (s *LiquidityService) GetSeries(ctx context.Context, id domain.SeriesID) ([]pipeline.SnapshotEntry, error) {
	ctx, span := s.tracer.Start(ctx, "liquidity-service.get-series")
	defer span.End()

	snap, err := s.GetSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	entries, ok := snap.Series(id)
	if !ok {
		return nil, fmt.Errorf("unknown series: %s", id)
	}
	return entries, nil
}

// GetRuns lists the most recent audit records.
func (s *LiquidityService) GetRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	_, span := s.tracer.Start(ctx, "liquidity-service.get-runs")
	defer span.End()

	if s.runs == nil {
		return nil, fmt.Errorf("run history disabled")
	}
	return s.runs.ListRuns(ctx, limit)
}

func (s *LiquidityService) cacheSnapshot(ctx context.Context, snap *pipeline.Snapshot) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, snapshotCacheKey, data, snapshotCacheTTL).Err(); err != nil {
		log.Printf("redis cache write error: %v", err)
	}
}

func (s *LiquidityService) record(ctx context.Context, status domain.RunStatus, result *pipeline.RunResult, runErr error) {
	if s.runs == nil || result == nil {
		return
	}
	lastDate := ""
	rowCount := 0
	if result.Snapshot != nil {
		lastDate = result.Snapshot.Meta.LastUpdated
		rowCount = len(result.Rows)
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if _, err := s.runs.RecordResult(ctx, status, result.StartedAt, result.FinishedAt, rowCount, lastDate, result.Outcomes, msg); err != nil {
		log.Printf("failed to record pipeline run: %v", err)
	}
}

func (s *LiquidityService) alert(message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.SendRunAlert(message)
}
