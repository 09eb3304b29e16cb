package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"liquidity-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

// FREDClient fetches one FRED series by code.
type FREDClient interface {
	FetchSeries(ctx context.Context, id domain.SeriesID, code string, start time.Time) (domain.Series, error)
}

// TreasuryClient fetches the daily Treasury cash balance.
type TreasuryClient interface {
	FetchCashBalance(ctx context.Context, start time.Time) (domain.Series, error)
}

type Config struct {
	StartDate    time.Time
	FetchTimeout time.Duration
}

// Service runs the full fetch → normalize → merge → derive → snapshot
// pipeline. Fetches run concurrently; everything after the fetch barrier is
// sequential and deterministic.
type Service struct {
	tracer   trace.Tracer
	fred     FREDClient
	treasury TreasuryClient
	cfg      Config
}

func NewService(tracer trace.Tracer, fred FREDClient, treasury TreasuryClient, cfg Config) *Service {
	if cfg.StartDate.IsZero() {
		cfg.StartDate = time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Service{tracer: tracer, fred: fred, treasury: treasury, cfg: cfg}
}

// RunResult is the materialized outcome of one pipeline run.
type RunResult struct {
	Rows       []domain.LiquidityRow
	Snapshot   *Snapshot
	Degraded   bool
	Outcomes   []domain.FetchOutcome
	StartedAt  time.Time
	FinishedAt time.Time
}

// Status maps the result onto the audit-trail status values.
func (r *RunResult) Status() domain.RunStatus {
	if r.Degraded {
		return domain.RunStatusDegraded
	}
	return domain.RunStatusOK
}

// Run executes one batch cycle. Per-series fetch failures are isolated: the
// series comes back empty with a recorded reason and the run continues. Only
// two conditions abort: the Fed balance-sheet series (the formula's anchor)
// is entirely absent, or no complete row survives the merge.
func (s *Service) Run(ctx context.Context) (*RunResult, error) {
	_, span := s.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	result := &RunResult{StartedAt: time.Now().UTC()}

	descriptors := domain.FetchedDescriptors()
	fetched := make([]domain.FetchResult, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, d domain.Descriptor) {
			defer wg.Done()
			fetched[i] = s.fetchOne(ctx, d)
		}(i, d)
	}
	// Barrier: every series is fully materialized before the merge begins.
	wg.Wait()

	raw := make(map[domain.SeriesID]domain.Series, len(fetched))
	for i, res := range fetched {
		outcome := domain.FetchOutcome{Series: res.ID, OK: res.OK(), Rows: len(res.Series.Points)}
		if res.Err != nil {
			outcome.Reason = res.Err.Error()
			log.Printf("fetch %s failed: %v", res.ID, res.Err)
		}
		result.Outcomes = append(result.Outcomes, outcome)
		raw[res.ID] = res.Series

		if descriptors[i].Fatal && res.Series.Empty() {
			result.FinishedAt = time.Now().UTC()
			return result, fmt.Errorf("primary source %s is empty, aborting run", res.ID)
		}
	}

	normalized := make(map[domain.SeriesID]domain.Series, len(descriptors))
	for _, d := range descriptors {
		normalized[d.ID] = Normalize(raw[d.ID], d)
	}

	if normalized[domain.SeriesTGADaily].Empty() {
		if normalized[domain.SeriesTGAWeekly].Empty() {
			result.FinishedAt = time.Now().UTC()
			return result, fmt.Errorf("cash balance unavailable from both sources, aborting run")
		}
		result.Degraded = true
		log.Printf("degraded mode: daily cash balance unavailable, using weekly fallback")
	}

	tga, tgaOrigins := Reconcile(domain.SeriesTGA,
		normalized[domain.SeriesTGADaily],
		normalized[domain.SeriesTGAWeekly],
	)

	required := domain.RequiredSeries()
	table := Join(
		normalized[domain.SeriesFedAssets],
		tga,
		normalized[domain.SeriesRRP],
		normalized[domain.SeriesLoansFacilities],
		normalized[domain.SeriesLoansHeld],
	)
	table.ForwardFill(required...)
	table.DropIncomplete(required...)

	if table.Len() == 0 {
		result.FinishedAt = time.Now().UTC()
		return result, fmt.Errorf("no complete rows after merge, aborting run")
	}

	Derive(table)

	result.Rows = table.Rows(tgaOrigins)
	result.Snapshot = BuildSnapshot(result.Rows)
	result.FinishedAt = time.Now().UTC()
	return result, nil
}

// fetchOne calls the right provider for a descriptor under the configured
// timeout and converts any failure into a tagged empty result.
func (s *Service) fetchOne(ctx context.Context, d domain.Descriptor) domain.FetchResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	var (
		series domain.Series
		err    error
	)
	switch d.Source {
	case domain.SourceTreasury:
		series, err = s.treasury.FetchCashBalance(ctx, s.cfg.StartDate)
	default:
		series, err = s.fred.FetchSeries(ctx, d.ID, d.FredCode, s.cfg.StartDate)
	}
	if err != nil {
		return domain.FetchResult{ID: d.ID, Series: domain.Series{ID: d.ID}, Err: err}
	}
	return domain.FetchResult{ID: d.ID, Series: series}
}
