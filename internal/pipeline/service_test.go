package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"liquidity-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubFRED struct {
	series map[string]domain.Series
	errs   map[string]error
}

func (f *stubFRED) FetchSeries(ctx context.Context, id domain.SeriesID, code string, start time.Time) (domain.Series, error) {
	if err := f.errs[code]; err != nil {
		return domain.Series{ID: id}, err
	}
	s := f.series[code]
	s.ID = id
	return s, nil
}

type stubTreasury struct {
	series domain.Series
	err    error
}

func (t *stubTreasury) FetchCashBalance(ctx context.Context, start time.Time) (domain.Series, error) {
	if t.err != nil {
		return domain.Series{ID: domain.SeriesTGADaily}, t.err
	}
	s := t.series
	s.ID = domain.SeriesTGADaily
	return s, nil
}

func flat(dates []time.Time, v float64) domain.Series {
	pts := make([]domain.Point, len(dates))
	for i, d := range dates {
		pts[i] = domain.Point{Date: d, Value: v}
	}
	return domain.Series{Points: pts}
}

func happyInputs() (*stubFRED, *stubTreasury) {
	days := []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)}
	fred := &stubFRED{series: map[string]domain.Series{
		"WALCL":           flat(days, 1_000_000), // millions → 1000 B
		"WTREGEN":         flat(days, 120),       // billions, fallback
		"RRPONTSYD":       flat(days, 50),        // billions
		"H41RESPPALDKNWW": flat(days, 10_000),    // millions → 10 B
		"WLCFLL":          flat(days, 5_000),     // millions → 5 B
	}}
	treasury := &stubTreasury{series: flat(days, 100_000)} // millions → 100 B
	return fred, treasury
}

func TestServiceRunHappyPath(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	svc := NewService(testTracer, fred, treasury, Config{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatal("unexpected degraded mode")
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}
	// 1000 − 100 − 50 + 10 + 5
	if math.Abs(result.Rows[0].NetLiquidity-865) > 1e-9 {
		t.Fatalf("expected composite 865, got %v", result.Rows[0].NetLiquidity)
	}
	if result.Rows[0].TGAOrigin != domain.OriginPrimary {
		t.Fatalf("daily cash balance should back the TGA column, got %v", result.Rows[0].TGAOrigin)
	}
	if result.Snapshot.Meta.LastUpdated != "2024-01-04" {
		t.Fatalf("unexpected last_updated: %s", result.Snapshot.Meta.LastUpdated)
	}
	for i := 1; i < len(result.Rows); i++ {
		if !result.Rows[i-1].Date.Before(result.Rows[i].Date) {
			t.Fatal("row dates not strictly increasing")
		}
	}
}

func TestServiceRunFatalWhenFedAssetsEmpty(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	fred.errs = map[string]error{"WALCL": errors.New("connection refused")}
	svc := NewService(testTracer, fred, treasury, Config{})

	result, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected fatal error when the primary source is empty")
	}
	if result.Snapshot != nil {
		t.Fatal("no snapshot may be produced on a fatal run")
	}
	for _, o := range result.Outcomes {
		if o.Series == domain.SeriesFedAssets && o.OK {
			t.Fatal("failed fetch reported as ok")
		}
	}
}

func TestServiceRunDegradedOnTreasuryFailure(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	treasury.err = errors.New("504 gateway timeout")
	svc := NewService(testTracer, fred, treasury, Config{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("expected degraded run to succeed, got %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded flag")
	}
	if result.Status() != domain.RunStatusDegraded {
		t.Fatalf("unexpected status: %v", result.Status())
	}
	// TGA comes from the weekly fallback (120 B): 1000 − 120 − 50 + 10 + 5
	if math.Abs(result.Rows[0].NetLiquidity-845) > 1e-9 {
		t.Fatalf("expected fallback-derived composite 845, got %v", result.Rows[0].NetLiquidity)
	}
	if result.Rows[0].TGAOrigin != domain.OriginFallback {
		t.Fatalf("expected fallback origin, got %v", result.Rows[0].TGAOrigin)
	}
}

func TestServiceRunFatalWhenBothCashSourcesEmpty(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	treasury.err = errors.New("down")
	fred.errs = map[string]error{"WTREGEN": errors.New("down too")}
	svc := NewService(testTracer, fred, treasury, Config{})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected error when the cash balance is unavailable everywhere")
	}
}

func TestServiceRunIsolatesSecondaryFailures(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	fred.errs = map[string]error{"WTREGEN": errors.New("flaky")}
	svc := NewService(testTracer, fred, treasury, Config{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Degraded {
		t.Fatal("daily source present, run must not be degraded")
	}
	var reason string
	for _, o := range result.Outcomes {
		if o.Series == domain.SeriesTGAWeekly {
			reason = o.Reason
		}
	}
	if reason == "" {
		t.Fatal("failed fallback fetch must surface its reason")
	}
}

func TestServiceRunDeterministic(t *testing.T) {
	t.Parallel()

	run := func() []byte {
		fred, treasury := happyInputs()
		svc := NewService(testTracer, fred, treasury, Config{})
		result, err := svc.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		data, err := json.Marshal(result.Snapshot)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return data
	}

	if !bytes.Equal(run(), run()) {
		t.Fatal("identical inputs must produce byte-identical snapshots")
	}
}

func TestServiceRunDropsRowsBeforeSlowestSeries(t *testing.T) {
	t.Parallel()

	fred, treasury := happyInputs()
	// Loans facilities only starts on the 3rd; the leading row must drop.
	fred.series["H41RESPPALDKNWW"] = flat([]time.Time{day(2024, 1, 3), day(2024, 1, 4)}, 10_000)
	svc := NewService(testTracer, fred, treasury, Config{})

	result, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows after dropping the uncovered leading day, got %d", len(result.Rows))
	}
	if !result.Rows[0].Date.Equal(day(2024, 1, 3)) {
		t.Fatalf("unexpected first row date: %v", result.Rows[0].Date)
	}
}
