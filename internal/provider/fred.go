package provider

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"liquidity-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const fredBaseURL = "https://fred.stlouisfed.org/graph"

// FREDProvider downloads full-history series from the FRED graph CSV
// endpoint, one CSV per series id.
type FREDProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewFREDProvider creates a provider with built-in rate limiting. FRED asks
// unauthenticated clients to stay under ~120 requests per minute; one token
// per second leaves plenty of headroom.
func NewFREDProvider(tracer trace.Tracer) *FREDProvider {
	return &FREDProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: fredBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(10, time.Second),
	}
}

// FetchSeries downloads the CSV for the given FRED code and returns the
// observations on or after start, in its native unit and cadence. Missing
// observations (".") are skipped; duplicate dates keep the first row.
func (p *FREDProvider) FetchSeries(ctx context.Context, id domain.SeriesID, code string, start time.Time) (domain.Series, error) {
	_, span := p.tracer.Start(ctx, "fred.fetch-series")
	defer span.End()

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.Series{ID: id}, err
	}

	url := fmt.Sprintf("%s/fredgraph.csv?id=%s", strings.TrimRight(p.baseURL, "/"), code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Series{ID: id}, err
	}
	req.Header.Set("Accept", "text/csv")

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Series{ID: id}, fmt.Errorf("fetch %s: %w", code, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Series{ID: id}, fmt.Errorf("FRED API error %d for %s: %s", resp.StatusCode, code, strings.TrimSpace(string(body)))
	}

	points, err := parseFredCSV(resp.Body, start)
	if err != nil {
		return domain.Series{ID: id}, fmt.Errorf("parse %s CSV: %w", code, err)
	}

	return domain.Series{ID: id, Points: points}, nil
}

// parseFredCSV reads date,value rows in ascending date order. Rows before
// start, empty values and FRED's "." placeholder are dropped.
func parseFredCSV(r io.Reader, start time.Time) ([]domain.Point, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 2

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !strings.EqualFold(header[0], "date") && !strings.EqualFold(header[0], "observation_date") {
		return nil, fmt.Errorf("unexpected header column %q", header[0])
	}

	var points []domain.Point
	seen := make(map[time.Time]bool)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		date, err := time.ParseInLocation(domain.DateFormat, strings.TrimSpace(rec[0]), time.UTC)
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", rec[0], err)
		}
		if date.Before(start) {
			continue
		}

		raw := strings.TrimSpace(rec[1])
		if raw == "" || raw == "." {
			continue
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value %q on %s: %w", raw, rec[0], err)
		}

		if seen[date] {
			continue
		}
		seen[date] = true
		points = append(points, domain.Point{Date: date, Value: value})
	}

	return points, nil
}
