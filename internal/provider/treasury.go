package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"liquidity-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	treasuryBaseURL = "https://api.fiscaldata.treasury.gov/services/api/fiscal_service"
	dtsEndpoint     = "/v1/accounting/dts/dts_table_1"

	// tgaAccountMatch selects the Treasury General Account rows out of the
	// Daily Treasury Statement, which also lists sub-accounts and, in older
	// records, the Federal Reserve Account.
	tgaAccountMatch = "treasury general account"

	treasuryPageSize = 5000
	treasuryMaxPages = 10
)

// TreasuryProvider fetches the daily operating cash balance from the US
// Treasury FiscalData API (Daily Treasury Statement, table 1). Values come
// back in millions of USD.
type TreasuryProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewTreasuryProvider(tracer trace.Tracer) *TreasuryProvider {
	return &TreasuryProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: treasuryBaseURL,
		tracer:  tracer,
	}
}

type dtsRecord struct {
	RecordDate  string `json:"record_date"`
	AccountType string `json:"account_type"`
	CloseToday  string `json:"close_today_bal"`
	OpenToday   string `json:"open_today_bal"`
}

type dtsEnvelope struct {
	Data []dtsRecord `json:"data"`
	Meta struct {
		TotalPages int `json:"total-pages"`
	} `json:"meta"`
}

// FetchCashBalance returns the TGA balance series from start onward, in
// millions. Records are requested newest-first; when the same date appears
// more than once (republished corrections), the first record under that sort
// wins. The close-of-day balance is preferred, the opening balance substitutes
// when the close is absent, and rows with neither are dropped.
func (p *TreasuryProvider) FetchCashBalance(ctx context.Context, start time.Time) (domain.Series, error) {
	_, span := p.tracer.Start(ctx, "treasury.fetch-cash-balance")
	defer span.End()

	byDate := make(map[time.Time]float64)
	order := make([]time.Time, 0, treasuryPageSize)

	for page := 1; page <= treasuryMaxPages; page++ {
		env, err := p.fetchPage(ctx, start, page)
		if err != nil {
			return domain.Series{ID: domain.SeriesTGADaily}, err
		}
		if len(env.Data) == 0 {
			break
		}

		for _, rec := range env.Data {
			if !strings.Contains(strings.ToLower(rec.AccountType), tgaAccountMatch) {
				continue
			}
			date, err := time.ParseInLocation(domain.DateFormat, strings.TrimSpace(rec.RecordDate), time.UTC)
			if err != nil {
				return domain.Series{ID: domain.SeriesTGADaily}, fmt.Errorf("parse record_date %q: %w", rec.RecordDate, err)
			}
			if _, dup := byDate[date]; dup {
				continue
			}

			value, ok := selectBalance(rec)
			if !ok {
				continue
			}
			byDate[date] = value
			order = append(order, date)
		}

		if env.Meta.TotalPages > 0 && page >= env.Meta.TotalPages {
			break
		}
	}

	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })
	points := make([]domain.Point, 0, len(order))
	for _, date := range order {
		points = append(points, domain.Point{Date: date, Value: byDate[date]})
	}

	return domain.Series{ID: domain.SeriesTGADaily, Points: points}, nil
}

func (p *TreasuryProvider) fetchPage(ctx context.Context, start time.Time, page int) (*dtsEnvelope, error) {
	url := fmt.Sprintf(
		"%s%s?filter=record_date:gte:%s&sort=-record_date&page[size]=%d&page[number]=%d",
		strings.TrimRight(p.baseURL, "/"), dtsEndpoint,
		start.Format(domain.DateFormat), treasuryPageSize, page,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch DTS page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("FiscalData API error %d on page %d: %s", resp.StatusCode, page, strings.TrimSpace(string(body)))
	}

	var env dtsEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode DTS page %d: %w", page, err)
	}
	return &env, nil
}

// selectBalance picks the close-of-day balance when present, otherwise the
// opening balance. Reports false when the record carries neither.
func selectBalance(rec dtsRecord) (float64, bool) {
	if v, ok := parseBalance(rec.CloseToday); ok {
		return v, true
	}
	if v, ok := parseBalance(rec.OpenToday); ok {
		return v, true
	}
	return 0, false
}

// parseBalance handles FiscalData's string-typed numbers, which may carry
// thousands separators or be textually empty/null.
func parseBalance(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, "null") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
