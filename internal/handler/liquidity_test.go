package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"liquidity-pulse/internal/domain"
	"liquidity-pulse/internal/pipeline"
	"liquidity-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type stubRunStore struct {
	records []domain.RunRecord
}

func (s *stubRunStore) RecordResult(ctx context.Context, status domain.RunStatus, startedAt, finishedAt time.Time, rowCount int, lastDate string, outcomes []domain.FetchOutcome, runErr string) (int64, error) {
	return 1, nil
}

func (s *stubRunStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit < len(s.records) {
		return s.records[:limit], nil
	}
	return s.records, nil
}

func testSnapshot() *pipeline.Snapshot {
	return pipeline.BuildSnapshot([]domain.LiquidityRow{
		{
			Date:            domain.Day(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)),
			FedAssets:       1000,
			TGA:             100,
			RRP:             50,
			LoansFacilities: 5,
			LoansHeld:       10,
			NetLiquidity:    865,
		},
	})
}

func newTestRouter(t *testing.T, runs service.RunStore, apiKey string) (*gin.Engine, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	outputPath := filepath.Join(t.TempDir(), "data.json")
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	svc := service.NewLiquidityService(tracer, nil, runs, nil, nil, outputPath)

	r := gin.New()
	New(tracer, svc).RegisterRoutes(r, apiKey)
	return r, outputPath
}

func doGet(r *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, nil, "")

	w := doGet(r, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetSnapshotServesArtifact(t *testing.T) {
	r, outputPath := newTestRouter(t, nil, "")
	if err := pipeline.WriteSnapshot(outputPath, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	w := doGet(r, "/api/liquidity", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var snap pipeline.Snapshot
	if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
		t.Fatalf("response is not a snapshot: %v", err)
	}
	if snap.Meta.LastUpdated != "2024-01-02" {
		t.Fatalf("expected last_updated 2024-01-02, got %q", snap.Meta.LastUpdated)
	}
	if len(snap.Formula1) != 1 || snap.Formula1[0].Value != 865 {
		t.Fatalf("unexpected formula_1: %+v", snap.Formula1)
	}
}

func TestGetSnapshotWithoutArtifact(t *testing.T) {
	r, _ := newTestRouter(t, nil, "")

	w := doGet(r, "/api/liquidity", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestGetLatest(t *testing.T) {
	r, outputPath := newTestRouter(t, nil, "")
	if err := pipeline.WriteSnapshot(outputPath, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	w := doGet(r, "/api/liquidity/latest", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var latest service.Latest
	if err := json.Unmarshal(w.Body.Bytes(), &latest); err != nil {
		t.Fatal(err)
	}
	if latest.NetLiquidity != 865 {
		t.Fatalf("expected net liquidity 865, got %v", latest.NetLiquidity)
	}
	if latest.FormulaVersion != domain.FormulaVersion {
		t.Fatalf("expected formula version %q, got %q", domain.FormulaVersion, latest.FormulaVersion)
	}
}

func TestGetSeriesByID(t *testing.T) {
	r, outputPath := newTestRouter(t, nil, "")
	if err := pipeline.WriteSnapshot(outputPath, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	w := doGet(r, "/api/liquidity/series/tga", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"tga"`) {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestGetSeriesUnknownID(t *testing.T) {
	r, outputPath := newTestRouter(t, nil, "")
	if err := pipeline.WriteSnapshot(outputPath, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	w := doGet(r, "/api/liquidity/series/nope", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetRuns(t *testing.T) {
	runs := &stubRunStore{records: []domain.RunRecord{
		{ID: 2, Status: domain.RunStatusOK, RowCount: 3200, LastDate: "2024-01-02"},
		{ID: 1, Status: domain.RunStatusDegraded, RowCount: 3199, LastDate: "2024-01-01"},
	}}
	r, _ := newTestRouter(t, runs, "")

	w := doGet(r, "/api/runs?limit=1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Runs []domain.RunRecord `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Runs) != 1 || body.Runs[0].ID != 2 {
		t.Fatalf("unexpected runs: %+v", body.Runs)
	}
}

func TestGetRunsDisabled(t *testing.T) {
	r, _ := newTestRouter(t, nil, "")

	w := doGet(r, "/api/runs", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	r, outputPath := newTestRouter(t, nil, "sekret")
	if err := pipeline.WriteSnapshot(outputPath, testSnapshot()); err != nil {
		t.Fatal(err)
	}

	if w := doGet(r, "/api/liquidity", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", w.Code)
	}
	if w := doGet(r, "/api/liquidity", map[string]string{"X-API-Key": "wrong"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong key, got %d", w.Code)
	}
	if w := doGet(r, "/api/liquidity", map[string]string{"X-API-Key": "sekret"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", w.Code)
	}
	if w := doGet(r, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health must stay open, got %d", w.Code)
	}
}
