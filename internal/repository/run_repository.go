package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"liquidity-pulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    id              BIGSERIAL   PRIMARY KEY,
    started_at      TIMESTAMPTZ NOT NULL,
    finished_at     TIMESTAMPTZ NOT NULL,
    status          TEXT        NOT NULL,
    formula_version TEXT        NOT NULL,
    row_count       INT         NOT NULL,
    last_date       TEXT        NOT NULL DEFAULT '',
    outcomes        JSONB       NOT NULL DEFAULT '[]',
    error           TEXT        NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_pipeline_runs_started_at
    ON pipeline_runs (started_at DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RunRepository persists the per-run audit trail: which sources answered,
// whether the run was degraded, and what the artifact covered.
type RunRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewRunRepository(pool PgxPool, tracer trace.Tracer) *RunRepository {
	return &RunRepository{pool: pool, tracer: tracer}
}

func (r *RunRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "run-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createRunsTable)
	return err
}

func (r *RunRepository) InsertRun(ctx context.Context, rec domain.RunRecord) (int64, error) {
	_, span := r.tracer.Start(ctx, "run-repo.insert-run")
	defer span.End()

	outcomes, err := json.Marshal(rec.Outcomes)
	if err != nil {
		return 0, fmt.Errorf("encode outcomes: %w", err)
	}

	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO pipeline_runs (started_at, finished_at, status, formula_version, row_count, last_date, outcomes, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		rec.StartedAt, rec.FinishedAt, string(rec.Status), rec.FormulaVersion,
		rec.RowCount, rec.LastDate, outcomes, rec.Error,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	_, span := r.tracer.Start(ctx, "run-repo.list-runs")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, started_at, finished_at, status, formula_version, row_count, last_date, outcomes, error
		 FROM pipeline_runs
		 ORDER BY started_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunRecord
	for rows.Next() {
		var (
			rec      domain.RunRecord
			status   string
			outcomes []byte
		)
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.FinishedAt, &status,
			&rec.FormulaVersion, &rec.RowCount, &rec.LastDate, &outcomes, &rec.Error); err != nil {
			return nil, err
		}
		rec.Status = domain.RunStatus(status)
		if err := json.Unmarshal(outcomes, &rec.Outcomes); err != nil {
			return nil, fmt.Errorf("decode outcomes for run %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// RecordResult converts a finished run into an audit row. startedAt/finishedAt
// are taken from the result itself so replays stay faithful.
func (r *RunRepository) RecordResult(ctx context.Context, status domain.RunStatus, startedAt, finishedAt time.Time, rowCount int, lastDate string, outcomes []domain.FetchOutcome, runErr string) (int64, error) {
	return r.InsertRun(ctx, domain.RunRecord{
		StartedAt:      startedAt,
		FinishedAt:     finishedAt,
		Status:         status,
		FormulaVersion: domain.FormulaVersion,
		RowCount:       rowCount,
		LastDate:       lastDate,
		Outcomes:       outcomes,
		Error:          runErr,
	})
}
