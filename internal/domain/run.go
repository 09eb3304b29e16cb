package domain

import "time"

// FormulaVersion tags the published composite. Changing which series
// participate in the formula, or their sign, is a breaking change to the
// snapshot contract and must bump this constant.
const FormulaVersion = "formula_v1"

type RunStatus string

const (
	RunStatusOK       RunStatus = "ok"
	RunStatusDegraded RunStatus = "degraded"
	RunStatusFailed   RunStatus = "failed"
)

// FetchOutcome is the per-series result of the fetch phase, kept for the run
// audit trail and for status output.
type FetchOutcome struct {
	Series SeriesID `json:"series"`
	OK     bool     `json:"ok"`
	Rows   int      `json:"rows"`
	Reason string   `json:"reason,omitempty"`
}

// RunRecord is one row of the pipeline_runs audit table.
type RunRecord struct {
	ID             int64          `json:"id"`
	StartedAt      time.Time      `json:"started_at"`
	FinishedAt     time.Time      `json:"finished_at"`
	Status         RunStatus      `json:"status"`
	FormulaVersion string         `json:"formula_version"`
	RowCount       int            `json:"row_count"`
	LastDate       string         `json:"last_date,omitempty"`
	Outcomes       []FetchOutcome `json:"outcomes"`
	Error          string         `json:"error,omitempty"`
}
