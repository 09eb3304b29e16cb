package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"liquidity-pulse/internal/domain"
)

// SnapshotEntry is one published observation, serialized as a compact
// ["YYYY-MM-DD", value] pair — the shape the dashboard front end consumes.
type SnapshotEntry struct {
	Date  string
	Value float64
}

func (e SnapshotEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Date, e.Value})
}

func (e *SnapshotEntry) UnmarshalJSON(data []byte) error {
	var pair [2]json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if err := json.Unmarshal(pair[0], &e.Date); err != nil {
		return fmt.Errorf("snapshot entry date: %w", err)
	}
	if err := json.Unmarshal(pair[1], &e.Value); err != nil {
		return fmt.Errorf("snapshot entry value: %w", err)
	}
	return nil
}

type SnapshotMeta struct {
	LastUpdated string `json:"last_updated"`
}

// Snapshot is the output artifact: meta plus one array per published series.
// Field order is fixed, so identical inputs serialize byte-identically.
type Snapshot struct {
	Meta            SnapshotMeta    `json:"meta"`
	Formula1        []SnapshotEntry `json:"formula_1"`
	FedAssets       []SnapshotEntry `json:"fed_assets"`
	TGA             []SnapshotEntry `json:"tga"`
	RRP             []SnapshotEntry `json:"rrp"`
	LoansFacilities []SnapshotEntry `json:"loans_facilities"`
	LoansHeld       []SnapshotEntry `json:"loans_held"`
}

// Series returns one published array by its JSON key.
func (s *Snapshot) Series(id domain.SeriesID) ([]SnapshotEntry, bool) {
	switch id {
	case domain.SeriesNetLiquidity:
		return s.Formula1, true
	case domain.SeriesFedAssets:
		return s.FedAssets, true
	case domain.SeriesTGA:
		return s.TGA, true
	case domain.SeriesRRP:
		return s.RRP, true
	case domain.SeriesLoansFacilities:
		return s.LoansFacilities, true
	case domain.SeriesLoansHeld:
		return s.LoansHeld, true
	}
	return nil, false
}

// BuildSnapshot converts the final aligned rows into the artifact. Every
// value is rounded to 2 decimals; meta.last_updated is the last row's date.
func BuildSnapshot(rows []domain.LiquidityRow) *Snapshot {
	s := &Snapshot{
		Formula1:        make([]SnapshotEntry, 0, len(rows)),
		FedAssets:       make([]SnapshotEntry, 0, len(rows)),
		TGA:             make([]SnapshotEntry, 0, len(rows)),
		RRP:             make([]SnapshotEntry, 0, len(rows)),
		LoansFacilities: make([]SnapshotEntry, 0, len(rows)),
		LoansHeld:       make([]SnapshotEntry, 0, len(rows)),
	}
	for _, row := range rows {
		date := row.Date.Format(domain.DateFormat)
		s.Formula1 = append(s.Formula1, SnapshotEntry{date, round2(row.NetLiquidity)})
		s.FedAssets = append(s.FedAssets, SnapshotEntry{date, round2(row.FedAssets)})
		s.TGA = append(s.TGA, SnapshotEntry{date, round2(row.TGA)})
		s.RRP = append(s.RRP, SnapshotEntry{date, round2(row.RRP)})
		s.LoansFacilities = append(s.LoansFacilities, SnapshotEntry{date, round2(row.LoansFacilities)})
		s.LoansHeld = append(s.LoansHeld, SnapshotEntry{date, round2(row.LoansHeld)})
	}
	if len(rows) > 0 {
		s.Meta.LastUpdated = rows[len(rows)-1].Date.Format(domain.DateFormat)
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WriteSnapshot replaces the artifact at path atomically: the JSON is written
// to a temp file in the same directory and renamed over the target, so a
// reader never observes a partial file and a failed run leaves the previous
// artifact untouched.
func WriteSnapshot(path string, s *Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot loads a previously written artifact.
func ReadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &s, nil
}
