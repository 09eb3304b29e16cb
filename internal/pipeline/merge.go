package pipeline

import (
	"sort"
	"time"

	"liquidity-pulse/internal/domain"
)

// Table is the aligned date-indexed table the merge engine produces: an
// ordered set of calendar days with one optional cell per series. It replaces
// the implicit whole-table operations of the original job with discrete,
// testable passes (Join, Reconcile, ForwardFill, DropIncomplete).
type Table struct {
	dates  []time.Time
	cells  map[domain.SeriesID]map[time.Time]float64
	filled map[domain.SeriesID]map[time.Time]bool
}

// Join outer-joins the given series on date: the table's date set is the
// union of all input dates, ascending.
func Join(series ...domain.Series) *Table {
	t := &Table{
		cells:  make(map[domain.SeriesID]map[time.Time]float64),
		filled: make(map[domain.SeriesID]map[time.Time]bool),
	}
	seen := make(map[time.Time]bool)

	for _, s := range series {
		col := make(map[time.Time]float64, len(s.Points))
		for _, p := range s.Points {
			col[p.Date] = p.Value
			if !seen[p.Date] {
				seen[p.Date] = true
				t.dates = append(t.dates, p.Date)
			}
		}
		t.cells[s.ID] = col
	}

	sort.Slice(t.dates, func(i, j int) bool { return t.dates[i].Before(t.dates[j]) })
	return t
}

// Reconcile builds one column from two origins: the primary's value where
// present, the fallback's elsewhere. The returned origin map states which
// source backed each date, so any value stays attributable.
func Reconcile(id domain.SeriesID, primary, fallback domain.Series) (domain.Series, map[time.Time]domain.ValueOrigin) {
	origins := make(map[time.Time]domain.ValueOrigin)
	values := make(map[time.Time]float64)
	var dates []time.Time

	for _, p := range fallback.Points {
		values[p.Date] = p.Value
		origins[p.Date] = domain.OriginFallback
		dates = append(dates, p.Date)
	}
	for _, p := range primary.Points {
		if _, ok := values[p.Date]; !ok {
			dates = append(dates, p.Date)
		}
		values[p.Date] = p.Value
		origins[p.Date] = domain.OriginPrimary
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	points := make([]domain.Point, 0, len(dates))
	for _, d := range dates {
		points = append(points, domain.Point{Date: d, Value: values[d]})
	}
	return domain.Series{ID: id, Points: points}, origins
}

// ForwardFill carries each series' most recent value into later dates that
// lack one. Leading gaps (before a series' first observation) stay empty.
func (t *Table) ForwardFill(ids ...domain.SeriesID) {
	for _, id := range ids {
		col := t.cells[id]
		if col == nil {
			continue
		}
		have := false
		var last float64
		for _, d := range t.dates {
			if v, ok := col[d]; ok {
				last, have = v, true
				continue
			}
			if have {
				col[d] = last
				if t.filled[id] == nil {
					t.filled[id] = make(map[time.Time]bool)
				}
				t.filled[id][d] = true
			}
		}
	}
}

// DropIncomplete removes rows still missing any required series. After
// forward-fill this only affects the leading rows before the slowest-starting
// series' first observation.
func (t *Table) DropIncomplete(required ...domain.SeriesID) {
	kept := t.dates[:0]
	for _, d := range t.dates {
		complete := true
		for _, id := range required {
			if _, ok := t.cells[id][d]; !ok {
				complete = false
				break
			}
		}
		if complete {
			kept = append(kept, d)
		} else {
			for _, col := range t.cells {
				delete(col, d)
			}
		}
	}
	t.dates = kept
}

// Dates returns the table's date axis, ascending.
func (t *Table) Dates() []time.Time { return t.dates }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.dates) }

// Value reads one cell.
func (t *Table) Value(id domain.SeriesID, date time.Time) (float64, bool) {
	v, ok := t.cells[id][date]
	return v, ok
}

// Rows materializes the fixed-shape aligned records. Call only after
// DropIncomplete: every required cell must be populated. tgaOrigins carries
// the reconciliation audit; dates whose TGA value came from forward-fill are
// marked as filled.
func (t *Table) Rows(tgaOrigins map[time.Time]domain.ValueOrigin) []domain.LiquidityRow {
	rows := make([]domain.LiquidityRow, 0, len(t.dates))
	for _, d := range t.dates {
		row := domain.LiquidityRow{
			Date:            d,
			FedAssets:       t.cells[domain.SeriesFedAssets][d],
			TGA:             t.cells[domain.SeriesTGA][d],
			RRP:             t.cells[domain.SeriesRRP][d],
			LoansFacilities: t.cells[domain.SeriesLoansFacilities][d],
			LoansHeld:       t.cells[domain.SeriesLoansHeld][d],
			NetLiquidity:    t.cells[domain.SeriesNetLiquidity][d],
		}
		switch {
		case t.filled[domain.SeriesTGA][d]:
			row.TGAOrigin = domain.OriginFilled
		default:
			row.TGAOrigin = tgaOrigins[d]
		}
		rows = append(rows, row)
	}
	return rows
}
