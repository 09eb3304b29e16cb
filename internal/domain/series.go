package domain

import "time"

// SeriesID identifies one normalized time series inside the pipeline. The
// values double as the JSON keys of the published snapshot.
type SeriesID string

const (
	SeriesFedAssets       SeriesID = "fed_assets"
	SeriesTGA             SeriesID = "tga"
	SeriesRRP             SeriesID = "rrp"
	SeriesLoansFacilities SeriesID = "loans_facilities"
	SeriesLoansHeld       SeriesID = "loans_held"
	SeriesNetLiquidity    SeriesID = "formula_1"

	// Cash-balance source series. They never appear in the snapshot; the
	// merge engine reconciles them into SeriesTGA.
	SeriesTGADaily  SeriesID = "tga_dts"
	SeriesTGAWeekly SeriesID = "tga_weekly"
)

// Point is a single dated observation. Date is always a UTC calendar day
// (midnight), Value is expressed in the series' current unit.
type Point struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Series is an ordered run of observations for one identifier. After
// Normalize the invariant holds: dates strictly increasing, one point per
// calendar day.
type Series struct {
	ID     SeriesID `json:"id"`
	Points []Point  `json:"points"`
}

// Empty reports whether the series carries no observations.
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Last returns the final observation. Only valid on a non-empty series.
func (s Series) Last() Point { return s.Points[len(s.Points)-1] }

// Day truncates t to a UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateFormat is the calendar-day layout used everywhere: provider parsing,
// snapshot keys, and meta.last_updated.
const DateFormat = "2006-01-02"

// FetchResult is the tagged outcome of one provider call. A failed fetch
// carries an empty series and a reason; it never carries a partial one.
type FetchResult struct {
	ID     SeriesID
	Series Series
	Err    error
}

// OK reports whether the fetch succeeded.
func (r FetchResult) OK() bool { return r.Err == nil }

// ValueOrigin records which source backed a reconciled value on a given date.
type ValueOrigin string

const (
	OriginPrimary  ValueOrigin = "primary"
	OriginFallback ValueOrigin = "fallback"
	OriginFilled   ValueOrigin = "filled"
)

// LiquidityRow is the fixed-shape record of the aligned table: one value per
// required series for a single calendar day, all in billions of USD. Rows are
// only materialized once every field is populated.
type LiquidityRow struct {
	Date            time.Time   `json:"date"`
	FedAssets       float64     `json:"fed_assets"`
	TGA             float64     `json:"tga"`
	RRP             float64     `json:"rrp"`
	LoansFacilities float64     `json:"loans_facilities"`
	LoansHeld       float64     `json:"loans_held"`
	NetLiquidity    float64     `json:"net_liquidity"`
	TGAOrigin       ValueOrigin `json:"-"`
}
