package domain

// Source names the upstream system a series is fetched from.
type Source string

const (
	SourceFRED     Source = "fred"
	SourceTreasury Source = "treasury"
	SourceDerived  Source = "derived"
)

// Frequency is a series' native reporting cadence.
type Frequency string

const (
	FreqDaily  Frequency = "daily"
	FreqWeekly Frequency = "weekly"
)

// Descriptor declares everything the pipeline needs to know about one series:
// where it comes from, how to convert it into billions of USD, how often it is
// reported, and how it contributes to the net-liquidity formula. All unit and
// sign conventions live in this table and nowhere else.
type Descriptor struct {
	ID       SeriesID
	Source   Source
	FredCode string // FRED graph CSV id, empty for non-FRED series
	Factor   float64
	Freq     Frequency
	Sign     float64 // signed weight in the formula, 0 = not an operand
	Required bool    // a finished row must carry a value for this series
	Fatal    bool    // total absence aborts the run
}

// Descriptors is the declarative series table, in fixed order. The order is
// load-bearing: fetches, merges and serialization all iterate it, which keeps
// runs deterministic.
//
// Canonical unit is billions of USD. FRED publishes WALCL, WDTGAL-style
// balance-sheet lines and the loan facilities in millions (factor 0.001);
// RRPONTSYD and WTREGEN are already billions. The Treasury DTS operating cash
// balance is reported in millions.
var Descriptors = []Descriptor{
	{ID: SeriesFedAssets, Source: SourceFRED, FredCode: "WALCL", Factor: 0.001, Freq: FreqWeekly, Sign: +1, Required: true, Fatal: true},
	{ID: SeriesTGADaily, Source: SourceTreasury, Factor: 0.001, Freq: FreqDaily},
	{ID: SeriesTGAWeekly, Source: SourceFRED, FredCode: "WTREGEN", Factor: 1, Freq: FreqWeekly},
	{ID: SeriesTGA, Source: SourceDerived, Factor: 1, Freq: FreqDaily, Sign: -1, Required: true},
	{ID: SeriesRRP, Source: SourceFRED, FredCode: "RRPONTSYD", Factor: 1, Freq: FreqDaily, Sign: -1, Required: true},
	{ID: SeriesLoansFacilities, Source: SourceFRED, FredCode: "H41RESPPALDKNWW", Factor: 0.001, Freq: FreqWeekly, Sign: +1, Required: true},
	{ID: SeriesLoansHeld, Source: SourceFRED, FredCode: "WLCFLL", Factor: 0.001, Freq: FreqWeekly, Sign: +1, Required: true},
}

// DescriptorFor looks a series up in the table.
func DescriptorFor(id SeriesID) (Descriptor, bool) {
	for _, d := range Descriptors {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// FetchedDescriptors returns the descriptors that map to an upstream fetch,
// in table order.
func FetchedDescriptors() []Descriptor {
	out := make([]Descriptor, 0, len(Descriptors))
	for _, d := range Descriptors {
		if d.Source != SourceDerived {
			out = append(out, d)
		}
	}
	return out
}

// RequiredSeries returns the series every finished row must cover.
func RequiredSeries() []SeriesID {
	out := make([]SeriesID, 0, len(Descriptors))
	for _, d := range Descriptors {
		if d.Required {
			out = append(out, d.ID)
		}
	}
	return out
}
