package pipeline

import (
	"time"

	"liquidity-pulse/internal/domain"
)

// Derive computes the composite indicator for every row of the aligned table
// and stores it as the formula_1 column:
//
//	NetLiquidity = FedAssets − TGA − RRP + LoansFacilities + LoansHeld
//
// all operands in billions of USD. The operands and their signs come from the
// descriptor table; changing either is a breaking change and must bump
// domain.FormulaVersion.
//
// Derive assumes total coverage: the caller runs DropIncomplete first, so no
// operand can be missing here.
func Derive(t *Table) {
	col := make(map[time.Time]float64, len(t.dates))
	for _, d := range t.dates {
		var sum float64
		for _, desc := range domain.Descriptors {
			if desc.Sign == 0 {
				continue
			}
			sum += desc.Sign * t.cells[desc.ID][d]
		}
		col[d] = sum
	}
	t.cells[domain.SeriesNetLiquidity] = col
}
