package service

import "github.com/shopspring/decimal"

// amountEpsilon is the magnitude below which an amount counts as zero.
var amountEpsilon = decimal.New(1, -9) // 1e-9

// MaxVariancePct is the sentinel for a balance appearing from a ~zero prior
// amount. The variance is conceptually unbounded; a large finite cap keeps
// every consumer a total function, and any reasonable comment threshold
// trips on it.
var MaxVariancePct = decimal.NewFromInt(999999)

var hundred = decimal.NewFromInt(100)

// VariancePct computes the absolute percentage deviation of curr from prev.
// Pure and deterministic; used at ingestion to populate the stored variance
// and by the routing policy when deciding whether an advance needs a comment.
func VariancePct(prev, curr decimal.Decimal) decimal.Decimal {
	if prev.Abs().LessThan(amountEpsilon) {
		if curr.Abs().LessThan(amountEpsilon) {
			return decimal.Zero
		}
		return MaxVariancePct
	}
	return curr.Sub(prev).Div(prev).Abs().Mul(hundred)
}
