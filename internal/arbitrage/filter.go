package arbitrage

import "cyclescan/internal/model"

// Filter returns the results whose return is strictly above threshold, in
// their original order. The input slice is not modified.
func Filter(results []model.ValuationResult, threshold float64) []model.ValuationResult {
	out := make([]model.ValuationResult, 0, len(results))
	for _, r := range results {
		if r.PercentReturn > threshold {
			out = append(out, r)
		}
	}
	return out
}
