// Package alert hands qualifying cycle valuations to an external judge that
// decides whether an operator should be notified, and delivers the
// resulting messages. Nothing in this package can fail a scan.
package alert

import (
	"fmt"
	"strings"

	"cyclescan/internal/model"
)

// NewOpportunity describes a valuation result for the judge.
func NewOpportunity(r model.ValuationResult) model.Opportunity {
	path := make([]string, len(r.Path))
	for i, a := range r.Path {
		path[i] = string(a)
	}
	legs := make([]string, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = fmt.Sprintf("%s: Bid %.4f, Ask %.4f", l.Symbol, l.Bid, l.Ask)
	}
	return model.Opportunity{
		CycleID:         r.CycleID,
		PathDescription: strings.Join(path, "→"),
		PercentReturn:   r.PercentReturn,
		LegsDescription: strings.Join(legs, "; "),
		ObservedAt:      r.ObservedAt,
	}
}
