// Package position computes where the operator's own listings rank
// within a city's results feed.
package position

import (
	"github.com/avitrack/avitrack/internal/keyword"
	"github.com/avitrack/avitrack/internal/types"
)

// Resolve filters listings down to those whose title matches the rule
// set. The result is an order-preserving subsequence of the input,
// ranks are never recomputed.
func Resolve(listings []types.Listing, rules *keyword.RuleSet) []types.Listing {
	matched := []types.Listing{}
	for _, l := range listings {
		if rules.Match(l.Title) {
			matched = append(matched, l)
		}
	}
	return matched
}
