// Package types defines the shared data model of a tracking run.
package types

import "time"

// City is one target region identified by its marketplace slug.
// The order of the loaded city list defines processing order.
type City struct {
	Slug  string `json:"slug"`
	Label string `json:"label,omitempty"`
}

func (c City) String() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Slug
}

// Listing is one scraped search result entry. Rank is the 1-based
// position within the full paginated feed of one city, assigned at
// extraction time and never recomputed.
type Listing struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Rank       int    `json:"rank"`
	Promoted   bool   `json:"promoted"`
	SellerName string `json:"seller_name,omitempty"`
	SellerURL  string `json:"seller_url,omitempty"`
}

// Status is the terminal state of processing one city.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusExhausted Status = "exhausted"
)

// CityOutcome is the immutable per-city result. Matched preserves the
// original feed ranks and is always a subsequence of the full extraction.
type CityOutcome struct {
	City        City      `json:"city"`
	Status      Status    `json:"status"`
	Matched     []Listing `json:"matched"`
	Total       int       `json:"total"`
	Attempts    int       `json:"attempts"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// RunReport is the ordered collection of all city outcomes of one run,
// handed off whole to the configured writers at run end.
type RunReport struct {
	StartedAt time.Time     `json:"started_at"`
	Target    string        `json:"target"`
	Skip      int           `json:"skip"`
	Outcomes  []CityOutcome `json:"outcomes"`
}
