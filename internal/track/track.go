// Package track drives the city sequence: it wraps extraction attempts
// in a retry state machine, paces requests between cities and collects
// every outcome into the run report.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/extract"
	"github.com/avitrack/avitrack/internal/keyword"
	"github.com/avitrack/avitrack/internal/position"
	"github.com/avitrack/avitrack/internal/target"
	"github.com/avitrack/avitrack/internal/types"
)

// Extractor is the single-attempt extraction collaborator.
type Extractor interface {
	Extract(ctx context.Context, url string) ([]types.Listing, error)
}

// DumpFunc persists the raw page of a failed attempt for debugging.
type DumpFunc func(city types.City, html string)

// backoff bounds between retry attempts of the same city, in seconds
const (
	retryBackoffMin = 10
	retryBackoffMax = 20
)

// cityState is the per-city processing state.
type cityState int

const (
	statePending cityState = iota
	stateAttempting
	stateRetryScheduled
	stateSucceeded
	stateExhausted
)

// Tracker processes all cities sequentially. There is exactly one
// in-flight extraction at any time, concurrency would defeat the
// pacing.
type Tracker struct {
	Target    target.Target
	Cities    []types.City
	Rules     *keyword.RuleSet
	Extractor Extractor
	Config    *config.RunConfig

	// Skip drops the first N cities before processing.
	Skip int
	// Dump, if set, receives the page snapshot of every failed attempt.
	Dump DumpFunc

	sleep func(time.Duration)
	rnd   *rand.Rand
}

func New(tgt target.Target, cities []types.City, rules *keyword.RuleSet, ex Extractor, cfg *config.RunConfig) *Tracker {
	return &Tracker{
		Target:    tgt,
		Cities:    cities,
		Rules:     rules,
		Extractor: ex,
		Config:    cfg,
		sleep:     time.Sleep,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run processes the post-skip city sequence and returns the report.
// Every processed city gets exactly one outcome, exhausted ones
// included. A cancelled context stops the run after the current city.
func (t *Tracker) Run(ctx context.Context) *types.RunReport {
	report := &types.RunReport{
		StartedAt: time.Now(),
		Target:    t.Target.String(),
		Skip:      t.Skip,
		Outcomes:  []types.CityOutcome{},
	}

	cities := t.Cities
	if t.Skip > 0 {
		slog.Info(fmt.Sprintf("skipping first %d cities", t.Skip))
		if t.Skip >= len(cities) {
			cities = nil
		} else {
			cities = cities[t.Skip:]
		}
	}
	if len(cities) == 0 {
		slog.Error("no cities to process, check the city list")
		return report
	}
	slog.Info(fmt.Sprintf("starting scan: %d cities, target: %s", len(cities), report.Target))

	consecutiveFailures := 0
	for i, city := range cities {
		if ctx.Err() != nil {
			slog.Info(fmt.Sprintf("shutdown requested, stopping after %d cities", i))
			break
		}
		slog.Info(fmt.Sprintf("[%d/%d] %s", i+1, len(cities), city))
		outcome := t.processCity(ctx, city)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Status == types.StatusExhausted {
			consecutiveFailures++
			if t.Config.MaxConsecFailures > 0 && consecutiveFailures >= t.Config.MaxConsecFailures {
				slog.Error(fmt.Sprintf("%d consecutive failures, stopping early", consecutiveFailures))
				break
			}
		} else {
			consecutiveFailures = 0
		}

		// pacing is unconditional, it runs even after an exhausted
		// city to keep the request cadence uniform
		if i < len(cities)-1 {
			t.pause(i + 1)
		}
	}
	return report
}

// processCity runs the retry state machine for a single city. All
// failures stay local to the returned outcome, they never abort the
// run.
func (t *Tracker) processCity(ctx context.Context, city types.City) types.CityOutcome {
	logger := slog.With(slog.String("city", city.Slug))
	url := t.Target.URLFor(city)
	outcome := types.CityOutcome{City: city, Matched: []types.Listing{}}

	state := statePending
	attempts := 0
	var lastErr error

	for state != stateSucceeded && state != stateExhausted {
		switch state {
		case statePending:
			state = stateAttempting

		case stateAttempting:
			attempts++
			listings, err := t.Extractor.Extract(ctx, url)
			if err == nil {
				matched := position.Resolve(listings, t.Rules)
				outcome.Status = types.StatusSucceeded
				outcome.Matched = matched
				outcome.Total = len(listings)
				logger.Info(fmt.Sprintf("%d ads, %d mine (positions: %s)",
					len(listings), len(matched), formatPositions(matched)))
				state = stateSucceeded
				continue
			}
			lastErr = err
			t.dumpSnapshot(city, err)
			logger.Warn(fmt.Sprintf("attempt %d/%d failed: %v", attempts, t.Config.MaxRetries, err))
			if attempts < t.Config.MaxRetries {
				state = stateRetryScheduled
			} else {
				state = stateExhausted
			}

		case stateRetryScheduled:
			t.sleep(t.uniform(retryBackoffMin, retryBackoffMax))
			state = stateAttempting
		}
	}

	outcome.Attempts = attempts
	if state == stateExhausted {
		outcome.Status = types.StatusExhausted
		outcome.ErrorDetail = lastErr.Error()
		logger.Error("all retries exhausted")
	}
	return outcome
}

// pause sleeps between cities: a pseudo-random short delay, or a
// longer one after every LongPauseEvery-th city.
func (t *Tracker) pause(processed int) {
	cfg := t.Config
	if processed%cfg.LongPauseEvery == 0 {
		d := t.uniform(cfg.LongPauseMinSec, cfg.LongPauseMaxSec)
		slog.Info(fmt.Sprintf("long pause: %.1fs", d.Seconds()))
		t.sleep(d)
		return
	}
	t.sleep(t.uniform(cfg.MinDelaySec, cfg.MaxDelaySec))
}

// uniform draws a duration uniformly from [min, max] seconds.
func (t *Tracker) uniform(min, max int) time.Duration {
	if max <= min {
		return time.Duration(min) * time.Second
	}
	secs := float64(min) + t.rnd.Float64()*float64(max-min)
	return time.Duration(secs * float64(time.Second))
}

func (t *Tracker) dumpSnapshot(city types.City, err error) {
	if t.Dump == nil {
		return
	}
	var ae *extract.AttemptError
	if errors.As(err, &ae) && ae.Snapshot != "" {
		t.Dump(city, ae.Snapshot)
	}
}

func formatPositions(matched []types.Listing) string {
	if len(matched) == 0 {
		return "—"
	}
	positions := make([]string, len(matched))
	for i, l := range matched {
		positions[i] = fmt.Sprintf("%d", l.Rank)
	}
	return strings.Join(positions, ", ")
}
