// Package fetch provides the browser collaborator that loads a URL and
// returns a DOM snapshot.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrWaitTimeout is returned when the wait selector never appears
// within the configured selector timeout. The returned snapshot still
// contains whatever the page rendered, for debugging.
var ErrWaitTimeout = errors.New("timeout waiting for selector")

// FetcherConfig defines the necessary parameters to make a new fetcher.
type FetcherConfig struct {
	UserAgent         string
	Headless          bool
	PageTimeoutMS     int
	SelectorTimeoutMS int
	DebugDir          string
}

// FetchOpts control a single fetch.
type FetchOpts struct {
	// WaitSelector, if set, is waited for after navigation before the
	// snapshot is taken.
	WaitSelector string
	// ScrollCount scrolls the page down this many times before the
	// snapshot, to mimic a human skimming the results.
	ScrollCount int
}

// A Fetcher allows to fetch the content of a web page. Fetch returns
// the DOM snapshot plus the final URL the browser ended up on, which
// can differ from the requested one after a redirect.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOpts) (string, string, error)
	Cancel()
}

// SaveSnapshot persists an HTML snapshot under dir for later
// inspection and returns the written path.
func SaveSnapshot(dir, tag, html string) (string, error) {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", fmt.Errorf("failed to create debug directory: %v", err)
	}
	name := fmt.Sprintf("debug_%s_%s.html", tag, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return "", err
	}
	return path, nil
}
