package fetch

import (
	"context"
	"errors"
)

// MockFetcher serves canned pages from memory, for tests.
type MockFetcher struct {
	pagesMap map[string]string
	// Fetched records the URLs in request order.
	Fetched []string
	// Redirects maps a requested URL to the final URL reported for it.
	Redirects map[string]string
}

func NewMockFetcher(pages map[string]string) *MockFetcher {
	df := &MockFetcher{
		pagesMap: map[string]string{},
	}
	for u, content := range pages {
		df.pagesMap[u] = content
	}
	return df
}

func (d *MockFetcher) Fetch(ctx context.Context, urlStr string, opts FetchOpts) (string, string, error) {
	d.Fetched = append(d.Fetched, urlStr)
	finalURL := urlStr
	if r, ok := d.Redirects[urlStr]; ok {
		finalURL = r
	}
	if p, ok := d.pagesMap[urlStr]; ok {
		return p, finalURL, nil
	}
	return "", finalURL, errors.New("page not found")
}

// To comply with the Fetcher interface
func (d *MockFetcher) Cancel() {}
