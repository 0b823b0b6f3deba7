// Package target turns a marketplace category or search URL into
// per-city request URLs.
package target

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/avitrack/avitrack/internal/types"
)

// ErrMalformedURL is returned for base URLs that lack the expected
// region placeholder segment. This aborts a run before any city is
// processed.
var ErrMalformedURL = errors.New("malformed target url")

const (
	host = "www.avito.ru"
	// regionPlaceholder is the region segment of a cross-region search
	// URL. It gets replaced by the city slug.
	regionPlaceholder = "all"
)

// Target is the immutable search target of a whole run: the category
// path below the region segment plus an optional search query.
type Target struct {
	CategoryPath string
	Query        string // raw encoded "q=..." or empty
}

// ParseTarget splits a URL of the form
// https://www.avito.ru/all/<category...>[?q=...] into its category path
// and search query. Any query parameter other than q is dropped, the
// marketplace ignores them for ranking anyway.
func ParseTarget(rawURL string) (Target, error) {
	var t Target
	u, err := url.Parse(rawURL)
	if err != nil {
		return t, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host != host {
		return t, fmt.Errorf("%w: URL must start with https://%s/%s/, got %q", ErrMalformedURL, host, regionPlaceholder, rawURL)
	}
	prefix := "/" + regionPlaceholder + "/"
	if !strings.HasPrefix(u.Path, prefix) || len(u.Path) == len(prefix) {
		return t, fmt.Errorf("%w: URL must start with https://%s/%s/, got %q", ErrMalformedURL, host, regionPlaceholder, rawURL)
	}
	t.CategoryPath = strings.TrimPrefix(u.Path, prefix)
	if q := u.Query().Get("q"); q != "" {
		t.Query = url.Values{"q": []string{q}}.Encode()
	}
	return t, nil
}

// URLFor builds the request URL for one city by substituting the city
// slug for the region placeholder. Pure and deterministic.
func (t Target) URLFor(city types.City) string {
	u := fmt.Sprintf("https://%s/%s/%s", host, city.Slug, t.CategoryPath)
	if t.Query != "" {
		u += "?" + t.Query
	}
	return u
}

// Root returns the marketplace root URL, used for the cookie warm-up
// visit before the first city.
func (t Target) Root() string {
	return "https://" + host
}

// String renders the target for logs and the run report.
func (t Target) String() string {
	if t.Query == "" {
		return t.CategoryPath
	}
	return t.CategoryPath + "?" + t.Query
}
