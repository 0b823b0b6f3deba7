// Package extract turns one city URL into the ordered sequence of
// listings rendered in its paginated results feed.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/avitrack/avitrack/internal/fetch"
	"github.com/avitrack/avitrack/internal/types"
)

// Selectors of the marketplace results feed. The data-marker
// attributes are stable across the frequently changing css class
// names.
const (
	serpSelector     = `[data-marker="catalog-serp"]`
	itemSelector     = `[data-marker="item"]`
	titleSelector    = `a[data-marker="item-title"]`
	nextPageSelector = `a[data-marker="pagination-button/nextPage"]`

	promotedMarker = "Реклама"
	sellerLinkHint = "src=search_seller_info"
)

var (
	// ErrTimeout indicates the results list never rendered within the
	// configured timeouts.
	ErrTimeout = errors.New("results list did not render")
	// ErrBlocked indicates a captcha or access-restriction page was
	// served instead of results.
	ErrBlocked = errors.New("blocked by anti-automation check")
	// ErrParse indicates a rendered listing node could not be decoded
	// into (title, url).
	ErrParse = errors.New("cannot decode listing node")
)

// AttemptError wraps a transient extraction failure together with the
// raw page so the caller can persist it for debugging. Err is one of
// ErrTimeout, ErrBlocked or ErrParse (possibly wrapped).
type AttemptError struct {
	URL      string
	Snapshot string
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.URL, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// title fragments of the marketplace's block pages
var blockedHints = []string{"доступ ограничен", "проблема с ip", "captcha"}

// url fragments of the marketplace's captcha redirects
var blockedURLHints = []string{"captcha", "challenge", "blocked"}

// sellerRatingRe matches the rating suffix the marketplace appends to
// the seller anchor text, e.g. "Иван Сервис 4,9·152 отзыва".
var sellerRatingRe = regexp.MustCompile(`[\d.,]+·.*$`)

// Extractor performs a single deterministic extraction attempt per
// city URL. It does not retry and it does not sleep, that is the
// tracker's job.
type Extractor struct {
	Fetcher fetch.Fetcher
	// MaxPages bounds the pagination depth per city, 0 means no cap.
	MaxPages int
	// ScrollCount is handed to the fetcher per page.
	ScrollCount int
}

// Extract loads the city URL, pages through the results feed and
// returns all listings in feed order. Rank is a running 1-based
// counter across all pages.
func (e *Extractor) Extract(ctx context.Context, urlStr string) ([]types.Listing, error) {
	var listings []types.Listing
	pageURL := urlStr
	rank := 0
	for currentPage := 1; ; currentPage++ {
		body, finalURL, err := e.Fetcher.Fetch(ctx, pageURL, fetch.FetchOpts{
			WaitSelector: serpSelector,
			ScrollCount:  e.ScrollCount,
		})
		if err != nil {
			if errors.Is(err, fetch.ErrWaitTimeout) {
				return listings, &AttemptError{URL: pageURL, Snapshot: body, Err: classifyEmptyPage(finalURL, body)}
			}
			return listings, &AttemptError{URL: pageURL, Err: fmt.Errorf("%w: %v", ErrTimeout, err)}
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err != nil {
			return listings, &AttemptError{URL: pageURL, Snapshot: body, Err: fmt.Errorf("%w: %v", ErrParse, err)}
		}
		if blockedURL(finalURL) || looksBlocked(doc) {
			return listings, &AttemptError{URL: pageURL, Snapshot: body, Err: ErrBlocked}
		}
		container := doc.Find(serpSelector)
		if container.Length() == 0 {
			// can happen with fetchers that do not wait for the selector
			return listings, &AttemptError{URL: pageURL, Snapshot: body, Err: ErrTimeout}
		}

		var parseErr error
		container.Find(itemSelector).EachWithBreak(func(i int, s *goquery.Selection) bool {
			l, err := decodeItem(s, pageURL)
			if err != nil {
				parseErr = err
				return false
			}
			rank++
			l.Rank = rank
			listings = append(listings, l)
			return true
		})
		if parseErr != nil {
			return listings, &AttemptError{URL: pageURL, Snapshot: body, Err: parseErr}
		}

		next, ok := doc.Find(nextPageSelector).Attr("href")
		if !ok || next == "" {
			break
		}
		if e.MaxPages != 0 && currentPage >= e.MaxPages {
			break
		}
		pageURL = resolveURL(pageURL, next)
	}
	return listings, nil
}

func classifyEmptyPage(finalURL, body string) error {
	if blockedURL(finalURL) {
		return ErrBlocked
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil && looksBlocked(doc) {
		return ErrBlocked
	}
	return ErrTimeout
}

func blockedURL(finalURL string) bool {
	lower := strings.ToLower(finalURL)
	for _, hint := range blockedURLHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func looksBlocked(doc *goquery.Document) bool {
	title := strings.ToLower(doc.Find("title").Text())
	for _, hint := range blockedHints {
		if strings.Contains(title, hint) {
			return true
		}
	}
	return false
}

// decodeItem extracts (title, url) plus the promoted flag and the
// seller link from one listing node.
func decodeItem(s *goquery.Selection, pageURL string) (types.Listing, error) {
	var l types.Listing
	titleLink := s.Find(titleSelector)
	if titleLink.Length() == 0 {
		return l, fmt.Errorf("%w: no title link", ErrParse)
	}
	l.Title = strings.TrimSpace(titleLink.First().Text())
	href, ok := titleLink.First().Attr("href")
	if l.Title == "" || !ok || href == "" {
		return l, fmt.Errorf("%w: empty title or url", ErrParse)
	}
	l.URL = stripQuery(resolveURL(pageURL, href))
	l.Promoted = strings.Contains(s.Text(), promotedMarker)

	s.Find("a").EachWithBreak(func(i int, a *goquery.Selection) bool {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, sellerLinkHint) {
			return true
		}
		l.SellerName = strings.TrimSpace(sellerRatingRe.ReplaceAllString(strings.TrimSpace(a.Text()), ""))
		l.SellerURL = stripQuery(resolveURL(pageURL, href))
		return false
	})
	return l, nil
}

func resolveURL(baseStr, href string) string {
	base, err := url.Parse(baseStr)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func stripQuery(u string) string {
	if i := strings.IndexByte(u, '?'); i >= 0 {
		return u[:i]
	}
	return u
}
