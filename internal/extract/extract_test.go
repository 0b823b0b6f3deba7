package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/avitrack/avitrack/internal/fetch"
)

const baseURL = "https://www.avito.ru/moskva/telefony"

func listingItem(title, href string) string {
	return fmt.Sprintf(`<div data-marker="item"><a data-marker="item-title" href="%s"><h3>%s</h3></a></div>`, href, title)
}

func serpPage(items []string, nextHref string) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Телефоны в Москве</title></head><body><div data-marker="catalog-serp">`)
	for _, it := range items {
		b.WriteString(it)
	}
	b.WriteString(`</div>`)
	if nextHref != "" {
		b.WriteString(fmt.Sprintf(`<a data-marker="pagination-button/nextPage" href="%s">next</a>`, nextHref))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func nItems(page, n int) []string {
	items := make([]string, n)
	for i := 0; i < n; i++ {
		items[i] = listingItem(fmt.Sprintf("iPhone p%d-%d", page, i+1), fmt.Sprintf("/moskva/telefony/iphone_%d%02d?context=abc", page, i+1))
	}
	return items
}

func TestExtractRanksAcrossPages(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL:          serpPage(nItems(1, 10), "?p=2"),
		baseURL + "?p=2": serpPage(nItems(2, 10), "?p=3"),
		baseURL + "?p=3": serpPage(nItems(3, 10), ""),
	})
	e := &Extractor{Fetcher: fetcher}
	listings, err := e.Extract(context.Background(), baseURL)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if len(listings) != 30 {
		t.Fatalf("expected 30 listings but got %d", len(listings))
	}
	for i, l := range listings {
		if l.Rank != i+1 {
			t.Fatalf("expected rank %d at index %d but got %d", i+1, i, l.Rank)
		}
	}
	if listings[10].Title != "iPhone p2-1" {
		t.Fatalf("expected page 2 to continue the ordering but got %q at rank 11", listings[10].Title)
	}
}

func TestExtractMaxPagesBoundsPagination(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL:          serpPage(nItems(1, 10), "?p=2"),
		baseURL + "?p=2": serpPage(nItems(2, 10), "?p=3"),
	})
	e := &Extractor{Fetcher: fetcher, MaxPages: 1}
	listings, err := e.Extract(context.Background(), baseURL)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	if len(listings) != 10 {
		t.Fatalf("expected 10 listings with max_pages=1 but got %d", len(listings))
	}
	if len(fetcher.Fetched) != 1 {
		t.Fatalf("expected a single page fetch but got %d", len(fetcher.Fetched))
	}
}

func TestExtractResolvesRelativeURLs(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: serpPage([]string{listingItem("iPhone 15", "/moskva/telefony/iphone_123?context=xyz")}, ""),
	})
	e := &Extractor{Fetcher: fetcher}
	listings, err := e.Extract(context.Background(), baseURL)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	want := "https://www.avito.ru/moskva/telefony/iphone_123"
	if listings[0].URL != want {
		t.Fatalf("expected %q but got %q", want, listings[0].URL)
	}
}

func TestExtractPromotedAndSeller(t *testing.T) {
	rated := `<div data-marker="item">
		<a data-marker="item-title" href="/moskva/telefony/iphone_1"><h3>iPhone 15</h3></a>
		<span>Реклама</span>
		<a href="/user/a1b2?src=search_seller_info">Иван Сервис 4,9·152 отзыва</a>
	</div>`
	unrated := `<div data-marker="item">
		<a data-marker="item-title" href="/moskva/telefony/iphone_2"><h3>iPhone 14</h3></a>
		<a href="/user/c3d4?src=search_seller_info">ТехноМир</a>
	</div>`
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: serpPage([]string{rated, unrated}, ""),
	})
	e := &Extractor{Fetcher: fetcher}
	listings, err := e.Extract(context.Background(), baseURL)
	if err != nil {
		t.Fatalf("got unexpected error: %v", err)
	}
	l := listings[0]
	if !l.Promoted {
		t.Fatalf("expected promoted flag to be set")
	}
	if l.SellerName != "Иван Сервис" {
		t.Fatalf("expected the rating suffix to be stripped but got %q", l.SellerName)
	}
	if l.SellerURL != "https://www.avito.ru/user/a1b2" {
		t.Fatalf("unexpected seller url: %q", l.SellerURL)
	}
	if listings[1].SellerName != "ТехноМир" {
		t.Fatalf("expected a seller name without rating to stay untouched but got %q", listings[1].SellerName)
	}
	if listings[1].Promoted {
		t.Fatalf("expected the second listing not to be promoted")
	}
}

func TestExtractBlockedByCaptchaRedirect(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: `<html><head><title>Один момент…</title></head><body></body></html>`,
	})
	fetcher.Redirects = map[string]string{
		baseURL: "https://www.avito.ru/web/1/main/showcaptcha?retpath=%2Fmoskva%2Ftelefony",
	}
	e := &Extractor{Fetcher: fetcher}
	_, err := e.Extract(context.Background(), baseURL)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected a captcha redirect to surface as ErrBlocked but got %v", err)
	}
}

func TestExtractParseErrorOnUndecodableNode(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: serpPage([]string{`<div data-marker="item"><span>no title link</span></div>`}, ""),
	})
	e := &Extractor{Fetcher: fetcher}
	_, err := e.Extract(context.Background(), baseURL)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse but got %v", err)
	}
	var ae *AttemptError
	if !errors.As(err, &ae) {
		t.Fatalf("expected an AttemptError but got %T", err)
	}
	if ae.Snapshot == "" {
		t.Fatalf("expected the attempt error to carry the page snapshot")
	}
}

func TestExtractTimeoutWhenContainerMissing(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: `<html><head><title>Телефоны</title></head><body><p>still loading</p></body></html>`,
	})
	e := &Extractor{Fetcher: fetcher}
	_, err := e.Extract(context.Background(), baseURL)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout but got %v", err)
	}
}

func TestExtractBlockedPage(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{
		baseURL: `<html><head><title>Доступ ограничен: проблема с IP</title></head><body></body></html>`,
	})
	e := &Extractor{Fetcher: fetcher}
	_, err := e.Extract(context.Background(), baseURL)
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked but got %v", err)
	}
}

func TestExtractFetchFailure(t *testing.T) {
	fetcher := fetch.NewMockFetcher(map[string]string{})
	e := &Extractor{Fetcher: fetcher}
	_, err := e.Extract(context.Background(), baseURL)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected a fetch failure to surface as ErrTimeout but got %v", err)
	}
}
