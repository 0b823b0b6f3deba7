package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/avitrack/avitrack/internal/config"
	"github.com/avitrack/avitrack/internal/log"
)

// hideWebdriver masks the automation flag the same way a regular
// browser profile reports it.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', { get: () => undefined });`

// The DynamicFetcher renders js in a real browser. One browser session
// is started on creation and reused for every fetch so cookies survive
// across cities; Cancel releases it.
type DynamicFetcher struct {
	*FetcherConfig
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func NewDynamicFetcher(fc *FetcherConfig) (*DynamicFetcher, error) {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", fc.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 768),
	)
	if fc.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(fc.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	d := &DynamicFetcher{
		FetcherConfig: fc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}
	// starts the browser and installs the init script for all
	// documents of this session
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if err != nil {
		d.Cancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return d, nil
}

func (d *DynamicFetcher) Cancel() {
	d.cancelBrowser()
	d.cancelAlloc()
}

func (d *DynamicFetcher) Fetch(ctx context.Context, urlStr string, opts FetchOpts) (string, string, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("fetcher", "dynamic"), slog.String("url", urlStr))
	logger.Debug("fetching page", slog.String("user-agent", d.UserAgent))

	pageCtx, cancel := context.WithTimeout(d.browserCtx, time.Duration(d.PageTimeoutMS)*time.Millisecond)
	defer cancel()
	if err := chromedp.Run(pageCtx, chromedp.Navigate(urlStr)); err != nil {
		return "", urlStr, fmt.Errorf("navigation failed: %w", err)
	}

	if opts.WaitSelector != "" {
		waitCtx, cancelWait := context.WithTimeout(d.browserCtx, time.Duration(d.SelectorTimeoutMS)*time.Millisecond)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(opts.WaitSelector, chromedp.ByQuery))
		cancelWait()
		if err != nil {
			logger.Warn("wait selector did not appear", slog.String("selector", opts.WaitSelector))
			snapshot, _ := d.snapshot()
			return snapshot, d.location(urlStr), fmt.Errorf("%w: %s", ErrWaitTimeout, opts.WaitSelector)
		}
	}

	for i := 0; i < opts.ScrollCount; i++ {
		delay := time.Duration(500+rand.Intn(1000)) * time.Millisecond
		err := chromedp.Run(d.browserCtx,
			chromedp.Evaluate(`window.scrollBy(0, window.innerHeight * 0.7)`, nil),
			chromedp.Sleep(delay),
		)
		if err != nil {
			logger.Debug("scrolling failed", slog.String("err", err.Error()))
			break
		}
	}

	body, err := d.snapshot()
	if err != nil {
		return "", urlStr, err
	}
	if config.Debug && d.DebugDir != "" {
		if path, err := SaveSnapshot(d.DebugDir, "page", body); err == nil {
			logger.Debug(fmt.Sprintf("wrote page snapshot to %s", path))
		}
	}
	return body, d.location(urlStr), nil
}

// location returns the URL the browser currently sits on, falling back
// to the requested one if it cannot be read.
func (d *DynamicFetcher) location(fallback string) string {
	var loc string
	if err := chromedp.Run(d.browserCtx, chromedp.Location(&loc)); err != nil || loc == "" {
		return fallback
	}
	return loc
}

// snapshot returns the outer HTML of the current document.
func (d *DynamicFetcher) snapshot() (string, error) {
	var body string
	err := chromedp.Run(d.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		body, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	return body, err
}
