package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"

	appLog "courtavail/internal/log"
)

// Default scrape parameters for the public calendar page.
const (
	DefaultSelector   = "div.vevent"
	DefaultTimeoutSec = 60
)

// PageSource renders the facility's calendar page in headless Chromium
// and returns the visible text of every element matching Selector.
type PageSource struct {
	// URL of the calendar page, e.g. the 25Live public calendar.
	URL string

	// Selector is a CSS selector for event elements. If empty,
	// DefaultSelector is used.
	Selector string

	// Timeout bounds the whole scrape. If zero, DefaultTimeoutSec is used.
	Timeout time.Duration
}

// Fetch launches (or attaches to) a headless Chromium instance via
// chromedp, navigates to URL, waits until the first event element is
// present, and collects the text of all event elements.
func (p *PageSource) Fetch(parentCtx context.Context) ([]string, error) {
	if p.URL == "" {
		return nil, fmt.Errorf("page source: URL is required")
	}
	selector := p.Selector
	if selector == "" {
		selector = DefaultSelector
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	script := fmt.Sprintf(`Array.from(document.querySelectorAll(%s)).map(e => e.innerText)`, strconv.Quote(selector))

	var texts []string
	tasks := chromedp.Tasks{
		chromedp.Navigate(p.URL),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		// Calendar widgets keep filling in after the first event appears.
		chromedp.Sleep(2 * time.Second),
		chromedp.Evaluate(script, &texts),
	}

	appLog.Info("page scrape start", "url", redactURL(p.URL), "selector", selector)
	if err := chromedp.Run(ctx, tasks); err != nil {
		return nil, fmt.Errorf("page source: chromedp run failed: %w", err)
	}

	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if s := flatten(t); s != "" {
			out = append(out, s)
		}
	}
	appLog.Info("page scrape completed", "url", redactURL(p.URL), "blobs", len(out))
	return out, nil
}
