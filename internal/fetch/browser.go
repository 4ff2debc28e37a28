package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// MinContentLength is the extracted text length below which a page is
// assumed to build its content with JavaScript.
const MinContentLength = 500

func needsRendering(text string) bool {
	return len(strings.TrimSpace(text)) < MinContentLength
}

// Renderer returns the HTML of a page after scripts have run.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer renders pages in headless Chrome, which must be installed.
type BrowserRenderer struct {
	Timeout time.Duration
	// Settle is how long to wait after the body is ready. Defaults to 2s.
	Settle time.Duration
	Logger *slog.Logger
}

var browserFlags = append(chromedp.DefaultExecAllocatorOptions[:],
	chromedp.Flag("headless", true),
	chromedp.Flag("disable-gpu", true),
	chromedp.Flag("no-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
)

// Render implements Renderer.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := b.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	settle := b.Settle
	if settle == 0 {
		settle = 2 * time.Second
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, browserFlags...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()

	logger.Debug("rendering page in headless browser", "url", url)
	var html string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settle),
		chromedp.ActionFunc(dismissCookieBanner),
		chromedp.OuterHTML("html", &html),
	); err != nil {
		return "", fmt.Errorf("browser rendering failed: %w", err)
	}
	logger.Debug("rendered page", "url", url, "bytes", len(html))
	return html, nil
}

// dismissCookieBanner accepts the gov.uk cookie banner when present.
func dismissCookieBanner(ctx context.Context) error {
	_ = chromedp.Click(`.gem-c-cookie-banner button[value="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
	return nil
}
