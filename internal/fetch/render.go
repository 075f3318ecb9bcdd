package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/jonathan/job-matcher/internal/logger"
)

// MinContentLength is the extracted-text length below which a page is
// assumed to need JavaScript rendering.
const MinContentLength = 500

// DefaultBrowserTimeout bounds one headless render.
const DefaultBrowserTimeout = 45 * time.Second

// Renderer turns a URL into HTML.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ShouldUseBrowser reports whether extracted text is too short to be the
// real posting.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

// HTTPRenderer fetches pages without executing JavaScript.
type HTTPRenderer struct {
	Options *Options
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, url string) (string, error) {
	res, err := URL(ctx, url, r.Options)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// BrowserRenderer renders pages in headless Chrome via chromedp.
// Chrome or Chromium must be installed.
type BrowserRenderer struct {
	Timeout time.Duration
}

// Render navigates to url, waits for the platform's content marker, lets the
// page settle and returns the outer HTML.
func (r *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := validateURL(url); err != nil {
		return "", err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultBrowserTimeout
	}
	platform := DetectPlatform(url)

	log := logger.Ctx(ctx)
	log.Debug().Str("url", url).Str("platform", string(platform)).Msg("starting headless render")

	allocCtx, cancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(DefaultUserAgent),
		)...,
	)
	defer cancel()

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, timeout)
	defer cancel()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(platform.WaitSelector(), chromedp.ByQuery),
		chromedp.Sleep(platform.SettleDelay()),
		chromedp.ActionFunc(func(ctx context.Context) error {
			// Cookie banners are optional; a missing button is not an error.
			clickCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()
			_ = chromedp.Click(`#onetrust-accept-btn-handler, button[id*="accept"], button[class*="accept"]`, chromedp.ByQuery, chromedp.NodeVisible).Do(clickCtx)
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", &Error{URL: url, Message: "browser rendering failed", Cause: err}
	}

	log.Debug().Str("url", url).Int("bytes", len(html)).Msg("rendered page")
	return html, nil
}

// AutoRenderer tries plain HTTP first and falls back to the browser when the
// page yields too little text.
type AutoRenderer struct {
	HTTP    Renderer
	Browser Renderer
}

// Render implements Renderer.
func (r *AutoRenderer) Render(ctx context.Context, url string) (string, error) {
	log := logger.Ctx(ctx)

	html, err := r.HTTP.Render(ctx, url)
	if err == nil {
		text, terr := HTMLToText(html, DetectPlatform(url))
		if terr == nil && !ShouldUseBrowser(text) {
			return html, nil
		}
		log.Debug().Str("url", url).Int("text_len", len(text)).Msg("static content too short, using browser")
	} else {
		log.Debug().Err(err).Str("url", url).Msg("static fetch failed, using browser")
	}

	if r.Browser == nil {
		if err != nil {
			return "", err
		}
		return html, nil
	}

	rendered, berr := r.Browser.Render(ctx, url)
	if berr != nil {
		if err == nil {
			// Short static content beats nothing.
			return html, nil
		}
		return "", fmt.Errorf("static fetch failed (%v) and %w", err, berr)
	}
	return rendered, nil
}

// NewRenderer builds a renderer by name: "browser", "http" or "auto".
func NewRenderer(kind string, browserTimeout, httpTimeout time.Duration) (Renderer, error) {
	opts := DefaultOptions()
	if httpTimeout > 0 {
		opts.Timeout = httpTimeout
	}
	httpR := &HTTPRenderer{Options: opts}
	browserR := &BrowserRenderer{Timeout: browserTimeout}

	switch kind {
	case "http":
		return httpR, nil
	case "browser":
		return browserR, nil
	case "auto", "":
		return &AutoRenderer{HTTP: httpR, Browser: browserR}, nil
	default:
		return nil, fmt.Errorf("unknown renderer %q", kind)
	}
}
