package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// renderWaitTime is how long AutoFetcher lets a rendered page settle
// before reading its DOM.
const renderWaitTime = 2 * time.Second

// AutoFetcher is the Web strategy's fetch entry point: it always fetches
// over HTTP first (cheap, supports conditional requests), then
// re-renders with a headless browser when the caller's ScrapeMode calls
// for it. "auto" mode renders only when the fetched content looks like an
// empty-shell SPA (very little text relative to markup).
type AutoFetcher struct {
	http     *HTTPFetcher
	renderer BrowserRenderer
	logger   arbor.ILogger
}

// NewAutoFetcher wires an HTTPFetcher with an optional BrowserRenderer;
// renderer may be nil, in which case playwright/auto modes degrade to
// plain HTTP fetches.
func NewAutoFetcher(http *HTTPFetcher, renderer BrowserRenderer, logger arbor.ILogger) *AutoFetcher {
	return &AutoFetcher{http: http, renderer: renderer, logger: logger}
}

// CanFetch delegates to the HTTP fetcher.
func (f *AutoFetcher) CanFetch(source string) bool {
	return f.http.CanFetch(source)
}

// Fetch performs the HTTP fetch, then optionally re-renders per
// opts.ScrapeMode.
func (f *AutoFetcher) Fetch(ctx context.Context, source string, opts interfaces.FetchOptions) (models.RawContent, error) {
	raw, err := f.http.Fetch(ctx, source, opts)
	if err != nil || raw.Status != models.StatusSuccess {
		return raw, err
	}

	switch opts.ScrapeMode {
	case models.ScrapeModePlaywright:
		return f.render(ctx, raw)
	case models.ScrapeModeAuto:
		if looksLikeEmptyShell(raw.Content) {
			return f.render(ctx, raw)
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func (f *AutoFetcher) render(ctx context.Context, raw models.RawContent) (models.RawContent, error) {
	if f.renderer == nil {
		f.logger.Warn().Str("url", raw.Source).Msg("render requested but no BrowserRenderer configured, falling back to fetched HTML")
		return raw, nil
	}

	html, err := f.renderer.Render(ctx, raw.Source, renderWaitTime)
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: %v", errs.ErrFetch, err)
	}
	raw.Content = []byte(html)
	raw.MimeType = "text/html"
	return raw, nil
}

// looksLikeEmptyShell is a crude SPA heuristic: very little text content
// relative to the raw byte length suggests a client-side-rendered shell
// worth re-fetching through a browser.
func looksLikeEmptyShell(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	textLen := 0
	inTag := false
	for _, b := range body {
		switch b {
		case '<':
			inTag = true
		case '>':
			inTag = false
		default:
			if !inTag && b != ' ' && b != '\n' && b != '\t' {
				textLen++
			}
		}
	}
	return float64(textLen)/float64(len(body)) < 0.02
}

var _ interfaces.Fetcher = (*AutoFetcher)(nil)
