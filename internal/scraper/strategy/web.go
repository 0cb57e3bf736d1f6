// Package strategy implements the source-specific BFS participants of
// §4.4: Web, Local-file, GitHub, npm, and PyPI.
package strategy

import (
	"context"
	"mime"
	"path"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// ShouldFollowLinkFunc is the optional extra link filter described in
// §4.4 ("filtered by scope and optional shouldFollowLink hook"), applied
// in addition to scope/pattern filtering already done by the BFS core.
type ShouldFollowLinkFunc func(link string) bool

// Web is the default strategy: fetch over HTTP (with optional headless
// rendering), route bytes through the pipeline registry, return the
// extracted links for the BFS core to filter and follow.
type Web struct {
	fetcher  interfaces.Fetcher
	registry pipelineRegistry
	follow   ShouldFollowLinkFunc
	logger   arbor.ILogger
}

// pipelineRegistry is the narrow slice of *pipeline.Registry's API this
// strategy needs, kept as an interface so strategy tests can fake it
// without importing the pipeline package.
type pipelineRegistry interface {
	Select(mimeType string, sample []byte) interfaces.Pipeline
}

// NewWeb builds a Web strategy. follow may be nil (no extra filtering
// beyond scope/patterns).
func NewWeb(fetcher interfaces.Fetcher, registry pipelineRegistry, follow ShouldFollowLinkFunc, logger arbor.ILogger) *Web {
	return &Web{fetcher: fetcher, registry: registry, follow: follow, logger: logger}
}

// CanHandle claims any http(s) URL.
func (w *Web) CanHandle(sourceURL string) bool {
	return strings.HasPrefix(sourceURL, "http://") || strings.HasPrefix(sourceURL, "https://")
}

// ProcessItem fetches item.URL, routes it through the pipeline registry,
// and returns the discovered links unfiltered (scope/pattern filtering
// happens in the BFS core; only the optional shouldFollowLink hook is
// applied here since it is strategy-specific).
func (w *Web) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	raw, err := w.fetcher.Fetch(ctx, item.URL, interfaces.FetchOptions{
		ETag:            item.ETag,
		Headers:         cloneHeaders(options.Headers),
		FollowRedirects: options.FollowRedirects,
		ScrapeMode:      options.ScrapeMode,
	})
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	result := interfaces.ProcessItemResult{
		URL:          raw.Source,
		ETag:         raw.ETag,
		LastModified: raw.LastModified,
		Status:       raw.Status,
	}
	if raw.Status != models.StatusSuccess {
		return result, nil
	}

	p := w.registry.Select(raw.MimeType, sample(raw.Content))
	if p == nil {
		w.logger.Warn().Str("url", raw.Source).Str("mime", raw.MimeType).Msg("web strategy: no pipeline claimed content, skipping")
		result.Status = models.StatusSuccess
		return result, nil
	}

	pr, err := p.Process(ctx, raw, options, w.fetcher)
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	result.Title = pr.Title
	result.ContentType = pr.ContentType
	result.Content = &pr
	result.Links = w.filterLinks(pr.Links)
	return result, nil
}

func (w *Web) filterLinks(links []string) []string {
	if w.follow == nil {
		return links
	}
	var out []string
	for _, l := range links {
		if w.follow(l) {
			out = append(out, l)
		}
	}
	return out
}

// Cleanup implements interfaces.Strategy; it releases nothing. The Web
// strategy holds no browser of its own, and the fetcher's BrowserRenderer,
// if any, is not closed here.
func (w *Web) Cleanup() error { return nil }

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

func sample(body []byte) []byte {
	n := len(body)
	if n > 512 {
		n = 512
	}
	return body[:n]
}

// extFromURLPath returns the lower-cased extension of a URL path; the
// GitHub strategy uses it for its path filter and blob MIME mapping.
func extFromURLPath(u string) string {
	return strings.ToLower(path.Ext(u))
}

func mimeHintFromExt(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return ""
}

var _ interfaces.Strategy = (*Web)(nil)
