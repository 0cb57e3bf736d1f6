package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/splitter"
)

// trackerDomains is the built-in allow-list of known tracking-pixel/
// analytics domains whose <img> tags are stripped during sanitization
// (§4.6); matched as a case-insensitive substring of the image's src
// attribute as written in the page.
var trackerDomains = []string{
	"doubleclick.net", "google-analytics.com", "googletagmanager.com",
	"facebook.com/tr", "hotjar.com", "segment.io", "mixpanel.com",
	"adsystem", "scorecardresearch.com",
}

// HTMLPipeline converts rendered/static HTML into markdown and chunks it.
// Grounded on the teacher's internal/services/crawler/content_processor.go
// (goquery DOM walk, extractTitle fallback chain, OG/Twitter metadata,
// tag→markdown conversion), with the hand-rolled markdown writer replaced
// by JohannesKaufmann/html-to-markdown — an ecosystem library already in
// the teacher's own go.mod, previously unused by this file.
type HTMLPipeline struct {
	middlewares []Middleware
	splitter    interfaces.Splitter
	converter   *md.Converter
	logger      arbor.ILogger
}

// NewHTMLPipeline builds an HTMLPipeline with the middleware chain
// described in §4.5: metadata extraction, link extraction, sanitization,
// URL/link normalization, then HTML→Markdown conversion. A Playwright
// render step is NOT repeated here: the Web strategy's AutoFetcher
// already renders upstream when ScrapeMode calls for it (§4.4), so the
// HTML this pipeline receives is already the post-render DOM.
func NewHTMLPipeline(cfg splitter.Config, logger arbor.ILogger) *HTMLPipeline {
	converter := md.NewConverter("", true, nil)

	p := &HTMLPipeline{
		splitter:  splitter.NewGreedy(splitter.NewSemanticMarkdown(cfg), cfg),
		converter: converter,
		logger:    logger,
	}
	p.middlewares = []Middleware{
		p.parseMiddleware,
		p.metadataMiddleware,
		p.linkMiddleware,
		p.sanitizeMiddleware,
		p.normalizeMiddleware,
		p.markdownMiddleware,
	}
	return p
}

// Name implements interfaces.Pipeline.
func (p *HTMLPipeline) Name() string { return "html" }

// CanProcess claims text/html and content sniffed as HTML.
func (p *HTMLPipeline) CanProcess(mimeType string, sample []byte) bool {
	if strings.Contains(mimeType, "html") {
		return true
	}
	trimmed := strings.TrimSpace(strings.ToLower(string(sample)))
	return strings.HasPrefix(trimmed, "<!doctype html") || strings.HasPrefix(trimmed, "<html")
}

// Process runs content through the middleware chain and splits the
// resulting markdown.
func (p *HTMLPipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	mctx := &Ctx{
		Context:     ctx,
		Content:     content.Content,
		ContentType: content.MimeType,
		Source:      content.Source,
		Options:     options,
		Fetcher:     f,
		Logger:      p.logger,
	}

	runChain(mctx, p.middlewares)

	chunks, err := p.splitter.Split(mctx.Markdown)
	if err != nil {
		mctx.Errors = append(mctx.Errors, fmt.Sprintf("%v", err))
	}

	return models.PipelineResult{
		Title:       mctx.Title,
		ContentType: "text/html",
		TextContent: mctx.Markdown,
		Links:       mctx.Links,
		Errors:      mctx.Errors,
		Chunks:      chunks,
	}, nil
}

// Close implements interfaces.Pipeline; HTMLPipeline holds no resources
// of its own. The shared BrowserRenderer, when configured, is held by the
// AutoFetcher and is not closed here.
func (p *HTMLPipeline) Close() error { return nil }

func (p *HTMLPipeline) parseMiddleware(ctx *Ctx, next func()) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(ctx.Content)))
	if err != nil {
		ctx.Errors = append(ctx.Errors, fmt.Sprintf("%s: parsing html: %v", errs.ErrProcessing, err))
		return
	}
	ctx.DOM = doc
	next()
}

func (p *HTMLPipeline) metadataMiddleware(ctx *Ctx, next func()) {
	doc := ctx.DOM.(*goquery.Document)
	ctx.Title = extractTitle(doc)
	next()
}

// extractTitle follows the teacher's fallback chain: <title> -> og:title
// -> first <h1> -> twitter:title.
func extractTitle(doc *goquery.Document) string {
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if tw, ok := doc.Find(`meta[name="twitter:title"]`).Attr("content"); ok && strings.TrimSpace(tw) != "" {
		return strings.TrimSpace(tw)
	}
	return ""
}

func (p *HTMLPipeline) linkMiddleware(ctx *Ctx, next func()) {
	doc := ctx.DOM.(*goquery.Document)
	base, _ := url.Parse(ctx.Source)

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		resolved := resolveLink(base, href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true
		ctx.Links = append(ctx.Links, resolved)
	})
	next()
}

// resolveLink implements §4.6's link rule: resolve against the final URL;
// unwrap (return "") links that are empty, fragment-only, or non-http(s).
func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := u
	if base != nil {
		resolved = base.ResolveReference(u)
	}
	if resolved.Scheme != "" && resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

func (p *HTMLPipeline) sanitizeMiddleware(ctx *Ctx, next func()) {
	doc := ctx.DOM.(*goquery.Document)
	doc.Find("script, style, nav, footer, aside, noscript").Remove()

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			sel.Remove()
			return
		}
		if strings.HasPrefix(src, "data:") {
			return
		}
		if isTrackerURL(src) {
			sel.Remove()
		}
	})

	// Unwrap anchors whose href was rejected by resolveLink, keeping
	// their inner HTML in place per §4.6.
	base, _ := url.Parse(ctx.Source)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if resolveLink(base, href) == "" {
			sel.ReplaceWithHtml(mustHTML(sel))
		}
	})

	next()
}

func mustHTML(sel *goquery.Selection) string {
	h, err := sel.Html()
	if err != nil {
		return sel.Text()
	}
	return h
}

func isTrackerURL(src string) bool {
	lower := strings.ToLower(src)
	for _, domain := range trackerDomains {
		if strings.Contains(lower, domain) {
			return true
		}
	}
	return false
}

func (p *HTMLPipeline) normalizeMiddleware(ctx *Ctx, next func()) {
	doc := ctx.DOM.(*goquery.Document)
	base, _ := url.Parse(ctx.Source)

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if strings.HasPrefix(src, "data:") {
			return
		}
		u, err := url.Parse(src)
		if err != nil {
			return
		}
		resolved := u
		if base != nil {
			resolved = base.ResolveReference(u)
		}
		sel.SetAttr("src", resolved.String())
	})

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if resolved := resolveLink(base, href); resolved != "" {
			sel.SetAttr("href", resolved)
		}
	})

	next()
}

func (p *HTMLPipeline) markdownMiddleware(ctx *Ctx, next func()) {
	doc := ctx.DOM.(*goquery.Document)
	html, err := doc.Html()
	if err != nil {
		ctx.Errors = append(ctx.Errors, fmt.Sprintf("%s: serializing sanitized html: %v", errs.ErrProcessing, err))
		next()
		return
	}

	markdown, err := p.converter.ConvertString(html)
	if err != nil {
		ctx.Errors = append(ctx.Errors, fmt.Sprintf("%s: html to markdown: %v", errs.ErrProcessing, err))
		ctx.Markdown = doc.Text()
		next()
		return
	}

	ctx.Markdown = strings.TrimSpace(markdown) + "\n"
	next()
}

var _ interfaces.Pipeline = (*HTMLPipeline)(nil)
