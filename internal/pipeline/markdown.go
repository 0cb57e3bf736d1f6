package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/splitter"
)

var (
	mdTitleRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	mdLinkRe  = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)(?:\s+"[^"]*")?\)`)
)

// MarkdownPipeline handles raw markdown sources: metadata/link extraction
// followed by the semantic-markdown splitter and greedy merger (§4.5).
type MarkdownPipeline struct {
	splitter interfaces.Splitter
	logger   arbor.ILogger
}

// NewMarkdownPipeline builds a MarkdownPipeline bounded by cfg.
func NewMarkdownPipeline(cfg splitter.Config, logger arbor.ILogger) *MarkdownPipeline {
	return &MarkdownPipeline{
		splitter: splitter.NewGreedy(splitter.NewSemanticMarkdown(cfg), cfg),
		logger:   logger,
	}
}

// Name implements interfaces.Pipeline.
func (p *MarkdownPipeline) Name() string { return "markdown" }

// CanProcess claims text/markdown and common markdown extensions
// signaled through mimeType.
func (p *MarkdownPipeline) CanProcess(mimeType string, sample []byte) bool {
	return strings.Contains(mimeType, "markdown") || strings.Contains(mimeType, "text/x-markdown")
}

// Process extracts a title (first H1) and links, then splits the raw
// markdown body.
func (p *MarkdownPipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	text := string(content.Content)

	title := ""
	if m := mdTitleRe.FindStringSubmatch(text); m != nil {
		title = strings.TrimSpace(m[1])
	}

	var links []string
	for _, m := range mdLinkRe.FindAllStringSubmatch(text, -1) {
		links = append(links, m[2])
	}

	chunks, err := p.splitter.Split(text)
	if err != nil {
		return models.PipelineResult{}, fmt.Errorf("%w: splitting %s: %v", errs.ErrProcessing, content.Source, err)
	}

	return models.PipelineResult{
		Title:       title,
		ContentType: "text/markdown",
		TextContent: text,
		Links:       links,
		Chunks:      chunks,
	}, nil
}

// Close implements interfaces.Pipeline; MarkdownPipeline holds no
// resources.
func (p *MarkdownPipeline) Close() error { return nil }

var _ interfaces.Pipeline = (*MarkdownPipeline)(nil)
