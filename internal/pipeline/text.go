package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/fetcher"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/splitter"
)

// TextPipeline is the universal plain-text fallback: it rejects binary
// content and splits the remainder with a line-based splitter plus the
// greedy merger (§4.5).
type TextPipeline struct {
	splitter interfaces.Splitter
	logger   arbor.ILogger
}

// NewTextPipeline builds a TextPipeline bounded by cfg.
func NewTextPipeline(cfg splitter.Config, logger arbor.ILogger) *TextPipeline {
	return &TextPipeline{
		splitter: splitter.NewGreedy(splitter.NewTextSplitter(cfg), cfg),
		logger:   logger,
	}
}

// Name implements interfaces.Pipeline.
func (p *TextPipeline) Name() string { return "text" }

// CanProcess accepts anything not flagged binary: it is the last pipeline
// in routing order, so it only ever sees content every other pipeline
// declined.
func (p *TextPipeline) CanProcess(mimeType string, sample []byte) bool {
	if strings.Contains(mimeType, "octet-stream") || strings.Contains(mimeType, "image/") ||
		strings.Contains(mimeType, "video/") || strings.Contains(mimeType, "audio/") ||
		strings.Contains(mimeType, "application/pdf") || strings.Contains(mimeType, "application/zip") {
		return false
	}
	return !fetcher.IsLikelyBinary(sample)
}

// Process splits content's bytes as plain text.
func (p *TextPipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	if fetcher.IsLikelyBinary(content.Content) {
		return models.PipelineResult{}, fmt.Errorf("%w: binary content rejected by text pipeline: %s", errs.ErrProcessing, content.Source)
	}

	text := string(content.Content)
	chunks, err := p.splitter.Split(text)
	if err != nil {
		return models.PipelineResult{}, fmt.Errorf("%w: splitting %s: %v", errs.ErrProcessing, content.Source, err)
	}

	return models.PipelineResult{
		ContentType: "text/plain",
		TextContent: text,
		Chunks:      chunks,
	}, nil
}

// Close implements interfaces.Pipeline; TextPipeline holds no resources.
func (p *TextPipeline) Close() error { return nil }

var _ interfaces.Pipeline = (*TextPipeline)(nil)
