package interfaces

import (
	"context"

	"github.com/ternarybob/ingestor/internal/models"
)

// Pipeline detects whether it can handle a MIME type/byte sample and, if
// so, transforms RawContent into a PipelineResult.
type Pipeline interface {
	Name() string
	CanProcess(mimeType string, sample []byte) bool
	Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, fetcher Fetcher) (models.PipelineResult, error)
	Close() error
}

// Splitter turns already-extracted text/bytes into size-bounded,
// hierarchically-labeled chunks.
type Splitter interface {
	Split(content string) ([]models.Chunk, error)
}

// ProcessItemResult is what one Strategy.ProcessItem call returns to the
// BFS core.
type ProcessItemResult struct {
	URL          string
	Title        string
	ContentType  string
	ETag         string
	LastModified string
	Content      *models.PipelineResult
	Links        []string
	Status       models.ContentStatus
}

// Strategy is a source-specific BFS participant: it knows how to fetch and
// process one queue item and report back the links it discovered.
type Strategy interface {
	CanHandle(sourceURL string) bool
	ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (ProcessItemResult, error)
	Cleanup() error
}
