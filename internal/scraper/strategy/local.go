package strategy

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/fetcher"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// Local walks a local file:// tree. Directories yield their children as
// discovered links; files are routed through the pipeline registry.
// Never follows links found inside file content (§4.4).
type Local struct {
	fetcher  *fetcher.LocalFileFetcher
	registry pipelineRegistry
	logger   arbor.ILogger
}

// NewLocal builds a Local strategy.
func NewLocal(f *fetcher.LocalFileFetcher, registry pipelineRegistry, logger arbor.ILogger) *Local {
	return &Local{fetcher: f, registry: registry, logger: logger}
}

// CanHandle claims file:// URLs.
func (l *Local) CanHandle(sourceURL string) bool {
	return strings.HasPrefix(sourceURL, "file://")
}

// ProcessItem fetches item.URL; if it names a directory, its children
// become the item's discovered links and it is not itself content (a
// directory has no pipeline-processable bytes).
func (l *Local) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	if children, err := fetcher.ListDirectory(item.URL); err == nil {
		return interfaces.ProcessItemResult{
			URL:    item.URL,
			Status: models.StatusSuccess,
			Links:  children,
		}, nil
	}

	raw, err := l.fetcher.Fetch(ctx, item.URL, interfaces.FetchOptions{ETag: item.ETag})
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

	p := l.registry.Select(raw.MimeType, sample(raw.Content))
	if p == nil {
		l.logger.Warn().Str("url", raw.Source).Str("mime", raw.MimeType).Msg("local strategy: no pipeline claimed content, skipping")
		return result, nil
	}

	pr, err := p.Process(ctx, raw, options, l.fetcher)
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	result.Title = pr.Title
	result.ContentType = pr.ContentType
	result.Content = &pr
	// Links inside file content are never followed (§4.4); pr.Links is
	// dropped intentionally.
	return result, nil
}

// Cleanup implements interfaces.Strategy; Local owns no resources.
func (l *Local) Cleanup() error { return nil }

var _ interfaces.Strategy = (*Local)(nil)
