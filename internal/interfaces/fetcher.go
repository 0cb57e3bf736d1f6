package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/ingestor/internal/models"
)

// FetchOptions configures one Fetcher.Fetch call.
type FetchOptions struct {
	ETag            string
	Headers         map[string]string
	FollowRedirects bool
	Timeout         time.Duration

	// ScrapeMode is consulted only by fetchers that support re-rendering
	// (AutoFetcher); it is never sent as a wire header. Empty means the
	// fetcher's default behavior.
	ScrapeMode models.ScrapeMode
}

// Fetcher retrieves raw bytes for one source. Implementations must return
// RawContent.Status = NOT_MODIFIED when the server answers 304 to an
// If-None-Match request, and NOT_FOUND on 404/ENOENT, and must populate
// RawContent.Source with the final URL after redirects.
type Fetcher interface {
	CanFetch(source string) bool
	Fetch(ctx context.Context, source string, opts FetchOptions) (models.RawContent, error)
}
