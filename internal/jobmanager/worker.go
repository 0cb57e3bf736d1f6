package jobmanager

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/scraper"
)

// workerCallbacks mirrors §4.2's `callbacks` argument: progress and
// non-fatal per-page errors are reported back to the Manager, which owns
// translating them into Bus events.
type workerCallbacks struct {
	onProgress func(progress models.ProgressSnapshot)
	onJobError func(message string)
}

// worker implements executeJob (§4.2): pre-scrape full-reingest deletion
// unless refresh, then drives the Scraper with a per-page callback that
// applies the delete/add persistence rules.
type worker struct {
	store  interfaces.Store
	logger arbor.ILogger
}

func newWorker(store interfaces.Store, logger arbor.ILogger) *worker {
	return &worker{store: store, logger: logger}
}

// executeJob runs job to completion, cancellation, or failure. The
// returned error is nil on success; errors.Is(err, errs.ErrCancelled)
// distinguishes cancellation from real failure for the caller (the
// Manager), which assigns the final job status.
func (w *worker) executeJob(ctx context.Context, job *models.Job, s *scraper.Scraper, cb workerCallbacks) error {
	opts := *job.ScraperOptions

	if !opts.IsRefresh {
		if err := w.store.RemoveAllDocuments(ctx, job.Library, job.Version); err != nil {
			w.logger.Warn().Err(err).Str("library", job.Library).Str("version", job.Version).
				Msg("worker: failed to clear existing documents before full re-ingest")
		}
	}

	onPage := func(pctx context.Context, progress models.ProgressSnapshot) error {
		select {
		case <-pctx.Done():
			return fmt.Errorf("%w: %v", errs.ErrCancelled, pctx.Err())
		default:
		}

		if cb.onProgress != nil {
			cb.onProgress(progress)
		}

		if progress.Deleted {
			if progress.PageID != "" {
				if err := w.store.DeletePage(pctx, progress.PageID); err != nil {
					return fmt.Errorf("%w: deleting stale page %s: %v", errs.ErrStore, progress.PageID, err)
				}
			}
			return nil
		}

		if progress.Result != nil {
			if progress.PageID != "" {
				if err := w.store.DeletePage(pctx, progress.PageID); err != nil {
					return fmt.Errorf("%w: deleting superseded page %s: %v", errs.ErrStore, progress.PageID, err)
				}
			}
			if err := w.store.AddScrapeResult(pctx, job.Library, job.Version, progress.Depth, *progress.Result); err != nil {
				if cb.onJobError != nil {
					cb.onJobError(fmt.Sprintf("failed to add page %s: %v", progress.Result.URL, err))
				}
			}
		}
		return nil
	}

	err := s.Run(ctx, opts, onPage)

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
	default:
	}
	return err
}
