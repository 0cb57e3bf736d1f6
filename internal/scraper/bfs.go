package scraper

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// ProgressCallback is invoked once per processed BFS item. The items of
// one batch are reported in dequeue order after the whole batch has
// finished, not in the order they complete.
type ProgressCallback func(ctx context.Context, progress models.ProgressSnapshot) error

// Scraper runs the BFS crawl described in §4.3 against one Strategy. One
// Scraper instance is used for exactly one job's scrape: it owns its own
// visited set and counters for that invocation only (§3 ownership rule).
type Scraper struct {
	strategy interfaces.Strategy
	logger   arbor.ILogger
}

// New builds a Scraper driving strategy.
func New(strategy interfaces.Strategy, logger arbor.ILogger) *Scraper {
	return &Scraper{strategy: strategy, logger: logger}
}

// Run executes the BFS algorithm of §4.3 to completion, cancellation, or
// maxPages, invoking onProgress once per processed item.
func (s *Scraper) Run(ctx context.Context, options models.ScraperOptions, onProgress ProgressCallback) error {
	maxPages := options.MaxPages
	if maxPages <= 0 {
		maxPages = 1 << 30 // "unlimited" per enqueueRefreshJob
	}
	maxConcurrency := options.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	canonicalBase, err := url.Parse(options.URL)
	if err != nil {
		return fmt.Errorf("%w: parsing root url %q: %v", errs.ErrValidation, options.URL, err)
	}
	var baseMu sync.Mutex

	patterns := NewPatternSet(options.IncludePatterns, options.ExcludePatterns, s.logger)

	q := newURLQueue()
	var totalDiscovered, effectiveTotal int

	for _, item := range options.InitialQueue {
		if q.push(item) {
			totalDiscovered++
			if effectiveTotal < maxPages {
				effectiveTotal++
			}
		}
	}
	if !q.contains(options.URL) {
		if q.seedRoot(models.QueueItem{URL: options.URL, Depth: 0}) {
			totalDiscovered++
			if effectiveTotal < maxPages {
				effectiveTotal++
			}
		}
	}

	pagesScraped := 0

	for q.len() > 0 && pagesScraped < maxPages {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
		default:
		}

		batchSize := maxConcurrency
		if remaining := maxPages - pagesScraped; remaining < batchSize {
			batchSize = remaining
		}
		if qlen := q.len(); qlen < batchSize {
			batchSize = qlen
		}
		batch := q.popBatch(batchSize)

		type outcome struct {
			item   models.QueueItem
			result interfaces.ProcessItemResult
			err    error
		}
		outcomes := make([]outcome, len(batch))

		var wg sync.WaitGroup
		for i, item := range batch {
			if item.Depth > options.MaxDepth {
				continue // dropped silently per §4.3
			}
			wg.Add(1)
			go func(i int, item models.QueueItem) {
				defer wg.Done()
				res, err := s.strategy.ProcessItem(ctx, item, options)
				outcomes[i] = outcome{item: item, result: res, err: err}
			}(i, item)
		}
		wg.Wait()

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
		default:
		}

		var discoveredThisBatch []models.QueueItem

		for _, o := range outcomes {
			if o.item.URL == "" && o.err == nil && o.result.URL == "" {
				continue // this slot held a depth-dropped item
			}

			if o.err != nil {
				if options.IgnoreErrors {
					s.logger.Warn().Str("url", o.item.URL).Err(o.err).Msg("scraper: ignoring page processing error")
					continue
				}
				return fmt.Errorf("%w: processing %s: %v", errs.ErrProcessing, o.item.URL, o.err)
			}

			counted := o.item.PageID != "" || o.result.Content != nil
			finalURL := o.result.URL
			if finalURL == "" {
				finalURL = o.item.URL
			}
			finalParsed, perr := url.Parse(finalURL)
			if perr == nil && o.item.Depth == 0 {
				baseMu.Lock()
				canonicalBase = finalParsed
				baseMu.Unlock()
			}

			switch o.result.Status {
			case models.StatusNotModified:
				if counted {
					pagesScraped++
				}
				snap := models.ProgressSnapshot{
					PagesScraped: pagesScraped, TotalPages: effectiveTotal, TotalDiscovered: totalDiscovered,
					CurrentURL: finalURL, Depth: o.item.Depth, MaxDepth: options.MaxDepth, PageID: o.item.PageID,
				}
				if err := onProgress(ctx, snap); err != nil {
					return err
				}
			case models.StatusNotFound:
				if counted {
					pagesScraped++
				}
				snap := models.ProgressSnapshot{
					PagesScraped: pagesScraped, TotalPages: effectiveTotal, TotalDiscovered: totalDiscovered,
					CurrentURL: finalURL, Depth: o.item.Depth, MaxDepth: options.MaxDepth, PageID: o.item.PageID,
					Deleted: true,
				}
				if err := onProgress(ctx, snap); err != nil {
					return err
				}
			case models.StatusSuccess:
				if counted {
					pagesScraped++
				}
				var scrapeResult *models.ScrapeResult
				if o.result.Content != nil {
					scrapeResult = &models.ScrapeResult{
						URL: finalURL, Title: o.result.Title, ContentType: o.result.ContentType,
						TextContent: o.result.Content.TextContent, ETag: o.result.ETag, LastModified: o.result.LastModified,
						Links: o.result.Content.Links, Errors: o.result.Content.Errors, Chunks: o.result.Content.Chunks,
					}
				}
				snap := models.ProgressSnapshot{
					PagesScraped: pagesScraped, TotalPages: effectiveTotal, TotalDiscovered: totalDiscovered,
					CurrentURL: finalURL, Depth: o.item.Depth, MaxDepth: options.MaxDepth, PageID: o.item.PageID,
					Result: scrapeResult,
				}
				if err := onProgress(ctx, snap); err != nil {
					return err
				}

				nextDepth := o.item.Depth + 1
				for _, link := range o.result.Links {
					baseMu.Lock()
					base := canonicalBase
					baseMu.Unlock()
					if shouldProcessURL(base, link, options.Scope, patterns) {
						discoveredThisBatch = append(discoveredThisBatch, models.QueueItem{URL: link, Depth: nextDepth})
					}
				}
			}
		}

		added := q.pushDedupBatch(discoveredThisBatch)
		totalDiscovered += len(added)
		for range added {
			if effectiveTotal < maxPages {
				effectiveTotal++
			}
		}
	}

	return nil
}
