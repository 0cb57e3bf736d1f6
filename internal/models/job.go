// Package models holds the data entities shared across the ingestion
// engine: jobs, scrape options, queue items, progress snapshots, and the
// content-pipeline output types.
package models

import "time"

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobRunning    JobStatus = "RUNNING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelling JobStatus = "CANCELLING"
	JobCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether the status is one a Job can never leave.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// JobError carries the single user-visible message for a FAILED job.
type JobError struct {
	Message string `json:"message"`
}

// Job is one ingestion run for a (library, version) identity.
type Job struct {
	ID             string          `json:"id"`
	Library        string          `json:"library"`
	Version        string          `json:"version"` // "" means unversioned; never nil internally
	Status         JobStatus       `json:"status"`
	CreatedAt      time.Time       `json:"createdAt"`
	StartedAt      *time.Time      `json:"startedAt,omitempty"`
	FinishedAt     *time.Time      `json:"finishedAt,omitempty"`
	SourceURL      string          `json:"sourceUrl"`
	ScraperOptions *ScraperOptions `json:"scraperOptions"`
	Progress       *ProgressSnapshot `json:"progress,omitempty"`
	Error          *JobError       `json:"error,omitempty"`
}

// Identity returns the normalized (library, version) identity key used for
// exclusivity: a nil/empty version always maps to the same identity as "".
func (j *Job) Identity() string {
	return j.Library + "@" + j.Version
}

// Scope controls which discovered links a BFS crawl will follow.
type Scope string

const (
	ScopeSubpages Scope = "subpages"
	ScopeHostname Scope = "hostname"
	ScopeDomain   Scope = "domain"
)

// ScrapeMode selects how a page's bytes are retrieved.
type ScrapeMode string

const (
	ScrapeModeFetch      ScrapeMode = "fetch"
	ScrapeModePlaywright ScrapeMode = "playwright"
	ScrapeModeAuto       ScrapeMode = "auto"
)

// ScraperOptions configures one BFS scrape.
type ScraperOptions struct {
	URL              string            `json:"url" validate:"required,url"`
	Library          string            `json:"library" validate:"required"`
	Version          string            `json:"version"`
	MaxPages         int               `json:"maxPages" validate:"gte=0"`
	MaxDepth         int               `json:"maxDepth" validate:"gte=0"`
	MaxConcurrency   int               `json:"maxConcurrency" validate:"gte=1"`
	Scope            Scope             `json:"scope" validate:"omitempty,oneof=subpages hostname domain"`
	FollowRedirects  bool              `json:"followRedirects"`
	IncludePatterns  []string          `json:"includePatterns,omitempty"`
	ExcludePatterns  []string          `json:"excludePatterns,omitempty"`
	ScrapeMode       ScrapeMode        `json:"scrapeMode" validate:"omitempty,oneof=fetch playwright auto"`
	IgnoreErrors     bool              `json:"ignoreErrors"`
	Headers          map[string]string `json:"headers,omitempty"`
	InitialQueue     []QueueItem       `json:"initialQueue,omitempty"`
	IsRefresh        bool              `json:"isRefresh"`
}

// DefaultScraperOptions returns the spec's documented defaults, with URL,
// Library and Version left for the caller to fill in.
func DefaultScraperOptions() ScraperOptions {
	return ScraperOptions{
		MaxPages:        1000,
		MaxDepth:        3,
		MaxConcurrency:  3,
		Scope:           ScopeSubpages,
		FollowRedirects: true,
		ScrapeMode:      ScrapeModeFetch,
		IgnoreErrors:    true,
	}
}

// QueueItem is one BFS frontier entry. PageID/ETag are populated only for
// refresh items carried through from persisted pages.
type QueueItem struct {
	URL    string `json:"url"`
	Depth  int    `json:"depth"`
	PageID string `json:"pageId,omitempty"`
	ETag   string `json:"etag,omitempty"`
}

// ProgressSnapshot is emitted once per processed BFS item.
type ProgressSnapshot struct {
	PagesScraped    int          `json:"pagesScraped"`
	TotalPages      int          `json:"totalPages"`
	TotalDiscovered int          `json:"totalDiscovered"`
	CurrentURL      string       `json:"currentUrl"`
	Depth           int          `json:"depth"`
	MaxDepth        int          `json:"maxDepth"`
	PageID          string       `json:"pageId,omitempty"`
	Deleted         bool         `json:"deleted,omitempty"`
	Result          *ScrapeResult `json:"result,omitempty"`
}
