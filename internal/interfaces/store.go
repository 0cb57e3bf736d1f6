package interfaces

import (
	"context"

	"github.com/ternarybob/ingestor/internal/models"
)

// PageRecord is a persisted page row as handed back by GetPagesByVersionID.
type PageRecord struct {
	PageID string
	URL    string
	Depth  int
	ETag   string
}

// VersionRecord is the minimal persisted per-version row the Manager
// relies upon.
type VersionRecord struct {
	VersionID        string
	Library          string
	Version          string
	Status           string // queued|running|completed|failed|cancelled
	ErrorMessage     string
	ProgressPages    int
	ProgressMaxPages int
	SourceURL        string
	ScraperOptions   models.ScraperOptions
}

// Store is the abstract persistence collaborator. This spec treats it as a
// contract only: callers (the Manager/Worker) never reach into a concrete
// database type, and implementations are expected to provide their own
// locking/transactionality and to treat page writes as idempotent by
// (library, version, url).
type Store interface {
	EnsureLibraryAndVersion(ctx context.Context, library, version string) (versionID string, err error)
	UpdateVersionStatus(ctx context.Context, versionID, status string, errMsg string) error
	UpdateVersionProgress(ctx context.Context, versionID string, pages, maxPages int) error
	GetVersionsByStatus(ctx context.Context, statuses []string) ([]VersionRecord, error)
	GetVersionByID(ctx context.Context, versionID string) (VersionRecord, error)
	GetPagesByVersionID(ctx context.Context, versionID string) ([]PageRecord, error)
	SetScraperOptions(ctx context.Context, versionID string, options models.ScraperOptions) error
	AddScrapeResult(ctx context.Context, library, version string, depth int, result models.ScrapeResult) error
	DeletePage(ctx context.Context, pageID string) error
	RemoveAllDocuments(ctx context.Context, library, version string) error
}
