package badgerstore

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/common"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// versionRow is the badgerhold-persisted row backing one (library,
// version) identity. Grounded on the teacher's models.Job row shape
// (flat struct persisted directly via Upsert/Find), narrowed to the
// fields the Store contract (§6) actually needs.
type versionRow struct {
	ID               string `boltholdKey:"ID"`
	Library          string `boltholdIndex:"Library"`
	Version          string
	Status           string `boltholdIndex:"Status"`
	ErrorMessage     string
	ProgressPages    int
	ProgressMaxPages int
	SourceURL        string
	ScraperOptions   models.ScraperOptions
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// pageRow is one persisted page under a version.
type pageRow struct {
	ID        string `boltholdKey:"ID"`
	VersionID string `boltholdIndex:"VersionID"`
	URL       string
	Depth     int
	ETag      string
	Title     string
	Content   models.ScrapeResult
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store implements interfaces.Store on top of an embedded Badger
// database via badgerhold. Grounded on the teacher's
// internal/storage/badger package: one flat struct per record kind,
// Upsert for writes, badgerhold.Where(...) queries for lookups.
type Store struct {
	db     *DB
	logger arbor.ILogger
}

// New wraps db as an interfaces.Store.
func New(db *DB, logger arbor.ILogger) *Store {
	return &Store{db: db, logger: logger}
}

// EnsureLibraryAndVersion returns the versionID for (library, version),
// creating the row if it does not already exist.
func (s *Store) EnsureLibraryAndVersion(ctx context.Context, library, version string) (string, error) {
	var existing []versionRow
	err := s.db.store.Find(&existing, badgerhold.Where("Library").Eq(library).And("Version").Eq(version))
	if err != nil {
		return "", fmt.Errorf("finding version %s@%s: %w", library, version, err)
	}
	if len(existing) > 0 {
		return existing[0].ID, nil
	}

	row := versionRow{
		ID:        common.NewVersionID(),
		Library:   library,
		Version:   version,
		Status:    "queued",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.db.store.Upsert(row.ID, row); err != nil {
		return "", fmt.Errorf("inserting version %s@%s: %w", library, version, err)
	}
	return row.ID, nil
}

// UpdateVersionStatus mirrors a job's status/error transition.
func (s *Store) UpdateVersionStatus(ctx context.Context, versionID, status, errMsg string) error {
	var row versionRow
	if err := s.db.store.Get(versionID, &row); err != nil {
		return fmt.Errorf("loading version %s: %w", versionID, err)
	}
	row.Status = status
	row.ErrorMessage = errMsg
	row.UpdatedAt = time.Now().UTC()
	return s.db.store.Upsert(versionID, row)
}

// UpdateVersionProgress mirrors the latest progress counters.
func (s *Store) UpdateVersionProgress(ctx context.Context, versionID string, pages, maxPages int) error {
	var row versionRow
	if err := s.db.store.Get(versionID, &row); err != nil {
		return fmt.Errorf("loading version %s: %w", versionID, err)
	}
	row.ProgressPages = pages
	row.ProgressMaxPages = maxPages
	row.UpdatedAt = time.Now().UTC()
	return s.db.store.Upsert(versionID, row)
}

// GetVersionsByStatus returns every version row matching any of statuses.
func (s *Store) GetVersionsByStatus(ctx context.Context, statuses []string) ([]interfaces.VersionRecord, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	query := badgerhold.Where("Status").Eq(statuses[0])
	for _, st := range statuses[1:] {
		query = query.Or(badgerhold.Where("Status").Eq(st))
	}

	var rows []versionRow
	if err := s.db.store.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("finding versions by status: %w", err)
	}

	out := make([]interfaces.VersionRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, toVersionRecord(r))
	}
	return out, nil
}

// GetVersionByID loads one version row.
func (s *Store) GetVersionByID(ctx context.Context, versionID string) (interfaces.VersionRecord, error) {
	var row versionRow
	if err := s.db.store.Get(versionID, &row); err != nil {
		return interfaces.VersionRecord{}, fmt.Errorf("loading version %s: %w", versionID, err)
	}
	return toVersionRecord(row), nil
}

// GetPagesByVersionID lists every page persisted under versionID.
func (s *Store) GetPagesByVersionID(ctx context.Context, versionID string) ([]interfaces.PageRecord, error) {
	var rows []pageRow
	if err := s.db.store.Find(&rows, badgerhold.Where("VersionID").Eq(versionID)); err != nil {
		return nil, fmt.Errorf("finding pages for version %s: %w", versionID, err)
	}
	out := make([]interfaces.PageRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, interfaces.PageRecord{PageID: r.ID, URL: r.URL, Depth: r.Depth, ETag: r.ETag})
	}
	return out, nil
}

// SetScraperOptions persists the options a version's scrape/refresh was
// started with, so a future refresh can reuse them.
func (s *Store) SetScraperOptions(ctx context.Context, versionID string, options models.ScraperOptions) error {
	var row versionRow
	if err := s.db.store.Get(versionID, &row); err != nil {
		return fmt.Errorf("loading version %s: %w", versionID, err)
	}
	row.ScraperOptions = options
	row.SourceURL = options.URL
	row.UpdatedAt = time.Now().UTC()
	return s.db.store.Upsert(versionID, row)
}

// AddScrapeResult upserts a page row by (library, version, url): writes
// are idempotent, matching the Store contract's documented expectation.
func (s *Store) AddScrapeResult(ctx context.Context, library, version string, depth int, result models.ScrapeResult) error {
	versionID, err := s.EnsureLibraryAndVersion(ctx, library, version)
	if err != nil {
		return err
	}

	var existing []pageRow
	if err := s.db.store.Find(&existing, badgerhold.Where("VersionID").Eq(versionID).And("URL").Eq(result.URL)); err != nil {
		return fmt.Errorf("finding existing page for %s: %w", result.URL, err)
	}

	now := time.Now().UTC()
	if len(existing) > 0 {
		row := existing[0]
		row.Depth = depth
		row.ETag = result.ETag
		row.Title = result.Title
		row.Content = result
		row.UpdatedAt = now
		return s.db.store.Upsert(row.ID, row)
	}

	row := pageRow{
		ID:        common.NewPageID(),
		VersionID: versionID,
		URL:       result.URL,
		Depth:     depth,
		ETag:      result.ETag,
		Title:     result.Title,
		Content:   result,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.db.store.Upsert(row.ID, row)
}

// DeletePage removes one page row by id.
func (s *Store) DeletePage(ctx context.Context, pageID string) error {
	var row pageRow
	if err := s.db.store.Delete(pageID, &row); err != nil {
		return fmt.Errorf("deleting page %s: %w", pageID, err)
	}
	return nil
}

// RemoveAllDocuments deletes every page row for (library, version),
// implementing the full-reingest pre-scrape clear (§4.2).
func (s *Store) RemoveAllDocuments(ctx context.Context, library, version string) error {
	var versions []versionRow
	if err := s.db.store.Find(&versions, badgerhold.Where("Library").Eq(library).And("Version").Eq(version)); err != nil {
		return fmt.Errorf("finding version %s@%s: %w", library, version, err)
	}
	for _, v := range versions {
		var pages pageRow
		if err := s.db.store.DeleteMatching(&pages, badgerhold.Where("VersionID").Eq(v.ID)); err != nil {
			return fmt.Errorf("deleting pages for %s@%s: %w", library, version, err)
		}
	}
	return nil
}

func toVersionRecord(r versionRow) interfaces.VersionRecord {
	return interfaces.VersionRecord{
		VersionID:        r.ID,
		Library:          r.Library,
		Version:          r.Version,
		Status:           r.Status,
		ErrorMessage:     r.ErrorMessage,
		ProgressPages:    r.ProgressPages,
		ProgressMaxPages: r.ProgressMaxPages,
		SourceURL:        r.SourceURL,
		ScraperOptions:   r.ScraperOptions,
	}
}

var _ interfaces.Store = (*Store)(nil)
