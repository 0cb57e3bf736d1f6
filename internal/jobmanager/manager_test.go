package jobmanager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

type fakeStore struct {
	mu       sync.Mutex
	versions map[string]*interfaces.VersionRecord
	pages    map[string][]interfaces.PageRecord
	seq      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		versions: make(map[string]*interfaces.VersionRecord),
		pages:    make(map[string][]interfaces.PageRecord),
	}
}

func (s *fakeStore) EnsureLibraryAndVersion(ctx context.Context, library, version string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := library + "@" + version
	for id, v := range s.versions {
		if v.Library == library && v.Version == version {
			return id, nil
		}
	}
	s.seq++
	id := key
	s.versions[id] = &interfaces.VersionRecord{VersionID: id, Library: library, Version: version, Status: "queued"}
	return id, nil
}

func (s *fakeStore) UpdateVersionStatus(ctx context.Context, versionID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[versionID]; ok {
		v.Status = status
		v.ErrorMessage = errMsg
	}
	return nil
}

func (s *fakeStore) UpdateVersionProgress(ctx context.Context, versionID string, pages, maxPages int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[versionID]; ok {
		v.ProgressPages = pages
		v.ProgressMaxPages = maxPages
	}
	return nil
}

func (s *fakeStore) GetVersionsByStatus(ctx context.Context, statuses []string) ([]interfaces.VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []interfaces.VersionRecord
	for _, v := range s.versions {
		for _, st := range statuses {
			if v.Status == st {
				out = append(out, *v)
			}
		}
	}
	return out, nil
}

func (s *fakeStore) GetVersionByID(ctx context.Context, versionID string) (interfaces.VersionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[versionID]; ok {
		return *v, nil
	}
	return interfaces.VersionRecord{}, assert.AnError
}

func (s *fakeStore) GetPagesByVersionID(ctx context.Context, versionID string) ([]interfaces.PageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages[versionID], nil
}

func (s *fakeStore) SetScraperOptions(ctx context.Context, versionID string, options models.ScraperOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.versions[versionID]; ok {
		v.ScraperOptions = options
	}
	return nil
}

func (s *fakeStore) AddScrapeResult(ctx context.Context, library, version string, depth int, result models.ScrapeResult) error {
	return nil
}

func (s *fakeStore) DeletePage(ctx context.Context, pageID string) error { return nil }

func (s *fakeStore) RemoveAllDocuments(ctx context.Context, library, version string) error { return nil }

type fakeStrategy struct {
	links map[string][]string
}

func (f *fakeStrategy) CanHandle(string) bool { return true }
func (f *fakeStrategy) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	return interfaces.ProcessItemResult{
		URL:    item.URL,
		Status: models.StatusSuccess,
		Content: &models.PipelineResult{
			TextContent: "content for " + item.URL,
		},
		Links: f.links[item.URL],
	}, nil
}
func (f *fakeStrategy) Cleanup() error { return nil }

func TestManager_EnqueueScrapeJob_RunsToCompletion(t *testing.T) {
	store := newFakeStore()
	resolver := func(sourceURL string) (interfaces.Strategy, error) {
		return &fakeStrategy{}, nil
	}
	m := New(store, nil, resolver, 2, arbor.NewLogger())

	id, err := m.EnqueueScrapeJob(context.Background(), "libA", "1.0", models.ScraperOptions{
		URL: "https://example.com/", MaxConcurrency: 1,
	})
	require.NoError(t, err)

	status, err := m.WaitForJobCompletion(timeoutCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, status)
}

func TestManager_EnqueueScrapeJob_CancelsPriorNonTerminalIdentity(t *testing.T) {
	store := newFakeStore()
	block := make(chan struct{})
	resolver := func(sourceURL string) (interfaces.Strategy, error) {
		return &blockingStrategy{block: block}, nil
	}
	m := New(store, nil, resolver, 2, arbor.NewLogger())

	firstID, err := m.EnqueueScrapeJob(context.Background(), "libA", "1.0", models.ScraperOptions{URL: "https://example.com/a"})
	require.NoError(t, err)

	// Give the dispatcher a moment to move firstID to RUNNING.
	require.Eventually(t, func() bool {
		j, _ := m.GetJob(firstID)
		return j.Status == models.JobRunning
	}, time.Second, 5*time.Millisecond)

	secondID, err := m.EnqueueScrapeJob(context.Background(), "libA", "1.0", models.ScraperOptions{URL: "https://example.com/b"})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)

	close(block)

	status, err := m.WaitForJobCompletion(timeoutCtx(t), firstID)
	require.NoError(t, err)
	assert.Equal(t, models.JobCancelled, status)
}

func TestManager_ClearCompletedJobs(t *testing.T) {
	store := newFakeStore()
	resolver := func(sourceURL string) (interfaces.Strategy, error) { return &fakeStrategy{}, nil }
	m := New(store, nil, resolver, 1, arbor.NewLogger())

	id, err := m.EnqueueScrapeJob(context.Background(), "libA", "1.0", models.ScraperOptions{URL: "https://example.com/"})
	require.NoError(t, err)
	_, err = m.WaitForJobCompletion(timeoutCtx(t), id)
	require.NoError(t, err)

	n := m.ClearCompletedJobs()
	assert.Equal(t, 1, n)
	_, err = m.GetJob(id)
	assert.Error(t, err)
}

// TestManager_Start_RecoversRunningVersionsToQueued is P8: a version
// persisted as RUNNING (simulating a crash mid-job) must be forced back to
// QUEUED on Start(), and Start() must hydrate a matching in-memory QUEUED
// job for it.
func TestManager_Start_RecoversRunningVersionsToQueued(t *testing.T) {
	store := newFakeStore()
	store.versions["libA@1.0"] = &interfaces.VersionRecord{
		VersionID: "libA@1.0", Library: "libA", Version: "1.0", Status: "running",
		SourceURL: "https://example.com/", ScraperOptions: models.ScraperOptions{URL: "https://example.com/"},
	}

	block := make(chan struct{})
	resolver := func(sourceURL string) (interfaces.Strategy, error) {
		return &blockingStrategy{block: block}, nil
	}
	m := New(store, nil, resolver, 1, arbor.NewLogger())

	require.NoError(t, m.Start(context.Background()))

	store.mu.Lock()
	status := store.versions["libA@1.0"].Status
	store.mu.Unlock()
	assert.Equal(t, "queued", status, "crash-recovered version should be reset to queued before being re-dispatched")

	jobs := m.GetJobs("")
	require.Len(t, jobs, 1)
	assert.Equal(t, "libA", jobs[0].Library)

	close(block)
}

// TestManager_EnqueueRefreshJob_SeedsInitialQueueFromPersistedPages is
// scenario 3's setup: a refresh of a COMPLETED version must seed
// initialQueue from every persisted page, set isRefresh, and lift the
// maxPages cap.
func TestManager_EnqueueRefreshJob_SeedsInitialQueueFromPersistedPages(t *testing.T) {
	store := newFakeStore()
	versionID, err := store.EnsureLibraryAndVersion(context.Background(), "libA", "1.0")
	require.NoError(t, err)
	require.NoError(t, store.UpdateVersionStatus(context.Background(), versionID, "completed", ""))
	require.NoError(t, store.SetScraperOptions(context.Background(), versionID, models.ScraperOptions{
		URL: "https://example.com/", MaxPages: 5,
	}))
	store.pages[versionID] = []interfaces.PageRecord{
		{PageID: "101", URL: "https://example.com/u1", Depth: 0, ETag: "e1"},
		{PageID: "102", URL: "https://example.com/u2", Depth: 1, ETag: "e2"},
	}

	var capturedOptions models.ScraperOptions
	resolver := func(sourceURL string) (interfaces.Strategy, error) {
		return &capturingStrategy{captured: &capturedOptions}, nil
	}
	m := New(store, nil, resolver, 1, arbor.NewLogger())

	id, err := m.EnqueueRefreshJob(context.Background(), "libA", "1.0")
	require.NoError(t, err)

	_, err = m.WaitForJobCompletion(timeoutCtx(t), id)
	require.NoError(t, err)

	assert.True(t, capturedOptions.IsRefresh)
	assert.Equal(t, 0, capturedOptions.MaxPages, "refresh lifts the maxPages cap")
	require.Len(t, capturedOptions.InitialQueue, 2)
	assert.Equal(t, "101", capturedOptions.InitialQueue[0].PageID)
	assert.Equal(t, "e1", capturedOptions.InitialQueue[0].ETag)
}

// TestManager_EnqueueRefreshJob_NoPagesFails is the "No pages found"
// failure path of §4.1 for a COMPLETED version with zero persisted pages.
func TestManager_EnqueueRefreshJob_NoPagesFails(t *testing.T) {
	store := newFakeStore()
	versionID, err := store.EnsureLibraryAndVersion(context.Background(), "libA", "1.0")
	require.NoError(t, err)
	require.NoError(t, store.UpdateVersionStatus(context.Background(), versionID, "completed", ""))

	resolver := func(sourceURL string) (interfaces.Strategy, error) { return &fakeStrategy{}, nil }
	m := New(store, nil, resolver, 1, arbor.NewLogger())

	_, err = m.EnqueueRefreshJob(context.Background(), "libA", "1.0")
	assert.Error(t, err)
}

// TestManager_EnqueueRefreshJob_NonCompletedFallsThroughToFullRescrape
// covers the §4.1 fallthrough: refreshing a non-COMPLETED version performs
// a fresh scrape (isRefresh left false) using its stored options instead.
func TestManager_EnqueueRefreshJob_NonCompletedFallsThroughToFullRescrape(t *testing.T) {
	store := newFakeStore()
	versionID, err := store.EnsureLibraryAndVersion(context.Background(), "libA", "1.0")
	require.NoError(t, err)
	require.NoError(t, store.UpdateVersionStatus(context.Background(), versionID, "failed", "boom"))
	require.NoError(t, store.SetScraperOptions(context.Background(), versionID, models.ScraperOptions{
		URL: "https://example.com/",
	}))

	var capturedOptions models.ScraperOptions
	resolver := func(sourceURL string) (interfaces.Strategy, error) {
		return &capturingStrategy{captured: &capturedOptions}, nil
	}
	m := New(store, nil, resolver, 1, arbor.NewLogger())

	id, err := m.EnqueueRefreshJob(context.Background(), "libA", "1.0")
	require.NoError(t, err)

	_, err = m.WaitForJobCompletion(timeoutCtx(t), id)
	require.NoError(t, err)
	assert.False(t, capturedOptions.IsRefresh)
}

type capturingStrategy struct {
	captured *models.ScraperOptions
}

func (c *capturingStrategy) CanHandle(string) bool { return true }
func (c *capturingStrategy) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	*c.captured = options
	return interfaces.ProcessItemResult{URL: item.URL, Status: models.StatusSuccess}, nil
}
func (c *capturingStrategy) Cleanup() error { return nil }

type blockingStrategy struct {
	block chan struct{}
}

func (b *blockingStrategy) CanHandle(string) bool { return true }
func (b *blockingStrategy) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	select {
	case <-b.block:
	case <-ctx.Done():
		return interfaces.ProcessItemResult{}, ctx.Err()
	}
	return interfaces.ProcessItemResult{URL: item.URL, Status: models.StatusSuccess}, nil
}
func (b *blockingStrategy) Cleanup() error { return nil }

func timeoutCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
