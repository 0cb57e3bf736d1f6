// Package jobmanager implements the Pipeline Manager and Pipeline Worker
// of §4.1/§4.2: job lifecycle, identity-exclusivity cancellation, FIFO
// scheduling bounded by a concurrency limit, and Store/Bus mirroring.
package jobmanager

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/scraper"
)

// StrategyResolver builds the Strategy appropriate for a scrape's source
// URL (Web/Local/GitHub/npm/PyPI); the Manager is strategy-agnostic.
type StrategyResolver func(sourceURL string) (interfaces.Strategy, error)

// Callbacks mirrors setCallbacks (§4.1): an optional sink in addition to
// the Bus, e.g. for CLI progress bars.
type Callbacks struct {
	OnJobStatusChange func(job *models.Job)
	OnJobProgress     func(job *models.Job, progress *models.ProgressSnapshot)
	OnJobError        func(job *models.Job, message string)
}

type jobEntry struct {
	job       *models.Job
	versionID string
	cancel    context.CancelFunc
}

// Manager is the Pipeline Manager: it exclusively owns the in-memory job
// map and every status transition.
type Manager struct {
	mu          sync.Mutex
	jobs        map[string]*jobEntry
	queue       []string // FIFO of QUEUED job ids
	running     int
	concurrency int

	store     interfaces.Store
	bus       interfaces.EventBus
	resolver  StrategyResolver
	callbacks Callbacks
	logger    arbor.ILogger

	stopped bool
	wg      sync.WaitGroup
}

// New builds a Manager. concurrency bounds how many jobs run at once.
func New(store interfaces.Store, bus interfaces.EventBus, resolver StrategyResolver, concurrency int, logger arbor.ILogger) *Manager {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Manager{
		jobs:        make(map[string]*jobEntry),
		concurrency: concurrency,
		store:       store,
		bus:         bus,
		resolver:    resolver,
		logger:      logger,
	}
}

// SetCallbacks installs an optional additional callback sink.
func (m *Manager) SetCallbacks(cb Callbacks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = cb
}

// EnqueueScrapeJob validates options, cancels any non-terminal job sharing
// the same (library, version) identity, persists the identity, and
// enqueues a new job.
func (m *Manager) EnqueueScrapeJob(ctx context.Context, library, version string, options models.ScraperOptions) (string, error) {
	if library == "" {
		return "", fmt.Errorf("%w: library is required", errs.ErrValidation)
	}
	if options.URL == "" {
		return "", fmt.Errorf("%w: url is required", errs.ErrValidation)
	}
	if _, err := url.Parse(options.URL); err != nil {
		return "", fmt.Errorf("%w: invalid url %q: %v", errs.ErrValidation, options.URL, err)
	}

	versionID, err := m.store.EnsureLibraryAndVersion(ctx, library, version)
	if err != nil {
		m.logger.Warn().Err(err).Msg("manager: failed to persist library/version identity")
	}
	if err := m.store.SetScraperOptions(ctx, versionID, options); err != nil {
		m.logger.Warn().Err(err).Msg("manager: failed to persist scraper options")
	}

	identity := library + "@" + version

	m.mu.Lock()
	for _, e := range m.jobs {
		if e.job.Identity() == identity && !e.job.Status.Terminal() {
			m.cancelLocked(e)
		}
	}
	m.mu.Unlock()

	job := &models.Job{
		ID:             uuid.NewString(),
		Library:        library,
		Version:        version,
		Status:         models.JobQueued,
		CreatedAt:      now(),
		SourceURL:      options.URL,
		ScraperOptions: &options,
	}

	m.enqueueJob(job, versionID)
	return job.ID, nil
}

// EnqueueRefreshJob looks up the persisted version. A non-COMPLETED
// version falls through to a full re-scrape with its stored options.
// Otherwise it seeds initialQueue from every persisted page and sets
// isRefresh=true with maxPages unlimited (§4.1).
func (m *Manager) EnqueueRefreshJob(ctx context.Context, library, version string) (string, error) {
	versionID, err := m.store.EnsureLibraryAndVersion(ctx, library, version)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %s@%s: %v", errs.ErrStore, library, version, err)
	}
	vr, err := m.store.GetVersionByID(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("%w: loading %s@%s: %v", errs.ErrStore, library, version, err)
	}

	if vr.Status != "completed" {
		return m.EnqueueScrapeJob(ctx, library, version, vr.ScraperOptions)
	}

	pages, err := m.store.GetPagesByVersionID(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("%w: loading pages for %s@%s: %v", errs.ErrStore, library, version, err)
	}
	if len(pages) == 0 {
		return "", fmt.Errorf("%w: no pages found for %s@%s", errs.ErrValidation, library, version)
	}

	options := vr.ScraperOptions
	options.IsRefresh = true
	options.MaxPages = 0 // unlimited
	options.InitialQueue = make([]models.QueueItem, 0, len(pages))
	for _, p := range pages {
		options.InitialQueue = append(options.InitialQueue, models.QueueItem{
			URL: p.URL, Depth: p.Depth, PageID: p.PageID, ETag: p.ETag,
		})
	}

	return m.EnqueueScrapeJob(ctx, library, version, options)
}

func (m *Manager) enqueueJob(job *models.Job, versionID string) {
	m.mu.Lock()
	m.jobs[job.ID] = &jobEntry{job: job, versionID: versionID}
	m.queue = append(m.queue, job.ID)
	m.mu.Unlock()

	m.emitStatusChange(job)
	m.emitJobListChange()
	m.dispatch()
}

// GetJob returns a copy of the job with the given id, or ErrNotFound.
func (m *Manager) GetJob(id string) (models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	return *e.job, nil
}

// GetJobs returns every job, optionally filtered by status, ordered by
// CreatedAt.
func (m *Manager) GetJobs(status models.JobStatus) []models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Job, 0, len(m.jobs))
	for _, e := range m.jobs {
		if status != "" && e.job.Status != status {
			continue
		}
		out = append(out, *e.job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CancelJob transitions job id to CANCELLING (if RUNNING) or CANCELLED
// (if QUEUED); a no-op on a terminal job returns the current status.
func (m *Manager) CancelJob(id string) (models.JobStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.jobs[id]
	if !ok {
		return "", fmt.Errorf("%w: job %s", errs.ErrNotFound, id)
	}
	if e.job.Status.Terminal() {
		return e.job.Status, nil
	}
	m.cancelLocked(e)
	return e.job.Status, nil
}

// cancelLocked must be called with m.mu held. A QUEUED job is removed
// from the queue and goes straight to CANCELLED (never started); a
// RUNNING job flips to CANCELLING and signals its token, reaching
// CANCELLED only once the worker observes the signal and unwinds.
func (m *Manager) cancelLocked(e *jobEntry) {
	switch e.job.Status {
	case models.JobQueued:
		m.removeFromQueueLocked(e.job.ID)
		m.transitionLocked(e, models.JobCancelled, nil)
	case models.JobRunning:
		m.transitionLocked(e, models.JobCancelling, nil)
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func (m *Manager) removeFromQueueLocked(id string) {
	for i, qid := range m.queue {
		if qid == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// ClearCompletedJobs drops every terminal job from the in-memory map,
// returning the count removed.
func (m *Manager) ClearCompletedJobs() int {
	m.mu.Lock()
	n := 0
	for id, e := range m.jobs {
		if e.job.Status.Terminal() {
			delete(m.jobs, id)
			n++
		}
	}
	m.mu.Unlock()

	if n > 0 {
		m.emitJobListChange()
	}
	return n
}

// WaitForJobCompletion blocks until job id reaches a terminal status or
// ctx is cancelled.
func (m *Manager) WaitForJobCompletion(ctx context.Context, id string) (models.JobStatus, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := m.GetJob(id)
		if err != nil {
			return "", err
		}
		if job.Status.Terminal() {
			return job.Status, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Start performs crash recovery (§4.1: versions left RUNNING are forced
// back to QUEUED) and hydrates in-memory jobs from persisted QUEUED
// versions in the order the Store returns them, then begins dispatching.
// Each hydrated job's CreatedAt is the time of Start: VersionRecord
// carries no creation time, so the original createdAt order is not
// restored.
func (m *Manager) Start(ctx context.Context) error {
	running, err := m.store.GetVersionsByStatus(ctx, []string{"running"})
	if err != nil {
		return fmt.Errorf("%w: listing running versions: %v", errs.ErrStore, err)
	}
	for _, vr := range running {
		if err := m.store.UpdateVersionStatus(ctx, vr.VersionID, "queued", ""); err != nil {
			m.logger.Warn().Err(err).Str("versionId", vr.VersionID).Msg("manager: crash recovery status reset failed")
		}
	}

	queued, err := m.store.GetVersionsByStatus(ctx, []string{"queued"})
	if err != nil {
		return fmt.Errorf("%w: listing queued versions: %v", errs.ErrStore, err)
	}
	for _, vr := range queued {
		opts := vr.ScraperOptions
		job := &models.Job{
			ID:             uuid.NewString(),
			Library:        vr.Library,
			Version:        vr.Version,
			Status:         models.JobQueued,
			CreatedAt:      now(),
			SourceURL:      vr.SourceURL,
			ScraperOptions: &opts,
		}
		m.enqueueJob(job, vr.VersionID)
	}

	m.mu.Lock()
	m.stopped = false
	m.mu.Unlock()
	return nil
}

// Stop prevents further dispatch and waits for in-flight jobs to finish
// unwinding (they are not force-cancelled).
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.wg.Wait()
}

// dispatch spawns a worker goroutine per queued job while running <
// concurrency. Non-blocking: it returns immediately after spawning.
func (m *Manager) dispatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for !m.stopped && m.running < m.concurrency && len(m.queue) > 0 {
		id := m.queue[0]
		m.queue = m.queue[1:]
		e, ok := m.jobs[id]
		if !ok {
			continue
		}
		m.running++
		m.wg.Add(1)
		go m.run(e)
	}
}

func (m *Manager) run(e *jobEntry) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
		m.dispatch()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	e.cancel = cancel
	startedAt := now()
	e.job.StartedAt = &startedAt
	m.transitionLocked(e, models.JobRunning, nil)
	m.mu.Unlock()
	defer cancel()

	strategy, err := m.resolver(e.job.SourceURL)
	if err != nil {
		m.finish(e, models.JobFailed, err)
		return
	}
	defer strategy.Cleanup()

	s := scraper.New(strategy, m.logger)
	w := newWorker(m.store, m.logger)

	cb := workerCallbacks{
		onProgress: func(p models.ProgressSnapshot) {
			m.mu.Lock()
			snap := p
			e.job.Progress = &snap
			m.mu.Unlock()
			if err := m.store.UpdateVersionProgress(ctx, e.versionID, p.PagesScraped, p.TotalPages); err != nil {
				m.logger.Debug().Err(err).Msg("manager: progress mirror failed")
			}
			m.emitProgress(e.job, &snap)
		},
		onJobError: func(msg string) {
			if m.callbacks.OnJobError != nil {
				m.callbacks.OnJobError(e.job, msg)
			}
		},
	}

	err = w.executeJob(ctx, e.job, s, cb)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case e.job.Status == models.JobCancelling:
		m.transitionLocked(e, models.JobCancelled, nil)
	case err != nil && errors.Is(err, errs.ErrCancelled):
		m.transitionLocked(e, models.JobCancelled, nil)
	case err != nil:
		m.transitionLocked(e, models.JobFailed, err)
	default:
		m.transitionLocked(e, models.JobCompleted, nil)
	}
}

func (m *Manager) finish(e *jobEntry, status models.JobStatus, err error) {
	m.mu.Lock()
	m.transitionLocked(e, status, err)
	m.mu.Unlock()
}

// transitionLocked must be called with m.mu held; it updates the job,
// mirrors to the Store (best-effort), and emits JOB_STATUS_CHANGE (and
// LIBRARY_CHANGE after a successful terminal transition).
func (m *Manager) transitionLocked(e *jobEntry, status models.JobStatus, err error) {
	e.job.Status = status
	if err != nil {
		e.job.Error = &models.JobError{Message: err.Error()}
	}
	if status.Terminal() {
		finishedAt := now()
		e.job.FinishedAt = &finishedAt
	}

	storeStatus := storeStatusFor(status)
	errMsg := ""
	if e.job.Error != nil {
		errMsg = e.job.Error.Message
	}
	if err := m.store.UpdateVersionStatus(context.Background(), e.versionID, storeStatus, errMsg); err != nil {
		m.logger.Debug().Err(err).Msg("manager: status mirror failed")
	}

	job := *e.job
	go m.emitStatusChange(&job)
	if status == models.JobCompleted {
		go m.emitLibraryChange()
	}
}

func storeStatusFor(status models.JobStatus) string {
	switch status {
	case models.JobQueued:
		return "queued"
	case models.JobRunning:
		return "running"
	case models.JobCompleted:
		return "completed"
	case models.JobFailed:
		return "failed"
	case models.JobCancelling, models.JobCancelled:
		return "cancelled"
	default:
		return string(status)
	}
}

func (m *Manager) emitStatusChange(job *models.Job) {
	if m.callbacks.OnJobStatusChange != nil {
		m.callbacks.OnJobStatusChange(job)
	}
	if m.bus == nil {
		return
	}
	if err := m.bus.Emit(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobStatusChange,
		Payload: interfaces.JobStatusPayload{Job: job},
	}); err != nil {
		m.logger.Debug().Err(err).Msg("manager: emitting job status change failed")
	}
}

func (m *Manager) emitProgress(job *models.Job, progress *models.ProgressSnapshot) {
	if m.callbacks.OnJobProgress != nil {
		m.callbacks.OnJobProgress(job, progress)
	}
	if m.bus == nil {
		return
	}
	if err := m.bus.Emit(context.Background(), interfaces.Event{
		Type:    interfaces.EventJobProgress,
		Payload: interfaces.JobProgressPayload{Job: job, Progress: progress},
	}); err != nil {
		m.logger.Debug().Err(err).Msg("manager: emitting job progress failed")
	}
}

func (m *Manager) emitJobListChange() {
	if m.bus == nil {
		return
	}
	if err := m.bus.Emit(context.Background(), interfaces.Event{Type: interfaces.EventJobListChange}); err != nil {
		m.logger.Debug().Err(err).Msg("manager: emitting job list change failed")
	}
}

func (m *Manager) emitLibraryChange() {
	if m.bus == nil {
		return
	}
	if err := m.bus.Emit(context.Background(), interfaces.Event{Type: interfaces.EventLibraryChange}); err != nil {
		m.logger.Debug().Err(err).Msg("manager: emitting library change failed")
	}
}

func now() time.Time {
	return time.Now().UTC()
}
