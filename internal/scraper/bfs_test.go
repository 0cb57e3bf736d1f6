package scraper

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// fakeStrategy serves a fixed link graph keyed by URL, recording the order
// and concurrency of ProcessItem calls it observed.
type fakeStrategy struct {
	mu       sync.Mutex
	graph    map[string][]string
	order    []string
	inFlight int
	maxSeen  int
}

func newFakeStrategy(graph map[string][]string) *fakeStrategy {
	return &fakeStrategy{graph: graph}
}

func (f *fakeStrategy) CanHandle(string) bool { return true }

func (f *fakeStrategy) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxSeen {
		f.maxSeen = f.inFlight
	}
	f.order = append(f.order, item.URL)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	return interfaces.ProcessItemResult{
		URL:    item.URL,
		Status: models.StatusSuccess,
		Content: &models.PipelineResult{
			TextContent: "body of " + item.URL,
		},
		Links: f.graph[item.URL],
	}, nil
}

func (f *fakeStrategy) Cleanup() error { return nil }

func TestScraper_Run_DiscoversInBreadthFirstOrder(t *testing.T) {
	graph := map[string][]string{
		"https://example.com/":     {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a":    {"https://example.com/a/1"},
		"https://example.com/b":    nil,
		"https://example.com/a/1":  nil,
	}
	strategy := newFakeStrategy(graph)
	s := New(strategy, arbor.NewLogger())

	var mu sync.Mutex
	var seenOrder []string
	onProgress := func(ctx context.Context, p models.ProgressSnapshot) error {
		mu.Lock()
		seenOrder = append(seenOrder, p.CurrentURL)
		mu.Unlock()
		return nil
	}

	opts := models.DefaultScraperOptions()
	opts.URL = "https://example.com/"
	opts.Library = "test"
	opts.MaxConcurrency = 1 // force strict BFS order for this assertion

	err := s.Run(context.Background(), opts, onProgress)
	require.NoError(t, err)

	require.Len(t, seenOrder, 4)
	assert.Equal(t, "https://example.com/", seenOrder[0])
	assert.ElementsMatch(t, []string{"https://example.com/a", "https://example.com/b"}, seenOrder[1:3])
	assert.Equal(t, "https://example.com/a/1", seenOrder[3])
}

func TestScraper_Run_RespectsMaxPages(t *testing.T) {
	graph := map[string][]string{
		"https://example.com/": {"https://example.com/a", "https://example.com/b", "https://example.com/c"},
	}
	strategy := newFakeStrategy(graph)
	s := New(strategy, arbor.NewLogger())

	var count int
	onProgress := func(ctx context.Context, p models.ProgressSnapshot) error {
		count++
		return nil
	}

	opts := models.DefaultScraperOptions()
	opts.URL = "https://example.com/"
	opts.Library = "test"
	opts.MaxPages = 2
	opts.MaxConcurrency = 1

	err := s.Run(context.Background(), opts, onProgress)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestScraper_Run_OutOfScopeLinksAreNotFollowed(t *testing.T) {
	graph := map[string][]string{
		"https://example.com/docs/":     {"https://example.com/docs/intro", "https://example.com/blog/post"},
		"https://example.com/docs/intro": nil,
	}
	strategy := newFakeStrategy(graph)
	s := New(strategy, arbor.NewLogger())

	var mu sync.Mutex
	var seen []string
	onProgress := func(ctx context.Context, p models.ProgressSnapshot) error {
		mu.Lock()
		seen = append(seen, p.CurrentURL)
		mu.Unlock()
		return nil
	}

	opts := models.DefaultScraperOptions()
	opts.URL = "https://example.com/docs/"
	opts.Library = "test"
	opts.Scope = models.ScopeSubpages
	opts.MaxConcurrency = 1

	err := s.Run(context.Background(), opts, onProgress)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"https://example.com/docs/", "https://example.com/docs/intro"}, seen)
}

func TestScraper_Run_PropagatesErrorUnlessIgnored(t *testing.T) {
	strategy := &erroringStrategy{}
	s := New(strategy, arbor.NewLogger())

	opts := models.DefaultScraperOptions()
	opts.URL = "https://example.com/"
	opts.Library = "test"
	opts.IgnoreErrors = false

	err := s.Run(context.Background(), opts, func(context.Context, models.ProgressSnapshot) error { return nil })
	assert.Error(t, err)

	opts.IgnoreErrors = true
	err = s.Run(context.Background(), opts, func(context.Context, models.ProgressSnapshot) error { return nil })
	assert.NoError(t, err)
}

type erroringStrategy struct{}

func (erroringStrategy) CanHandle(string) bool { return true }
func (erroringStrategy) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	return interfaces.ProcessItemResult{}, fmt.Errorf("boom")
}
func (erroringStrategy) Cleanup() error { return nil }
