package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

type fakeFetcher struct {
	content models.RawContent
	err     error
}

func (f *fakeFetcher) CanFetch(string) bool { return true }
func (f *fakeFetcher) Fetch(ctx context.Context, source string, opts interfaces.FetchOptions) (models.RawContent, error) {
	return f.content, f.err
}

type fakePipeline struct {
	result models.PipelineResult
}

func (p *fakePipeline) Name() string                              { return "fake" }
func (p *fakePipeline) CanProcess(string, []byte) bool             { return true }
func (p *fakePipeline) Close() error                               { return nil }
func (p *fakePipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	return p.result, nil
}

type fakeRegistry struct {
	pipeline interfaces.Pipeline
}

func (r *fakeRegistry) Select(mimeType string, sample []byte) interfaces.Pipeline { return r.pipeline }

func TestWeb_ProcessItem_RoutesThroughRegistryAndReturnsLinks(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{
		Content:  []byte("hello"),
		MimeType: "text/plain",
		Source:   "https://example.com/a",
		Status:   models.StatusSuccess,
	}}
	registry := &fakeRegistry{pipeline: &fakePipeline{result: models.PipelineResult{
		TextContent: "hello",
		Links:       []string{"https://example.com/b"},
	}}}

	w := NewWeb(fetcher, registry, nil, arbor.NewLogger())
	result, err := w.ProcessItem(context.Background(), models.QueueItem{URL: "https://example.com/a"}, models.DefaultScraperOptions())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	require.NotNil(t, result.Content)
	assert.Equal(t, []string{"https://example.com/b"}, result.Links)
}

func TestWeb_ProcessItem_AppliesShouldFollowLinkHook(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{
		Content: []byte("hello"), MimeType: "text/plain", Source: "https://example.com/a", Status: models.StatusSuccess,
	}}
	registry := &fakeRegistry{pipeline: &fakePipeline{result: models.PipelineResult{
		Links: []string{"https://example.com/keep", "https://example.com/drop"},
	}}}

	follow := func(link string) bool { return link == "https://example.com/keep" }
	w := NewWeb(fetcher, registry, follow, arbor.NewLogger())
	result, err := w.ProcessItem(context.Background(), models.QueueItem{URL: "https://example.com/a"}, models.DefaultScraperOptions())

	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/keep"}, result.Links)
}

func TestWeb_ProcessItem_NonSuccessStatusSkipsPipeline(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{Status: models.StatusNotModified, Source: "https://example.com/a"}}
	w := NewWeb(fetcher, &fakeRegistry{}, nil, arbor.NewLogger())

	result, err := w.ProcessItem(context.Background(), models.QueueItem{URL: "https://example.com/a"}, models.DefaultScraperOptions())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotModified, result.Status)
	assert.Nil(t, result.Content)
}

func TestNPM_CanHandle(t *testing.T) {
	w := NewWeb(&fakeFetcher{}, &fakeRegistry{}, nil, arbor.NewLogger())
	n := NewNPM(w)
	assert.True(t, n.CanHandle("https://www.npmjs.com/package/express"))
	assert.False(t, n.CanHandle("https://pypi.org/project/requests"))
}

func TestPyPI_CanHandle(t *testing.T) {
	w := NewWeb(&fakeFetcher{}, &fakeRegistry{}, nil, arbor.NewLogger())
	p := NewPyPI(w)
	assert.True(t, p.CanHandle("https://pypi.org/project/requests"))
	assert.False(t, p.CanHandle("https://www.npmjs.com/package/express"))
}
