package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/models"
)

func TestGitHub_ProcessItem_WikiDelegatesToFetcherAndFiltersLinks(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{
		Content:  []byte("<html>wiki home</html>"),
		MimeType: "text/html",
		Source:   "https://github.com/owner/repo/wiki",
		Status:   models.StatusSuccess,
	}}
	registry := &fakeRegistry{pipeline: &fakePipeline{result: models.PipelineResult{
		Title: "Home",
		Links: []string{
			"https://github.com/owner/repo/wiki/Getting-Started",
			"https://github.com/owner/repo/blob/main/README.md", // not a wiki page, must be dropped
			"https://github.com/other/repo/wiki/Home",           // different repo's wiki, must be dropped
		},
	}}}

	g := NewGitHub(context.Background(), "", fetcher, registry, nil, arbor.NewLogger())
	result, err := g.ProcessItem(context.Background(), models.QueueItem{URL: "https://github.com/owner/repo/wiki"}, models.DefaultScraperOptions())

	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, result.Status)
	require.NotNil(t, result.Content)
	assert.Equal(t, "Home", result.Title)
	assert.Equal(t, []string{"https://github.com/owner/repo/wiki/Getting-Started"}, result.Links)
}

func TestGitHub_ProcessItem_WikiAppliesIncludeHook(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{
		Content: []byte("<html/>"), MimeType: "text/html",
		Source: "https://github.com/owner/repo/wiki/Home", Status: models.StatusSuccess,
	}}
	registry := &fakeRegistry{pipeline: &fakePipeline{result: models.PipelineResult{
		Links: []string{
			"https://github.com/owner/repo/wiki/Keep",
			"https://github.com/owner/repo/wiki/Drop",
		},
	}}}
	include := func(link string) bool { return link == "https://github.com/owner/repo/wiki/Keep" }

	g := NewGitHub(context.Background(), "", fetcher, registry, include, arbor.NewLogger())
	result, err := g.ProcessItem(context.Background(), models.QueueItem{URL: "https://github.com/owner/repo/wiki/Home"}, models.DefaultScraperOptions())

	require.NoError(t, err)
	assert.Equal(t, []string{"https://github.com/owner/repo/wiki/Keep"}, result.Links)
}

func TestGitHub_ProcessItem_WikiNonSuccessStatusSkipsPipeline(t *testing.T) {
	fetcher := &fakeFetcher{content: models.RawContent{Status: models.StatusNotModified, Source: "https://github.com/owner/repo/wiki"}}
	g := NewGitHub(context.Background(), "", fetcher, &fakeRegistry{}, nil, arbor.NewLogger())

	result, err := g.ProcessItem(context.Background(), models.QueueItem{URL: "https://github.com/owner/repo/wiki"}, models.DefaultScraperOptions())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotModified, result.Status)
	assert.Nil(t, result.Content)
}

func TestGitHub_ProcessItem_LegacyFileURLReturnsNotFound(t *testing.T) {
	g := NewGitHub(context.Background(), "", &fakeFetcher{}, &fakeRegistry{}, nil, arbor.NewLogger())

	result, err := g.ProcessItem(context.Background(), models.QueueItem{URL: "github-file://owner/repo/old-path"}, models.DefaultScraperOptions())
	require.NoError(t, err)
	assert.Equal(t, models.StatusNotFound, result.Status)
}
