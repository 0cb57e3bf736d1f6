package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/ingestor/internal/models"
)

func TestGreedy_MergesSameSectionUnderPreferred(t *testing.T) {
	cfg := Config{Preferred: 100, Max: 200}
	inner := fakeSplitter{chunks: []models.Chunk{
		{Types: []models.ChunkType{models.ChunkText}, Content: "one ", Section: models.Section{Path: []string{"A"}}},
		{Types: []models.ChunkType{models.ChunkText}, Content: "two ", Section: models.Section{Path: []string{"A"}}},
		{Types: []models.ChunkType{models.ChunkText}, Content: "three", Section: models.Section{Path: []string{"B"}}},
	}}
	g := NewGreedy(inner, cfg)

	out, err := g.Split("ignored")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "one two ", out[0].Content)
	assert.Equal(t, "three", out[1].Content)
}

func TestGreedy_NeverMergesAcrossSectionChange(t *testing.T) {
	cfg := DefaultConfig()
	inner := fakeSplitter{chunks: []models.Chunk{
		{Types: []models.ChunkType{models.ChunkText}, Content: "a", Section: models.Section{Path: []string{"A"}}},
		{Types: []models.ChunkType{models.ChunkText}, Content: "b", Section: models.Section{Path: []string{"A", "B"}}},
	}}
	g := NewGreedy(inner, cfg)

	out, err := g.Split("ignored")
	require.NoError(t, err)
	require.Len(t, out, 2)
}

func TestGreedy_NeverExceedsHardMax(t *testing.T) {
	cfg := Config{Preferred: 1000, Max: 10}
	inner := fakeSplitter{chunks: []models.Chunk{
		{Types: []models.ChunkType{models.ChunkText}, Content: "0123456", Section: models.Section{Path: []string{"A"}}},
		{Types: []models.ChunkType{models.ChunkText}, Content: "789", Section: models.Section{Path: []string{"A"}}},
		{Types: []models.ChunkType{models.ChunkText}, Content: "x", Section: models.Section{Path: []string{"A"}}},
	}}
	g := NewGreedy(inner, cfg)

	out, err := g.Split("ignored")
	require.NoError(t, err)
	for _, c := range out {
		assert.LessOrEqual(t, len(c.Content), cfg.Max)
	}
}

type fakeSplitter struct {
	chunks []models.Chunk
}

func (f fakeSplitter) Split(string) ([]models.Chunk, error) {
	return f.chunks, nil
}
