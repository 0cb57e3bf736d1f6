package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/splitter"
)

// JSONPipeline chunks structured JSON documents by walking their object/
// array structure; it never extracts links (§4.5: "never treats links").
type JSONPipeline struct {
	cfg    splitter.Config
	logger arbor.ILogger
}

// NewJSONPipeline builds a JSONPipeline bounded by cfg.
func NewJSONPipeline(cfg splitter.Config, logger arbor.ILogger) *JSONPipeline {
	return &JSONPipeline{cfg: cfg, logger: logger}
}

// Name implements interfaces.Pipeline.
func (p *JSONPipeline) Name() string { return "json" }

// CanProcess claims application/json or content that visibly starts a
// JSON document.
func (p *JSONPipeline) CanProcess(mimeType string, sample []byte) bool {
	if strings.Contains(mimeType, "json") {
		return true
	}
	trimmed := bytes.TrimSpace(sample)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

// Process parses content as JSON. An object or array whose indented
// encoding fits within cfg.Max becomes one [structural] chunk (so a small
// document is a single chunk with an empty path); a larger one is
// recursed into per key/element, with Section.Path holding the key and
// "[i]" index trail. Scalar leaves become [text] chunks split by size.
func (p *JSONPipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	var doc interface{}
	if err := json.Unmarshal(content.Content, &doc); err != nil {
		return models.PipelineResult{}, fmt.Errorf("json pipeline: parsing %s: %w", content.Source, err)
	}

	var chunks []models.Chunk
	walkJSON(doc, nil, p.cfg.Max, &chunks)

	return models.PipelineResult{
		ContentType: "application/json",
		TextContent: string(content.Content),
		Chunks:      chunks,
	}, nil
}

// Close implements interfaces.Pipeline; JSONPipeline holds no resources.
func (p *JSONPipeline) Close() error { return nil }

func walkJSON(node interface{}, path []string, maxSize int, out *[]models.Chunk) {
	switch v := node.(type) {
	case map[string]interface{}:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err == nil && len(encoded) <= maxSize {
			*out = append(*out, models.Chunk{
				Types:   []models.ChunkType{models.ChunkStructural},
				Content: string(encoded) + "\n",
				Section: models.Section{Level: len(path), Path: append([]string{}, path...)},
			})
			return
		}
		for k, child := range v {
			walkJSON(child, append(path, k), maxSize, out)
		}
	case []interface{}:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err == nil && len(encoded) <= maxSize {
			*out = append(*out, models.Chunk{
				Types:   []models.ChunkType{models.ChunkStructural},
				Content: string(encoded) + "\n",
				Section: models.Section{Level: len(path), Path: append([]string{}, path...)},
			})
			return
		}
		for i, child := range v {
			walkJSON(child, append(path, fmt.Sprintf("[%d]", i)), maxSize, out)
		}
	default:
		encoded, _ := json.Marshal(v)
		for _, piece := range splitter.SplitByChars(string(encoded), maxSize) {
			*out = append(*out, models.Chunk{
				Types:   []models.ChunkType{models.ChunkText},
				Content: piece,
				Section: models.Section{Level: len(path), Path: append([]string{}, path...)},
			})
		}
	}
}

var _ interfaces.Pipeline = (*JSONPipeline)(nil)
