package pipeline

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"github.com/ternarybob/ingestor/internal/splitter"
)

// sourceExtensions maps source file extensions to a human-readable
// language tag, appended to the result's ContentType as "lang=...".
var sourceExtensions = map[string]string{
	".go": "go", ".ts": "typescript", ".tsx": "typescript", ".js": "javascript", ".jsx": "javascript",
	".py": "python", ".rs": "rust", ".java": "java", ".c": "c", ".h": "c", ".cpp": "cpp", ".hpp": "cpp",
	".rb": "ruby", ".cs": "csharp", ".kt": "kotlin", ".swift": "swift",
}

// SourceCodePipeline chunks source files with the tree-sitter-equivalent
// boundary splitter; it never applies the greedy merger (§4.5: "no
// greedy size merging — would blur structural boundaries").
type SourceCodePipeline struct {
	splitter interfaces.Splitter
	logger   arbor.ILogger
}

// NewSourceCodePipeline builds a SourceCodePipeline bounded by cfg.
func NewSourceCodePipeline(cfg splitter.Config, logger arbor.ILogger) *SourceCodePipeline {
	return &SourceCodePipeline{
		splitter: splitter.NewSourceCode(cfg),
		logger:   logger,
	}
}

// Name implements interfaces.Pipeline.
func (p *SourceCodePipeline) Name() string { return "source-code" }

// CanProcess claims only mimeType="text/x-source-code" (set by fetchers
// from file extension); any other MIME type is left to the pipelines
// after it in routing order.
func (p *SourceCodePipeline) CanProcess(mimeType string, sample []byte) bool {
	return mimeType == "text/x-source-code"
}

// Process splits source content by its structural boundaries.
func (p *SourceCodePipeline) Process(ctx context.Context, content models.RawContent, options models.ScraperOptions, f interfaces.Fetcher) (models.PipelineResult, error) {
	text := string(content.Content)

	chunks, err := p.splitter.Split(text)
	if err != nil {
		return models.PipelineResult{}, fmt.Errorf("%w: splitting %s: %v", errs.ErrProcessing, content.Source, err)
	}

	lang := languageFromPath(content.Source)

	return models.PipelineResult{
		ContentType: "text/x-source-code; lang=" + lang,
		TextContent: text,
		Chunks:      chunks,
	}, nil
}

// Close implements interfaces.Pipeline; SourceCodePipeline holds no
// resources.
func (p *SourceCodePipeline) Close() error { return nil }

func languageFromPath(source string) string {
	ext := strings.ToLower(path.Ext(source))
	if lang, ok := sourceExtensions[ext]; ok {
		return lang
	}
	return "text"
}

var _ interfaces.Pipeline = (*SourceCodePipeline)(nil)
