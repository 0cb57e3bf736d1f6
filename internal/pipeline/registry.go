package pipeline

import "github.com/ternarybob/ingestor/internal/interfaces"

// Registry holds every configured Pipeline in the spec's stable routing
// order (§4.5: "JSON → SourceCode → HTML → Markdown → Text") and selects
// the first one willing to handle a given MIME type/byte sample.
type Registry struct {
	pipelines []interfaces.Pipeline
}

// NewRegistry builds a Registry containing the five content pipelines in
// routing order.
func NewRegistry(json, sourceCode, html, markdown, text interfaces.Pipeline) *Registry {
	return &Registry{pipelines: []interfaces.Pipeline{json, sourceCode, html, markdown, text}}
}

// Select returns the first pipeline whose CanProcess(mimeType, sample) is
// true, or nil if none claim the content.
func (r *Registry) Select(mimeType string, sample []byte) interfaces.Pipeline {
	for _, p := range r.pipelines {
		if p != nil && p.CanProcess(mimeType, sample) {
			return p
		}
	}
	return nil
}

// Close calls Close on every pipeline. The built-in pipelines hold no
// resources; the optional headless renderer is held by the AutoFetcher and
// is not closed here.
func (r *Registry) Close() error {
	var firstErr error
	for _, p := range r.pipelines {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
