package splitter

import (
	"strings"

	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// Greedy wraps another Splitter and merges consecutive chunks that share
// a section path, as long as the merged block stays at or under the
// preferred size (soft) and never exceeds the max size (hard); it never
// merges across a section-path change (§4.5.3). Used for HTML/Markdown/
// Text pipelines; not used for source code, where merging would blur
// structural boundaries.
type Greedy struct {
	inner interfaces.Splitter
	cfg   Config
}

// NewGreedy wraps inner with the greedy merge pass bounded by cfg.
func NewGreedy(inner interfaces.Splitter, cfg Config) *Greedy {
	return &Greedy{inner: inner, cfg: cfg.withDefaults()}
}

// Split runs the inner splitter then merges its output.
func (g *Greedy) Split(content string) ([]models.Chunk, error) {
	raw, err := g.inner.Split(content)
	if err != nil {
		return nil, err
	}
	return mergeGreedy(raw, g.cfg), nil
}

func mergeGreedy(chunks []models.Chunk, cfg Config) []models.Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	merged := make([]models.Chunk, 0, len(chunks))
	current := chunks[0]

	for _, next := range chunks[1:] {
		if samePath(current.Section.Path, next.Section.Path) &&
			!current.HasType(models.ChunkHeading) &&
			!next.HasType(models.ChunkHeading) &&
			len(current.Content)+len(next.Content) <= cfg.Max &&
			len(current.Content) < cfg.Preferred {
			current.Content += next.Content
			current.Types = mergeTypes(current.Types, next.Types)
			continue
		}
		merged = append(merged, current)
		current = next
	}
	merged = append(merged, current)
	return merged
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func mergeTypes(a, b []models.ChunkType) []models.ChunkType {
	seen := make(map[models.ChunkType]bool, len(a)+len(b))
	out := make([]models.ChunkType, 0, len(a)+len(b))
	for _, t := range append(append([]models.ChunkType{}, a...), b...) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// stripTrailingBlank collapses any run of trailing newlines in s to
// exactly one. No splitter in this package calls it.
func stripTrailingBlank(s string) string {
	return strings.TrimRight(s, "\n") + "\n"
}
