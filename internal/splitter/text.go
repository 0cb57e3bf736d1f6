package splitter

import (
	"strings"

	"github.com/ternarybob/ingestor/internal/models"
)

// TextSplitter is the universal-fallback line-based splitter used by the
// Text content pipeline (§4.5, "Text pipeline ... Uses line-based
// splitter + greedy merger"). Each line becomes one [text] chunk at the
// document's flat section (no heading hierarchy in plain text); the
// Greedy splitter then merges consecutive lines up to the preferred size.
type TextSplitter struct {
	cfg Config
}

// NewTextSplitter builds a TextSplitter bounded by cfg.
func NewTextSplitter(cfg Config) *TextSplitter {
	return &TextSplitter{cfg: cfg.withDefaults()}
}

// Split implements interfaces.Splitter.
func (s *TextSplitter) Split(content string) ([]models.Chunk, error) {
	if content == "" {
		return nil, nil
	}

	lines := strings.SplitAfter(content, "\n")
	chunks := make([]models.Chunk, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		for _, piece := range SplitByChars(line, s.cfg.Max) {
			chunks = append(chunks, models.Chunk{
				Types:   []models.ChunkType{models.ChunkText},
				Content: piece,
				Section: models.Section{Level: 0, Path: nil},
			})
		}
	}
	return chunks, nil
}

// SplitByChars breaks s into pieces of at most maxLen runes, preferring to
// break at the last whitespace run before the limit so words aren't torn
// mid-token when avoidable. Used wherever an oversize piece (a fenced code
// block, a table, a source-code segment) must be broken further while
// preserving emission order (§4.5.1, §4.5.2).
func SplitByChars(s string, maxLen int) []string {
	if maxLen <= 0 || len([]rune(s)) <= maxLen {
		if s == "" {
			return nil
		}
		return []string{s}
	}

	runes := []rune(s)
	var pieces []string
	for len(runes) > 0 {
		end := maxLen
		if end > len(runes) {
			end = len(runes)
		}
		if end < len(runes) {
			breakAt := lastWhitespace(runes[:end])
			if breakAt > 0 {
				end = breakAt
			}
		}
		pieces = append(pieces, string(runes[:end]))
		runes = runes[end:]
	}
	return pieces
}

func lastWhitespace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return i + 1
		}
	}
	return 0
}
