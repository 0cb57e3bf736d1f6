package splitter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"

	"github.com/ternarybob/ingestor/internal/models"
)

// SemanticMarkdown splits markdown into ordered chunks tagged
// {heading,text,code,table} with a hierarchical section.path built from
// H1..H6 (§4.5.1). Grounded on yuin/goldmark's documented AST shape (no
// teacher analog exists: the teacher's own markdown handling is
// HTML→Markdown only, never AST-walking).
type SemanticMarkdown struct {
	cfg Config
}

// NewSemanticMarkdown builds a SemanticMarkdown splitter bounded by cfg.
func NewSemanticMarkdown(cfg Config) *SemanticMarkdown {
	return &SemanticMarkdown{cfg: cfg.withDefaults()}
}

var tableSeparatorRe = regexp.MustCompile(`^\s*\|?\s*:?-+:?\s*(\|\s*:?-+:?\s*)*\|?\s*$`)

type headingFrame struct {
	level int
	title string
}

// Split implements interfaces.Splitter.
func (s *SemanticMarkdown) Split(content string) ([]models.Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	source := []byte(content)
	doc := goldmark.DefaultParser().Parse(gmtext.NewReader(source))

	var chunks []models.Chunk
	var stack []headingFrame

	currentPath := func() []string {
		path := make([]string, len(stack))
		for i, f := range stack {
			path[i] = f.title
		}
		return path
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(string(node.Lines().Value(source)))
			title = strings.TrimLeft(title, "#")
			title = strings.TrimSpace(title)
			if title == "" {
				title = strings.TrimSpace(string(nodeText(node, source)))
			}

			for len(stack) > 0 && stack[len(stack)-1].level >= node.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, headingFrame{level: node.Level, title: title})

			chunks = append(chunks, models.Chunk{
				Types:   []models.ChunkType{models.ChunkHeading},
				Content: fmt.Sprintf("%s %s\n", strings.Repeat("#", node.Level), title),
				Section: models.Section{Level: node.Level, Path: currentPath()},
			})

		case *ast.FencedCodeBlock:
			lang := string(node.Language(source))
			code := string(node.Lines().Value(source))
			chunks = append(chunks, s.codeChunks(code, lang, currentPath())...)

		default:
			raw := strings.TrimRight(blockRawText(n, source), "\n")
			if raw == "" {
				continue
			}
			if looksLikeTable(raw) {
				chunks = append(chunks, s.tableChunks(raw, currentPath())...)
			} else {
				chunks = append(chunks, s.textChunks(raw, currentPath())...)
			}
		}
	}

	return chunks, nil
}

// codeChunks emits one [code] chunk per fenced block, splitting oversize
// blocks further while re-prepending the language fence to each piece.
func (s *SemanticMarkdown) codeChunks(code, lang string, path []string) []models.Chunk {
	full := fmt.Sprintf("```%s\n%s```\n", lang, ensureTrailingNewline(code))
	if len(full) <= s.cfg.Max {
		return []models.Chunk{{
			Types:   []models.ChunkType{models.ChunkCode},
			Content: full,
			Section: models.Section{Path: path},
		}}
	}

	pieces := SplitByChars(code, s.cfg.Max-len(lang)-9)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, models.Chunk{
			Types:   []models.ChunkType{models.ChunkCode},
			Content: fmt.Sprintf("```%s\n%s```\n", lang, ensureTrailingNewline(p)),
			Section: models.Section{Path: path},
		})
	}
	return chunks
}

// tableChunks emits one [table] chunk, splitting oversize tables further
// while re-prepending the header+separator row to each piece (§4.5.1).
func (s *SemanticMarkdown) tableChunks(raw string, path []string) []models.Chunk {
	if len(raw) < s.cfg.Max {
		return []models.Chunk{{
			Types:   []models.ChunkType{models.ChunkTable},
			Content: ensureTrailingNewline(raw),
			Section: models.Section{Path: path},
		}}
	}

	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return s.textChunks(raw, path)
	}
	header := lines[0] + "\n" + lines[1] + "\n"
	body := strings.Join(lines[2:], "\n")

	pieces := SplitByChars(body, s.cfg.Max-len(header)-1)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, models.Chunk{
			Types:   []models.ChunkType{models.ChunkTable},
			Content: header + ensureTrailingNewline(p),
			Section: models.Section{Path: path},
		})
	}
	return chunks
}

func (s *SemanticMarkdown) textChunks(raw string, path []string) []models.Chunk {
	pieces := SplitByChars(raw, s.cfg.Max-1)
	chunks := make([]models.Chunk, 0, len(pieces))
	for _, p := range pieces {
		chunks = append(chunks, models.Chunk{
			Types:   []models.ChunkType{models.ChunkText},
			Content: ensureTrailingNewline(p),
			Section: models.Section{Path: path},
		})
	}
	return chunks
}

// blockRawText returns the raw source text spanned by a block node: for
// leaf blocks this is node.Lines().Value(source); container blocks
// (lists, blockquotes) have no Lines of their own, so their descendants'
// spans are concatenated in document order instead.
func blockRawText(n ast.Node, source []byte) string {
	if lines := linesOf(n); lines != nil && lines.Len() > 0 {
		return string(lines.Value(source))
	}

	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		b.WriteString(blockRawText(c, source))
	}
	return b.String()
}

// linesOf extracts the Lines() segments from any node that implements the
// unexported goldmark interface carrying them (ast.BaseBlock and its
// embedders); nodes without line info (inline-only trees) return nil.
func linesOf(n ast.Node) *gmtext.Segments {
	type hasLines interface {
		Lines() *gmtext.Segments
	}
	if hl, ok := n.(hasLines); ok {
		return hl.Lines()
	}
	return nil
}

// nodeText walks n's inline children collecting *ast.Text segments, used
// as a fallback when a heading's own Lines() span is empty (e.g. an ATX
// heading with inline-only children in some goldmark parse configurations).
func nodeText(n ast.Node, source []byte) []byte {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(source))
		} else {
			b.Write(nodeText(c, source))
		}
	}
	return []byte(b.String())
}

func looksLikeTable(raw string) bool {
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return false
	}
	return strings.Contains(lines[0], "|") && tableSeparatorRe.MatchString(lines[1])
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
