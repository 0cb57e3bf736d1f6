package splitter

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/ingestor/internal/models"
)

// SourceCode splits source text into boundary-aware chunks without a
// tree-sitter grammar: no tree-sitter Go binding exists anywhere in the
// retrieved example pack (grepped for "tree-sitter|treesitter|sitter\." —
// zero hits across ~1400 files), so boundaries are found with a
// brace/indentation heuristic instead of a real per-language AST (see
// DESIGN.md). The breakpoint/segment/lossless-concatenation algorithm of
// §4.5.2 is followed exactly: chunks are produced by slicing the raw
// source at byte offsets, so concatenation always reconstructs the
// original bytes regardless of how well boundary *names* were detected.
type SourceCode struct {
	cfg Config
}

// NewSourceCode builds a SourceCode splitter bounded by cfg.
func NewSourceCode(cfg Config) *SourceCode {
	return &SourceCode{cfg: cfg.withDefaults()}
}

type boundary struct {
	name        string
	kind        boundaryKind
	startByte   int
	endByte     int
	depthAtOpen int
	parent      *boundary
}

type boundaryKind string

const (
	boundaryStructural boundaryKind = "structural"
	boundaryContent    boundaryKind = "content"
)

var (
	classDeclRe = regexp.MustCompile(`^(export\s+)?(default\s+)?(abstract\s+)?(public\s+|private\s+)?(class|interface|struct|enum|trait)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	funcDeclRe  = regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?(public\s+|private\s+|static\s+)*(function|func|def)\s+([A-Za-z_][A-Za-z0-9_]*)`)
	methodRe    = regexp.MustCompile(`^(public\s+|private\s+|protected\s+|static\s+|async\s+|export\s+)*([A-Za-z_][A-Za-z0-9_]*)\s*\([^)]*\)\s*[A-Za-z0-9_<>,\[\]\s:]*\{`)
)

// Split implements interfaces.Splitter.
func (s *SourceCode) Split(content string) ([]models.Chunk, error) {
	if content == "" {
		return nil, nil
	}

	boundaries := detectBoundaries(content)
	breaks := breakpoints(len(content), boundaries)

	chunks := make([]models.Chunk, 0, len(breaks)-1)
	emittedStructural := make(map[*boundary]bool)

	for i := 0; i < len(breaks)-1; i++ {
		start, end := breaks[i], breaks[i+1]
		if start >= end {
			continue
		}
		innermost := innermostBoundary(boundaries, start, end)

		var types []models.ChunkType
		var path []string
		if innermost != nil {
			path = namedAncestry(innermost)
			if innermost.kind == boundaryStructural && !emittedStructural[innermost] {
				types = []models.ChunkType{models.ChunkCode, models.ChunkStructural}
				emittedStructural[innermost] = true
			} else {
				types = []models.ChunkType{models.ChunkCode}
			}
		} else {
			types = []models.ChunkType{models.ChunkCode}
		}

		chunks = append(chunks, models.Chunk{
			Types:   types,
			Content: content[start:end],
			Section: models.Section{Level: len(path), Path: path},
		})
	}

	chunks = foldWhitespaceOnly(chunks)
	return expandOversize(chunks, s.cfg), nil
}

// detectBoundaries scans content line-by-line tracking brace depth,
// opening a new boundary whenever a line matches a class/interface/
// function/method declaration pattern and closing it once brace depth
// returns to its pre-declaration level.
func detectBoundaries(content string) []*boundary {
	lines := splitKeepEnds(content)
	offsets := make([]int, len(lines)+1)
	for i, l := range lines {
		offsets[i+1] = offsets[i] + len(l)
	}

	var stack []*boundary
	var all []*boundary
	depth := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")

		if opens > 0 {
			parentKind := boundaryKind("")
			var parent *boundary
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
				parentKind = parent.kind
			}

			if m := classDeclRe.FindStringSubmatch(trimmed); m != nil {
				stack = append(stack, &boundary{
					name: m[len(m)-1], kind: boundaryStructural,
					startByte: offsets[i], depthAtOpen: depth, parent: parent,
				})
			} else if m := funcDeclRe.FindStringSubmatch(trimmed); m != nil {
				stack = append(stack, &boundary{
					name: m[len(m)-1], kind: boundaryStructural,
					startByte: offsets[i], depthAtOpen: depth, parent: parent,
				})
			} else if parentKind == boundaryStructural {
				if m := methodRe.FindStringSubmatch(trimmed); m != nil {
					stack = append(stack, &boundary{
						name: m[len(m)-1], kind: boundaryContent,
						startByte: offsets[i], depthAtOpen: depth, parent: parent,
					})
				}
			}
		}

		depth += opens - closes

		for len(stack) > 0 && depth <= stack[len(stack)-1].depthAtOpen {
			b := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			b.endByte = offsets[i] + len(line)
			all = append(all, b)
		}
	}

	// Any boundary still open at EOF (malformed/truncated source) closes
	// at the end of the file rather than being dropped.
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		b.endByte = len(content)
		all = append(all, b)
	}

	return all
}

func splitKeepEnds(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

// breakpoints collects {0, each boundary start, each boundary end,
// totalLen} per §4.5.2 step 1, sorted and deduplicated.
func breakpoints(totalLen int, boundaries []*boundary) []int {
	set := map[int]bool{0: true, totalLen: true}
	for _, b := range boundaries {
		set[b.startByte] = true
		set[b.endByte] = true
	}
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// innermostBoundary returns the smallest boundary whose range fully
// contains [start,end).
func innermostBoundary(boundaries []*boundary, start, end int) *boundary {
	var best *boundary
	bestSize := -1
	for _, b := range boundaries {
		if b.startByte <= start && end <= b.endByte {
			size := b.endByte - b.startByte
			if best == nil || size < bestSize {
				best = b
				bestSize = size
			}
		}
	}
	return best
}

// namedAncestry walks parent pointers from b up to the root, returning
// names in root-to-leaf order ("the sequence of named ancestors").
func namedAncestry(b *boundary) []string {
	var rev []string
	for cur := b; cur != nil; cur = cur.parent {
		rev = append(rev, cur.name)
	}
	path := make([]string, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}

// foldWhitespaceOnly merges whitespace-only segments into a neighbor per
// §4.5.2 step 4: a leading whitespace-only chunk prepends to the next
// non-whitespace chunk; a trailing one appends to the last chunk.
func foldWhitespaceOnly(chunks []models.Chunk) []models.Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	out := make([]models.Chunk, 0, len(chunks))
	var pendingPrefix string

	for _, c := range chunks {
		if strings.TrimSpace(c.Content) == "" {
			pendingPrefix += c.Content
			continue
		}
		c.Content = pendingPrefix + c.Content
		pendingPrefix = ""
		out = append(out, c)
	}

	if pendingPrefix != "" {
		if len(out) > 0 {
			out[len(out)-1].Content += pendingPrefix
		} else {
			out = append(out, models.Chunk{
				Types:   []models.ChunkType{models.ChunkCode},
				Content: pendingPrefix,
			})
		}
	}
	return out
}

// expandOversize splits any chunk exceeding cfg.Max via the character
// splitter, retaining path/level/types on every resulting piece (§4.5.2
// step 5). Only the leading piece of a formerly-structural chunk keeps
// the structural tag so at most one structural chunk per boundary still
// holds.
func expandOversize(chunks []models.Chunk, cfg Config) []models.Chunk {
	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Content) <= cfg.Max {
			out = append(out, c)
			continue
		}
		pieces := SplitByChars(c.Content, cfg.Max)
		for i, p := range pieces {
			types := c.Types
			if i > 0 {
				types = withoutStructural(c.Types)
			}
			out = append(out, models.Chunk{
				Types:   types,
				Content: p,
				Section: c.Section,
			})
		}
	}
	return out
}

func withoutStructural(types []models.ChunkType) []models.ChunkType {
	out := make([]models.ChunkType, 0, len(types))
	for _, t := range types {
		if t != models.ChunkStructural {
			out = append(out, t)
		}
	}
	return out
}
