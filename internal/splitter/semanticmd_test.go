package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/ingestor/internal/models"
)

// TestSemanticMarkdown_NestedHeadings is the literal scenario of §8.1:
// "# A\ntext\n## B\nmore\n### C\ninside" must split into heading/text pairs
// whose section paths deepen with each nested heading.
func TestSemanticMarkdown_NestedHeadings(t *testing.T) {
	s := NewSemanticMarkdown(DefaultConfig())
	chunks, err := s.Split("# A\ntext\n## B\nmore\n### C\ninside")
	require.NoError(t, err)
	require.Len(t, chunks, 6)

	assert.True(t, chunks[0].HasType(models.ChunkHeading))
	assert.Equal(t, []string{"A"}, chunks[0].Section.Path)

	assert.True(t, chunks[1].HasType(models.ChunkText))
	assert.Contains(t, chunks[1].Content, "text")
	assert.Equal(t, []string{"A"}, chunks[1].Section.Path)

	assert.True(t, chunks[2].HasType(models.ChunkHeading))
	assert.Equal(t, []string{"A", "B"}, chunks[2].Section.Path)

	assert.True(t, chunks[3].HasType(models.ChunkText))
	assert.Contains(t, chunks[3].Content, "more")
	assert.Equal(t, []string{"A", "B"}, chunks[3].Section.Path)

	assert.True(t, chunks[4].HasType(models.ChunkHeading))
	assert.Equal(t, []string{"A", "B", "C"}, chunks[4].Section.Path)

	assert.True(t, chunks[5].HasType(models.ChunkText))
	assert.Contains(t, chunks[5].Content, "inside")
	assert.Equal(t, []string{"A", "B", "C"}, chunks[5].Section.Path)
}

// TestSemanticMarkdown_SiblingHeadingTruncatesPath asserts §4.5.1's rule
// that a same-or-higher-level heading truncates sibling/deeper path
// segments rather than nesting under the prior subsection.
func TestSemanticMarkdown_SiblingHeadingTruncatesPath(t *testing.T) {
	s := NewSemanticMarkdown(DefaultConfig())
	chunks, err := s.Split("# A\n## B\ntext1\n## C\ntext2")
	require.NoError(t, err)
	require.Len(t, chunks, 5)

	assert.Equal(t, []string{"A", "B"}, chunks[1].Section.Path)
	assert.Equal(t, []string{"A", "B"}, chunks[2].Section.Path)
	assert.Equal(t, []string{"A", "C"}, chunks[3].Section.Path)
	assert.Equal(t, []string{"A", "C"}, chunks[4].Section.Path)
}

func TestSemanticMarkdown_CodeFencePreservesLanguage(t *testing.T) {
	s := NewSemanticMarkdown(DefaultConfig())
	chunks, err := s.Split("# A\n```go\nfunc f() {}\n```\n")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.True(t, chunks[1].HasType(models.ChunkCode))
	assert.Contains(t, chunks[1].Content, "```go")
}

func TestSemanticMarkdown_OversizeCodeSplitsWithFenceRepeated(t *testing.T) {
	cfg := Config{Preferred: 40, Max: 60}
	s := NewSemanticMarkdown(cfg)
	body := ""
	for i := 0; i < 30; i++ {
		body += "line of go source code here\n"
	}
	chunks, err := s.Split("```go\n" + body + "```\n")
	require.NoError(t, err)
	require.True(t, len(chunks) > 1, "oversize code block should split into multiple chunks")
	for _, c := range chunks {
		assert.True(t, c.HasType(models.ChunkCode))
		assert.Contains(t, c.Content, "```go")
		assert.LessOrEqual(t, len(c.Content), cfg.Max+len("```go\n")+len("```\n")+1)
	}
}

func TestSemanticMarkdown_EmptyInput(t *testing.T) {
	s := NewSemanticMarkdown(DefaultConfig())
	chunks, err := s.Split("   \n\n")
	require.NoError(t, err)
	assert.Nil(t, chunks)
}
