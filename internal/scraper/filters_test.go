package scraper

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/models"
)

func TestPatternSet_ExcludeWinsOverInclude(t *testing.T) {
	ps := NewPatternSet([]string{"/docs/**"}, []string{"/docs/archive/**"}, arbor.NewLogger())
	assert.True(t, ps.ShouldProcess("https://example.com/docs/intro"))
	assert.False(t, ps.ShouldProcess("https://example.com/docs/archive/old"))
}

func TestPatternSet_NoIncludesAcceptsEverythingNotExcluded(t *testing.T) {
	ps := NewPatternSet(nil, []string{"/skip/**"}, arbor.NewLogger())
	assert.True(t, ps.ShouldProcess("https://example.com/anything"))
	assert.False(t, ps.ShouldProcess("https://example.com/skip/me"))
}

func TestPatternSet_IncludesRequireMatch(t *testing.T) {
	ps := NewPatternSet([]string{"/api/**"}, []string{}, arbor.NewLogger())
	assert.True(t, ps.ShouldProcess("https://example.com/api/v2/users"))
	assert.False(t, ps.ShouldProcess("https://example.com/blog/post"))
}

func TestPatternSet_RegexPattern(t *testing.T) {
	ps := NewPatternSet(nil, []string{`/\d{4}/\d{2}/`}, arbor.NewLogger())
	assert.False(t, ps.ShouldProcess("https://example.com/2019/05/post"))
	assert.True(t, ps.ShouldProcess("https://example.com/blog/post"))
}

func TestPatternSet_BuiltinDefaultsApplyWhenNoExcludesGiven(t *testing.T) {
	ps := NewPatternSet(nil, nil, arbor.NewLogger())
	assert.False(t, ps.ShouldProcess("https://example.com/archive/2019"))
	assert.True(t, ps.ShouldProcess("https://example.com/docs/intro"))
}

func TestPatternSet_FileBasenameMatch(t *testing.T) {
	ps := NewPatternSet(nil, []string{"LICENSE*"}, arbor.NewLogger())
	assert.False(t, ps.ShouldProcess("file:///repo/LICENSE.md"))
}

func TestIsInScope_Subpages(t *testing.T) {
	base, err := url.Parse("https://example.com/docs/")
	require.NoError(t, err)

	inScope, err := url.Parse("https://example.com/docs/intro")
	require.NoError(t, err)
	outOfScope, err := url.Parse("https://example.com/blog/post")
	require.NoError(t, err)

	assert.True(t, IsInScope(base, inScope, models.ScopeSubpages))
	assert.False(t, IsInScope(base, outOfScope, models.ScopeSubpages))
}

func TestIsInScope_Hostname(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/")
	same, _ := url.Parse("https://example.com/other/page")
	different, _ := url.Parse("https://sub.example.com/other/page")

	assert.True(t, IsInScope(base, same, models.ScopeHostname))
	assert.False(t, IsInScope(base, different, models.ScopeHostname))
}

func TestIsInScope_Domain(t *testing.T) {
	base, _ := url.Parse("https://example.com/docs/")
	subdomain, _ := url.Parse("https://sub.example.com/other/page")
	differentDomain, _ := url.Parse("https://other.com/page")

	assert.True(t, IsInScope(base, subdomain, models.ScopeDomain))
	assert.False(t, IsInScope(base, differentDomain, models.ScopeDomain))
}

func TestGlobToRegexp_DoubleStarCrossesSegments(t *testing.T) {
	ps := NewPatternSet([]string{"/docs/**"}, []string{}, arbor.NewLogger())
	assert.True(t, ps.ShouldProcess("https://example.com/docs/a/b/c"))
}
