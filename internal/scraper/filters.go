package scraper

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/models"
)

// defaultExcludePatterns apply only when the caller supplied no
// ExcludePatterns of their own (archived docs, non-English locales, and
// common repository boilerplate that is rarely worth ingesting).
var defaultExcludePatterns = []string{
	"**/archive/**",
	"**/archived/**",
	"**/v1/**", // superseded version trees commonly left in place for redirects
	"**/de/**", "**/fr/**", "**/ja/**", "**/zh/**", "**/ko/**", "**/es/**", "**/pt/**", "**/ru/**",
	"CHANGELOG*",
	"LICENSE*",
	"CONTRIBUTING*",
}

// PatternSet compiles the spec's include/exclude pattern lists once.
// Entries wrapped in "/…/" are treated as regex; anything else is a glob
// (minimatch-ish: "*" matches within a path segment, "**" matches across
// segments).
type PatternSet struct {
	includes []*regexp.Regexp
	excludes []*regexp.Regexp
}

// NewPatternSet compiles include/exclude patterns, applying the built-in
// exclude defaults only when the caller supplied none of their own.
// Grounded on internal/services/crawler/filters.go's compile-and-log-on-
// error idiom for regexp.Regexp; glob support is added via globToRegexp
// since no minimatch-equivalent library exists anywhere in the retrieved
// example pack.
func NewPatternSet(includePatterns, excludePatterns []string, logger arbor.ILogger) *PatternSet {
	effectiveExcludes := excludePatterns
	if len(effectiveExcludes) == 0 {
		effectiveExcludes = defaultExcludePatterns
	}

	ps := &PatternSet{}
	for _, p := range includePatterns {
		if re, err := compilePattern(p); err != nil {
			logger.Warn().Str("pattern", p).Err(err).Msg("invalid include pattern, ignoring")
		} else {
			ps.includes = append(ps.includes, re)
		}
	}
	for _, p := range effectiveExcludes {
		if re, err := compilePattern(p); err != nil {
			logger.Warn().Str("pattern", p).Err(err).Msg("invalid exclude pattern, ignoring")
		} else {
			ps.excludes = append(ps.excludes, re)
		}
	}
	return ps
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) >= 2 {
		return regexp.Compile(pattern[1 : len(pattern)-1])
	}
	return regexp.Compile(globToRegexp(pattern))
}

// globToRegexp translates a minimatch-style glob into an anchored regexp.
// "**" matches any sequence including "/"; "*" matches any sequence
// excluding "/"; "?" matches one non-"/" character. All other regexp
// metacharacters are escaped.
func globToRegexp(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	i := 0
	for i < len(glob) {
		c := glob[i]
		switch {
		case c == '*' && i+1 < len(glob) && glob[i+1] == '*':
			b.WriteString(".*")
			i += 2
		case c == '*':
			b.WriteString("[^/]*")
			i++
		case c == '?':
			b.WriteString("[^/]")
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteString("$")
	return b.String()
}

// matchesAny reports whether any candidate string (full URL, pathname, and —
// for file:// URLs — basename) matches one of res.
func matchesAny(res []*regexp.Regexp, candidates ...string) bool {
	for _, re := range res {
		for _, c := range candidates {
			if re.MatchString(c) {
				return true
			}
		}
	}
	return false
}

func candidatesFor(rawURL string) []string {
	candidates := []string{rawURL}
	u, err := url.Parse(rawURL)
	if err != nil {
		return candidates
	}
	candidates = append(candidates, u.Path)
	if u.Scheme == "file" {
		candidates = append(candidates, path.Base(u.Path))
	}
	return candidates
}

// ShouldProcess applies the spec's exclude-wins-then-include-if-specified
// rule: exclude patterns are checked first and always win; if any include
// patterns were configured, a URL must match at least one to be accepted,
// otherwise every non-excluded URL is accepted.
func (ps *PatternSet) ShouldProcess(rawURL string) bool {
	candidates := candidatesFor(rawURL)

	if matchesAny(ps.excludes, candidates...) {
		return false
	}
	if len(ps.includes) == 0 {
		return true
	}
	return matchesAny(ps.includes, candidates...)
}

// IsInScope implements the spec's three scope kinds for BFS link
// following: subpages (same origin + prefix path), hostname (same host),
// domain (same registrable domain, subdomains allowed).
func IsInScope(base *url.URL, candidate *url.URL, scope models.Scope) bool {
	switch scope {
	case models.ScopeHostname:
		return strings.EqualFold(base.Hostname(), candidate.Hostname())
	case models.ScopeDomain:
		return strings.EqualFold(registrableDomain(base.Hostname()), registrableDomain(candidate.Hostname()))
	case models.ScopeSubpages:
		fallthrough
	default:
		if base.Scheme != candidate.Scheme || !strings.EqualFold(base.Host, candidate.Host) {
			return false
		}
		baseDir := baseDirectory(base.Path)
		return strings.HasPrefix(candidate.Path, baseDir)
	}
}

// baseDirectory returns the directory segment of p: everything up to and
// including the final "/". "/docs/intro" -> "/docs/"; "/docs/" -> "/docs/".
func baseDirectory(p string) string {
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[:idx+1]
	}
	return "/"
}

// registrableDomain returns a coarse "last two labels" approximation of
// the registrable domain (e.g. "docs.example.com" -> "example.com"). This
// is intentionally simple; a full public-suffix-list lookup is out of
// scope for the scraper's scope check.
func registrableDomain(host string) string {
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// shouldProcessURL is a convenience combining scope + pattern checks,
// used by the BFS core; kept separate from PatternSet/IsInScope so each
// can be unit tested in isolation (mirrors §4.3's shouldProcessUrl).
func shouldProcessURL(base *url.URL, candidate string, scope models.Scope, patterns *PatternSet) bool {
	cu, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	if scope != "" && !IsInScope(base, cu, scope) {
		return false
	}
	return patterns.ShouldProcess(candidate)
}
