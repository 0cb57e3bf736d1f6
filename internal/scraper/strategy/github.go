package strategy

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
	"golang.org/x/oauth2"
)

// repoURLRe matches https://github.com/{owner}/{repo}[/tree/{branch}[/subpath]].
var repoURLRe = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)(?:/tree/([^/]+)(?:/(.*))?)?/?$`)

// blobURLRe matches https://github.com/{owner}/{repo}/blob/{branch}/{path}.
var blobURLRe = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/blob/([^/]+)/(.+)$`)

// wikiURLRe matches https://github.com/{owner}/{repo}/wiki...
var wikiURLRe = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/wiki`)

// textExtensions is the whitelist a repo-discovery pass emits blob URLs
// for; paths with no extension, or with an extension whose registered
// MIME type is text/*, are kept as well rather than being dropped.
var textExtensions = map[string]bool{
	".md": true, ".mdx": true, ".txt": true, ".rst": true,
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rb": true, ".java": true, ".c": true, ".h": true, ".cpp": true, ".hpp": true,
	".rs": true, ".json": true, ".yaml": true, ".yml": true, ".toml": true,
}

// GitHub implements the github.com repo/wiki/blob strategy of §4.4.
type GitHub struct {
	client   *gh.Client
	fetcher  interfaces.Fetcher // used only to fetch wiki pages, which go-github's REST API does not expose
	registry pipelineRegistry
	include  ShouldFollowLinkFunc // optional shouldIncludeUrl hook
	logger   arbor.ILogger
}

// NewGitHub builds a GitHub strategy. token may be empty for unauthenticated
// (rate-limited) access. fetcher is used to retrieve wiki pages, which are
// served as plain HTML rather than through the repo/tree/contents APIs.
func NewGitHub(ctx context.Context, token string, fetcher interfaces.Fetcher, registry pipelineRegistry, include ShouldFollowLinkFunc, logger arbor.ILogger) *GitHub {
	client := gh.NewClient(nil)
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	}
	return &GitHub{client: client, fetcher: fetcher, registry: registry, include: include, logger: logger}
}

// CanHandle claims github.com URLs.
func (g *GitHub) CanHandle(sourceURL string) bool {
	return strings.HasPrefix(sourceURL, "https://github.com/")
}

// ProcessItem dispatches by URL shape per §4.4's depth-0/depth>0 rules.
func (g *GitHub) ProcessItem(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	switch {
	case strings.HasPrefix(item.URL, "github-file://"):
		// Legacy page identity from an older scrape generation: no longer
		// resolvable, so it is reported NOT_FOUND to trigger deletion (§4.4).
		return interfaces.ProcessItemResult{URL: item.URL, Status: models.StatusNotFound}, nil

	case blobURLRe.MatchString(item.URL):
		if item.Depth == 0 {
			return interfaces.ProcessItemResult{
				URL:    item.URL,
				Status: models.StatusSuccess,
				Links:  []string{item.URL}, // strict single-file scoping
			}, nil
		}
		return g.processBlob(ctx, item, options)

	case wikiURLRe.MatchString(item.URL):
		return g.processWiki(ctx, item, options)

	case repoURLRe.MatchString(item.URL):
		return g.processRepo(ctx, item)

	default:
		return interfaces.ProcessItemResult{}, fmt.Errorf("%w: unrecognized github url shape: %s", errs.ErrValidation, item.URL)
	}
}

// processRepo discovers the wiki URL plus every text-eligible blob URL
// under the repo's tree (optionally scoped to subPath).
func (g *GitHub) processRepo(ctx context.Context, item models.QueueItem) (interfaces.ProcessItemResult, error) {
	m := repoURLRe.FindStringSubmatch(item.URL)
	owner, repo, branch, subPath := m[1], m[2], m[3], m[4]
	if branch == "" {
		r, _, err := g.client.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return interfaces.ProcessItemResult{}, fmt.Errorf("%w: resolving default branch for %s/%s: %v", errs.ErrFetch, owner, repo, err)
		}
		branch = r.GetDefaultBranch()
	}

	tree, _, err := g.client.Git.GetTree(ctx, owner, repo, branch, true)
	if err != nil {
		return interfaces.ProcessItemResult{}, fmt.Errorf("%w: fetching tree for %s/%s@%s: %v", errs.ErrFetch, owner, repo, branch, err)
	}

	links := []string{fmt.Sprintf("https://github.com/%s/%s/wiki", owner, repo)}
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if subPath != "" && !strings.HasPrefix(path, subPath) {
			continue
		}
		if !g.shouldIncludePath(path) {
			continue
		}
		links = append(links, fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, branch, path))
	}

	return interfaces.ProcessItemResult{
		URL:    item.URL,
		Status: models.StatusSuccess,
		Links:  links,
	}, nil
}

func (g *GitHub) shouldIncludePath(path string) bool {
	if g.include != nil && !g.include(path) {
		return false
	}
	ext := extFromURLPath(path)
	if ext == "" {
		return true // no extension: fetched as text/plain
	}
	if textExtensions[ext] {
		return true
	}
	return strings.HasPrefix(mimeHintFromExt(ext), "text/")
}

// processBlob fetches raw file content through the repository contents API
// and routes it through the pipeline registry.
func (g *GitHub) processBlob(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	m := blobURLRe.FindStringSubmatch(item.URL)
	owner, repo, branch, path := m[1], m[2], m[3], m[4]

	raw, err := fetchRawBlob(ctx, g.client, owner, repo, branch, path)
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}
	raw.Source = item.URL

	p := g.registry.Select(raw.MimeType, sample(raw.Content))
	if p == nil {
		return interfaces.ProcessItemResult{URL: item.URL, Status: models.StatusSuccess}, nil
	}

	pr, err := p.Process(ctx, raw, options, nil)
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	return interfaces.ProcessItemResult{
		URL:         item.URL,
		Title:       pr.Title,
		ContentType: pr.ContentType,
		Content:     &pr,
		Status:      models.StatusSuccess,
		// Links from file content are not followed (repo tree discovery
		// is the only source of new GitHub links).
	}, nil
}

// processWiki fetches one wiki page over HTTP and routes it through the
// pipeline registry, same as the Web strategy does for ordinary pages:
// GitHub wikis are themselves git repos served as plain HTML, and
// go-github's REST API exposes no wiki endpoint, so delegation here means
// fetching+processing the page directly rather than calling through the
// Web strategy's type (which would require wiring a second Fetcher
// implementation through this strategy for no benefit). Discovered links
// are narrowed to other pages of the same wiki so the BFS core doesn't
// wander off into unrelated GitHub navigation chrome.
func (g *GitHub) processWiki(ctx context.Context, item models.QueueItem, options models.ScraperOptions) (interfaces.ProcessItemResult, error) {
	raw, err := g.fetcher.Fetch(ctx, item.URL, interfaces.FetchOptions{
		ETag:            item.ETag,
		FollowRedirects: options.FollowRedirects,
	})
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	result := interfaces.ProcessItemResult{
		URL:          raw.Source,
		ETag:         raw.ETag,
		LastModified: raw.LastModified,
		Status:       raw.Status,
	}
	if raw.Status != models.StatusSuccess {
		return result, nil
	}

	p := g.registry.Select(raw.MimeType, sample(raw.Content))
	if p == nil {
		g.logger.Warn().Str("url", raw.Source).Str("mime", raw.MimeType).Msg("github strategy: no pipeline claimed wiki page, skipping")
		return result, nil
	}

	pr, err := p.Process(ctx, raw, options, g.fetcher)
	if err != nil {
		return interfaces.ProcessItemResult{}, err
	}

	result.Title = pr.Title
	result.ContentType = pr.ContentType
	result.Content = &pr
	result.Links = g.filterWikiLinks(item.URL, pr.Links)
	return result, nil
}

// filterWikiLinks keeps only links that stay inside the same repo's wiki
// (so the BFS core doesn't escape into unrelated github.com pages) and
// pass the optional shouldIncludeUrl hook.
func (g *GitHub) filterWikiLinks(sourceURL string, links []string) []string {
	m := wikiURLRe.FindStringSubmatch(sourceURL)
	if m == nil {
		return nil
	}
	owner, repo := m[1], m[2]
	prefix := fmt.Sprintf("https://github.com/%s/%s/wiki", owner, repo)

	var out []string
	for _, l := range links {
		if !strings.HasPrefix(l, prefix) {
			continue
		}
		if g.include != nil && !g.include(l) {
			continue
		}
		out = append(out, l)
	}
	return out
}

func fetchRawBlob(ctx context.Context, client *gh.Client, owner, repo, branch, path string) (models.RawContent, error) {
	content, _, _, err := client.Repositories.GetContents(ctx, owner, repo, path, &gh.RepositoryContentGetOptions{Ref: branch})
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: fetching %s/%s/%s@%s: %v", errs.ErrFetch, owner, repo, path, branch, err)
	}
	if content == nil {
		return models.RawContent{}, fmt.Errorf("%w: %s is not a file", errs.ErrValidation, path)
	}
	decoded, err := content.GetContent()
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: decoding %s: %v", errs.ErrFetch, path, err)
	}

	mimeType := "text/x-source-code"
	ext := extFromURLPath(path)
	switch ext {
	case ".md", ".mdx":
		mimeType = "text/markdown"
	case ".txt", ".rst":
		mimeType = "text/plain"
	case ".json":
		mimeType = "application/json"
	case "":
		mimeType = "text/plain"
	}

	return models.RawContent{
		Content:  []byte(decoded),
		MimeType: mimeType,
		ETag:     content.GetSHA(),
		Status:   models.StatusSuccess,
	}, nil
}

// Cleanup implements interfaces.Strategy; GitHub owns no resources beyond
// the shared *github.Client, which holds no closable handles.
func (g *GitHub) Cleanup() error { return nil }

var _ interfaces.Strategy = (*GitHub)(nil)
