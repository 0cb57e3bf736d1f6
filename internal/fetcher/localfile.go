package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

// LocalFileFetcher reads local file-tree sources addressed by file://
// URLs. ETag is a hash of the file's mtime (§4.4 local-file strategy);
// NOT_MODIFIED fires when the stored etag still matches, NOT_FOUND on
// ENOENT. Directories are not read here directly: the local-file Strategy
// lists directory children and emits file:// URLs for each, since only
// files carry fetchable content.
type LocalFileFetcher struct{}

// NewLocalFileFetcher constructs a LocalFileFetcher.
func NewLocalFileFetcher() *LocalFileFetcher {
	return &LocalFileFetcher{}
}

// CanFetch reports whether source is a file:// URL.
func (f *LocalFileFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "file://")
}

// Fetch reads the file named by source. See the type doc for etag/status
// semantics.
func (f *LocalFileFetcher) Fetch(ctx context.Context, source string, opts interfaces.FetchOptions) (models.RawContent, error) {
	select {
	case <-ctx.Done():
		return models.RawContent{}, fmt.Errorf("%w: %v", errs.ErrCancelled, ctx.Err())
	default:
	}

	path, err := pathFromFileURL(source)
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: %v", errs.ErrValidation, err)
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return models.RawContent{Source: source, Status: models.StatusNotFound}, nil
	}
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: stat %s: %v", errs.ErrFetch, path, err)
	}

	etag := mtimeETag(info.ModTime())
	if opts.ETag != "" && opts.ETag == etag {
		return models.RawContent{Source: source, ETag: etag, Status: models.StatusNotModified}, nil
	}

	if info.IsDir() {
		return models.RawContent{}, fmt.Errorf("%w: %s is a directory, not a fetchable file", errs.ErrValidation, path)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return models.RawContent{}, fmt.Errorf("%w: reading %s: %v", errs.ErrFetch, path, err)
	}

	return models.RawContent{
		Content:      body,
		MimeType:     mimeFromExtension(path),
		Source:       source,
		ETag:         etag,
		LastModified: info.ModTime().UTC().Format("Mon, 02 Jan 2006 15:04:05 GMT"),
		Status:       models.StatusSuccess,
	}, nil
}

// ListDirectory returns file:// URLs for every direct child of the
// directory named by source, sorted for deterministic BFS ordering.
func ListDirectory(source string) ([]string, error) {
	path, err := pathFromFileURL(source)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", errs.ErrFetch, path, err)
	}

	var urls []string
	for _, e := range entries {
		childPath := filepath.Join(path, e.Name())
		urls = append(urls, fileURLFromPath(childPath))
	}
	sort.Strings(urls)
	return urls, nil
}

func pathFromFileURL(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", source, err)
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("not a file:// URL: %s", source)
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return filepath.FromSlash(p), nil
}

func fileURLFromPath(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func mtimeETag(t time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d", t.Unix())))
	return hex.EncodeToString(sum[:8])
}

func mimeFromExtension(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain"
	case ".go", ".ts", ".tsx", ".js", ".jsx", ".py", ".rs", ".java", ".c", ".cpp", ".h":
		return "text/x-source-code"
	default:
		return ""
	}
}

var _ interfaces.Fetcher = (*LocalFileFetcher)(nil)
