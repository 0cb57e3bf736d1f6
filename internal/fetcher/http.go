// Package fetcher implements the spec's Fetcher contract (§6): HTTP with
// conditional requests and retries, a local-file fetcher, and an
// auto-detecting wrapper that falls back to headless-browser rendering.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ingestor/internal/errs"
	"github.com/ternarybob/ingestor/internal/interfaces"
	"github.com/ternarybob/ingestor/internal/models"
)

const defaultFetchTimeout = 30 * time.Second

// HTTPFetcher retrieves bytes over HTTP(S). Grounded on the teacher's
// retry.go/rate_limiter.go pairing in internal/services/crawler: every
// fetch passes through a per-domain golang.org/x/time/rate limiter, then
// through the retry policy above.
type HTTPFetcher struct {
	client  *http.Client
	limiter *domainLimiter
	retry   *retryPolicy
	logger  arbor.ILogger
}

// NewHTTPFetcher builds an HTTPFetcher. requestsPerSecond/burst configure
// the per-domain rate limiter; maxRetries configures the retry policy.
func NewHTTPFetcher(requestsPerSecond float64, burst, maxRetries int, logger arbor.ILogger) *HTTPFetcher {
	return &HTTPFetcher{
		client:  &http.Client{},
		limiter: newDomainLimiter(requestsPerSecond, burst),
		retry:   newRetryPolicy(maxRetries),
		logger:  logger,
	}
}

// CanFetch reports whether source is an http(s) URL.
func (f *HTTPFetcher) CanFetch(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Fetch retrieves source, honoring conditional requests (If-None-Match),
// redirects, custom headers, and the given timeout (defaulting to 30s).
// Returns RawContent.Status=NOT_MODIFIED on 304 and NOT_FOUND on 404;
// every other non-2xx status becomes errs.ErrFetch after exhausting
// retries. RawContent.Source is always the final post-redirect URL.
func (f *HTTPFetcher) Fetch(ctx context.Context, source string, opts interfaces.FetchOptions) (models.RawContent, error) {
	if host := hostOf(source); host != "" {
		if err := f.limiter.forHost(host).Wait(ctx); err != nil {
			return models.RawContent{}, fmt.Errorf("%w: rate limiter wait: %v", errs.ErrCancelled, err)
		}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	client := f.client
	if !opts.FollowRedirects {
		client = &http.Client{
			Timeout: client.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}

	var resp *http.Response
	var body []byte
	var finalURL string

	status, err := executeWithRetry(ctx, f.logger, f.retry, func() (int, error) {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		req, rErr := http.NewRequestWithContext(reqCtx, http.MethodGet, source, nil)
		if rErr != nil {
			return 0, rErr
		}
		if opts.ETag != "" {
			req.Header.Set("If-None-Match", opts.ETag)
		}
		for k, v := range opts.Headers {
			req.Header.Set(k, v)
		}

		r, rErr := client.Do(req)
		if rErr != nil {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			default:
			}
			return 0, rErr
		}
		defer r.Body.Close()

		b, rErr := io.ReadAll(r.Body)
		if rErr != nil {
			return r.StatusCode, rErr
		}

		resp = r
		body = b
		finalURL = r.Request.URL.String()
		return r.StatusCode, nil
	})

	if err != nil {
		if ctx.Err() != nil {
			return models.RawContent{}, fmt.Errorf("%w: %v", errs.ErrCancelled, err)
		}
		return models.RawContent{}, fmt.Errorf("%w: fetching %s: %v", errs.ErrFetch, source, err)
	}
	if finalURL == "" {
		finalURL = source
	}

	switch status {
	case http.StatusNotModified:
		return models.RawContent{
			Source: finalURL,
			ETag:   opts.ETag,
			Status: models.StatusNotModified,
		}, nil
	case http.StatusNotFound:
		return models.RawContent{Source: finalURL, Status: models.StatusNotFound}, nil
	}
	if status < 200 || status >= 300 {
		return models.RawContent{}, fmt.Errorf("%w: %s returned status %d", errs.ErrFetch, source, status)
	}

	mimeType, charset := splitContentType(resp.Header.Get("Content-Type"))
	if mimeType == "" {
		mimeType = sniffMimeType(body)
	}

	return models.RawContent{
		Content:      body,
		MimeType:     mimeType,
		Charset:      charset,
		Source:       finalURL,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		Status:       models.StatusSuccess,
	}, nil
}

func splitContentType(header string) (mime, charset string) {
	if header == "" {
		return "", ""
	}
	parts := strings.Split(header, ";")
	mime = strings.TrimSpace(parts[0])
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "charset=") {
			charset = strings.TrimPrefix(p, "charset=")
		}
	}
	return mime, charset
}

func sniffMimeType(body []byte) string {
	return http.DetectContentType(body)
}

var _ interfaces.Fetcher = (*HTTPFetcher)(nil)

// IsLikelyBinary reports whether body looks like binary content (a
// heuristic null-byte check). Shared with the text pipeline's
// reject-binary rule since fetchers are the first place raw bytes appear.
func IsLikelyBinary(body []byte) bool {
	n := len(body)
	if n > 512 {
		n = 512
	}
	return bytes.IndexByte(body[:n], 0) >= 0
}
