// Package scraper implements the BFS core described in the ingestion
// engine's component design: a FIFO frontier with normalize-based
// deduplication, scope/pattern filtering, and per-source Strategy
// dispatch.
package scraper

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/ingestor/internal/models"
)

// urlQueue is a FIFO BFS frontier with normalize-based deduplication.
// Grounded on internal/services/crawler/queue.go's normalizeURL helper and
// mutex-guarded seen-map idiom, but the teacher's container/heap priority
// ordering is dropped: the BFS algorithm dequeues a batch of up to
// min(maxConcurrency, remaining) items and processes them in parallel,
// with no priority concept, so a plain slice preserves discovery order
// (required for the literal dispatch-order scenario).
type urlQueue struct {
	mu    sync.Mutex
	items []models.QueueItem
	seen  map[string]bool
}

func newURLQueue() *urlQueue {
	return &urlQueue{seen: make(map[string]bool)}
}

// push appends item if its normalized URL has not been seen. Returns
// whether it was newly added.
func (q *urlQueue) push(item models.QueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushLocked(item)
}

func (q *urlQueue) pushLocked(item models.QueueItem) bool {
	norm := normalizeURL(item.URL)
	if q.seen[norm] {
		return false
	}
	q.seen[norm] = true
	q.items = append(q.items, item)
	return true
}

// contains reports whether url has already been marked visited.
func (q *urlQueue) contains(rawURL string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.seen[normalizeURL(rawURL)]
}

// popBatch removes and returns up to n items from the front of the queue,
// preserving discovery order.
func (q *urlQueue) popBatch(n int) []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	batch := q.items[:n]
	q.items = q.items[n:]
	return batch
}

func (q *urlQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// pushDedupBatch adds every item whose normalized URL has not yet been
// seen, returning the subset that was newly added. Called once per BFS
// batch ("visited updates are serialized at the end of each BFS batch") so
// dedup stays deterministic under concurrent processItem calls.
func (q *urlQueue) pushDedupBatch(items []models.QueueItem) []models.QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	var added []models.QueueItem
	for _, item := range items {
		if q.pushLocked(item) {
			added = append(added, item)
		}
	}
	return added
}

// seedRoot prepends item to the front of the queue if its normalized URL
// has not been seen, preserving the seed ordering required at
// initialization (initialQueue items first, root prepended only if new).
func (q *urlQueue) seedRoot(item models.QueueItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	norm := normalizeURL(item.URL)
	if q.seen[norm] {
		return false
	}
	q.seen[norm] = true
	q.items = append([]models.QueueItem{item}, q.items...)
	return true
}

// normalizeURL canonicalizes a URL for deduplication: lowercases the host,
// strips the fragment, and sorts+re-encodes query parameters so that
// equivalent URLs collide in the seen set regardless of surface form.
func normalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	if u.RawQuery != "" {
		query := u.Query()
		keys := make([]string, 0, len(query))
		for k := range query {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values := url.Values{}
		for _, k := range keys {
			values[k] = query[k]
		}
		u.RawQuery = values.Encode()
	}

	return u.String()
}
