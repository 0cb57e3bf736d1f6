package fetcher

import (
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// domainLimiter rate-limits fetches to a single registrable host. Grounded
// on the teacher's internal/services/crawler/rate_limiter.go map-of-domains
// idiom, re-implemented on golang.org/x/time/rate instead of the teacher's
// hand-rolled lastRequest/delay bookkeeping.
type domainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// newDomainLimiter creates a limiter allowing rps requests/sec per host,
// with the given burst, lazily creating one rate.Limiter per host.
func newDomainLimiter(rps float64, burst int) *domainLimiter {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 1
	}
	return &domainLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (d *domainLimiter) forHost(host string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[host]
	if !ok {
		l = rate.NewLimiter(d.rps, d.burst)
		d.limiters[host] = l
	}
	return l
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// waitDelay reports the per-request interval implied by the configured RPS.
func (d *domainLimiter) waitDelay() time.Duration {
	if d.rps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(d.rps))
}
