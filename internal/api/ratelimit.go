package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

const (
	maxTrackedClients = 10000
	idleClientTTL     = 10 * time.Minute
)

// RateLimiter applies a token bucket per client IP. Idle clients are
// forgotten after idleClientTTL.
type RateLimiter struct {
	mu         sync.Mutex
	limiters   *expirable.LRU[string, *rate.Limiter]
	rps        rate.Limit
	burst      int
	trustProxy bool
}

// NewRateLimiter returns nil when rps is not positive, which disables limiting.
// Clients are keyed by the connection's remote address unless trustProxy is
// set, in which case the address appended to X-Forwarded-For by the fronting
// proxy is used.
func NewRateLimiter(rps float64, burst int, trustProxy bool) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:   expirable.NewLRU[string, *rate.Limiter](maxTrackedClients, nil, idleClientTTL),
		rps:        rate.Limit(rps),
		burst:      burst,
		trustProxy: trustProxy,
	}
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
	}
	// re-adding refreshes the idle TTL
	l.limiters.Add(ip, lim)
	return lim
}

// Allow reports whether the client behind r may proceed.
func (l *RateLimiter) Allow(r *http.Request) bool {
	if l == nil {
		return true
	}
	return l.limiter(clientIP(r, l.trustProxy)).Allow()
}

// clientIP ignores X-Forwarded-For unless trustProxy is set. Earlier hops
// are client supplied, so only the last one is taken.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
			hops := strings.Split(xff[len(xff)-1], ",")
			if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
				return last
			}
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
