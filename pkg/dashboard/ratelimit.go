package dashboard

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
	// refreshLimiterClients caps how many client limiters are tracked.
	refreshLimiterClients = 4096
	// refreshLimiterIdle drops a client's limiter once it stops refreshing.
	refreshLimiterIdle = 10 * time.Minute
)

// refreshLimiter budgets ?refresh=true reloads per client IP. Plain reads
// are served from the table cache and never count against it.
type refreshLimiter struct {
	mu      sync.Mutex
	clients *expirable.LRU[string, *rate.Limiter]
	every   rate.Limit
	burst   int
}

func newRefreshLimiter(perMinute int) *refreshLimiter {
	return &refreshLimiter{
		clients: expirable.NewLRU[string, *rate.Limiter](
			refreshLimiterClients, nil, refreshLimiterIdle,
		),
		every: rate.Limit(float64(perMinute) / 60.0),
		burst: perMinute,
	}
}

// allow reports whether ip may force another reload now.
func (l *refreshLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.clients.Get(ip)
	if !ok {
		limiter = rate.NewLimiter(l.every, l.burst)
	}

	// Re-adding resets the idle expiry.
	l.clients.Add(ip, limiter)

	return limiter.Allow()
}

// refreshLimitMiddleware rejects forced reloads beyond the per-IP budget.
func (s *server) refreshLimitMiddleware(perMinute int) func(http.Handler) http.Handler {
	limiter := newRefreshLimiter(perMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if refreshRequested(r) && !limiter.allow(extractIP(r)) {
				s.log.WithField("client", extractIP(r)).
					Debug("Refresh rate limit exceeded")

				writeJSON(w, http.StatusTooManyRequests,
					errorResponse{"refresh rate limit exceeded"})

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractIP returns the client's IP address from the request.
func extractIP(r *http.Request) string {
	// Take the first hop of X-Forwarded-For when behind a proxy.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")

		return strings.TrimSpace(first)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return ip
}
