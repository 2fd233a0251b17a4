package api

import (
    "math"
    "net/http"
    "strconv"
    "sync"
    "time"

    "golang.org/x/time/rate"

    "vrptw/internal/metrics"
)

// tenantLimiter keeps one token bucket per tenant. A zero rate disables it.
type tenantLimiter struct {
    mu      sync.Mutex
    limit   rate.Limit
    burst   int
    buckets map[string]*rate.Limiter
}

func newTenantLimiter(rps float64, burst int) *tenantLimiter {
    return &tenantLimiter{limit: rate.Limit(rps), burst: burst, buckets: map[string]*rate.Limiter{}}
}

func (l *tenantLimiter) get(tenant string) *rate.Limiter {
    l.mu.Lock()
    defer l.mu.Unlock()
    b, ok := l.buckets[tenant]
    if !ok {
        b = rate.NewLimiter(l.limit, l.burst)
        l.buckets[tenant] = b
    }
    return b
}

// allow reports whether tenant may proceed now, and if not how long to wait.
func (l *tenantLimiter) allow(tenant string, now time.Time) (bool, time.Duration) {
    if l.limit <= 0 {
        return true, 0
    }
    res := l.get(tenant).ReserveN(now, 1)
    if !res.OK() {
        return false, time.Second
    }
    if d := res.DelayFrom(now); d > 0 {
        res.CancelAt(now)
        return false, d
    }
    return true, 0
}

// limited writes a 429 when tenant is over its rate.
func (s *Server) limited(w http.ResponseWriter, r *http.Request, tenant string) bool {
    ok, wait := s.limits.allow(tenant, s.now())
    if ok {
        return false
    }
    metrics.RateLimited.Inc()
    w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
    writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "solve rate exceeded for tenant "+tenant, r.URL.Path)
    return true
}
