package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultLoginRate  = rate.Limit(0.2) // one attempt per 5s, sustained
	DefaultLoginBurst = 5

	limiterIdle = 30 * time.Minute
)

// LoginLimiter throttles login attempts per client IP.
type LoginLimiter struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	limiters map[string]*ipLimiter
	swept    time.Time
}

type ipLimiter struct {
	limiter *rate.Limiter
	last    time.Time
}

func NewLoginLimiter(rps rate.Limit, burst int) *LoginLimiter {
	return &LoginLimiter{rps: rps, burst: burst, now: time.Now, limiters: map[string]*ipLimiter{}}
}

func (l *LoginLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.swept) > limiterIdle {
		for k, v := range l.limiters {
			if now.Sub(v.last) > limiterIdle {
				delete(l.limiters, k)
			}
		}
		l.swept = now
	}
	il, ok := l.limiters[ip]
	if !ok {
		il = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.limiters[ip] = il
	}
	il.last = now
	return il.limiter.AllowN(now, 1)
}

func (l *LoginLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientIP(r)) {
			w.Header().Set("Retry-After", "5")
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many login attempts"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
