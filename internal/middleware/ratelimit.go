package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"chitchat/internal/constants"
	apperrors "chitchat/internal/errors"
	"chitchat/internal/httputil"
	"chitchat/internal/metrics"
	"chitchat/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type clientWindow struct {
	start time.Time
	count int
}

// RateLimiter allows at most limit requests per client within each fixed
// window; a limit of zero rejects everything. Windows of idle clients are
// swept periodically.
type RateLimiter struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	clients   map[string]*clientWindow
	lastSweep time.Time
	now       func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit < 0 {
		limit = 0
	}
	if window <= 0 {
		window = time.Duration(constants.DefaultAuthRateWindowSec) * time.Second
	}
	return &RateLimiter{
		limit:     limit,
		window:    window,
		clients:   make(map[string]*clientWindow),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// Allow records a request from key and reports whether it is within the limit.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.Sub(rl.lastSweep) >= constants.RateLimitSweepInterval*time.Second {
		rl.sweepLocked(now)
	}

	cw, ok := rl.clients[key]
	if !ok || now.Sub(cw.start) >= rl.window {
		cw = &clientWindow{start: now}
		rl.clients[key] = cw
	}
	if cw.count >= rl.limit {
		return false
	}
	cw.count++
	return true
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	for key, cw := range rl.clients {
		if now.Sub(cw.start) >= rl.window {
			delete(rl.clients, key)
		}
	}
	rl.lastSweep = now
}

// RateLimitMiddleware rejects requests over the limit with 429, keyed by
// client IP.
func RateLimitMiddleware(rl *RateLimiter, logger *logrus.Logger, registry *metrics.Registry) mux.MiddlewareFunc {
	registry = metrics.OrGlobal(registry)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := httputil.GetClientIP(r)
			if !rl.Allow(clientIP) {
				endpoint := routeTemplate(r)
				registry.IncrementCounter(metrics.HTTPRateLimited, map[string]string{"endpoint": endpoint},
					"Requests rejected by the rate limiter")
				logger.WithFields(logrus.Fields{
					service.LogFieldRemoteIP: clientIP,
					service.LogFieldURL:      endpoint,
				}).Warn("Rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter(rl.window))
				httputil.WriteError(w, r, logger, apperrors.NewRateLimitError(rl.window.String()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	secs := int(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
