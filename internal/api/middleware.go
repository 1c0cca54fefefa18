package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/orbitl/email-tracker/internal/pkg/httputil"
	"github.com/redis/go-redis/v9"
)

// RestrictOrigins limits dashboard endpoints to the configured domains.
// The tracking endpoints and the health check are exempt: pixels and click
// redirects are fetched from recipients' mail clients anywhere on the
// internet, and restricting them would break the product.
//
// An empty allow-list disables the restriction (local development).
func RestrictOrigins(allowed []string) func(http.Handler) http.Handler {
	matches := func(v string) bool {
		for _, d := range allowed {
			if d != "" && strings.Contains(v, d) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			referer := r.Referer()
			allowedOrigin := origin != "" && matches(origin)
			allowedHost := r.Host != "" && matches(r.Host)
			allowedReferer := referer == "" || matches(referer)

			if !allowedOrigin && !allowedHost && !allowedReferer {
				httputil.Forbidden(w, "This service is only accessible from the authorized domain")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isPublicPath(path string) bool {
	return path == "/pixel" || path == "/click" || path == "/health"
}

// RateLimit applies a fixed-window per-IP request cap to the tracking
// endpoints, backed by Redis. With a nil client or non-positive limit it is
// a no-op, and Redis errors fail open: losing the limiter must never lose
// an open or a click.
func RateLimit(client *redis.Client, perMinute int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if client == nil || perMinute <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ip := r.Header.Get("X-Forwarded-For")
			if idx := strings.Index(ip, ","); idx > 0 {
				ip = ip[:idx]
			}
			if ip = strings.TrimSpace(ip); ip == "" {
				ip = r.RemoteAddr
			}

			window := time.Now().Unix() / 60
			key := "rl:track:" + ip + ":" + strconv.FormatInt(window, 10)

			pipe := client.Pipeline()
			cnt := pipe.Incr(r.Context(), key)
			pipe.Expire(r.Context(), key, 2*time.Minute)
			if _, err := pipe.Exec(r.Context()); err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if cnt.Val() > int64(perMinute) {
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
