package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/Ashifo7/StudyBuddy/internal/metrics"
	"github.com/Ashifo7/StudyBuddy/internal/store"
)

const rateLimitWindow = time.Minute

// limits per window, by request category.
var categoryLimits = map[string]int64{
	"read":  120,
	"write": 30,
}

// RateLimiter applies fixed-window per-IP rate limits backed by Redis.
// With no Redis configured it fails open.
type RateLimiter struct {
	redis     *store.RedisStore
	logger    zerolog.Logger
	whitelist []*net.IPNet
}

// NewRateLimiter creates a rate limiter. Whitelist entries may be single
// IPs or CIDRs; unparsable entries are logged and skipped.
func NewRateLimiter(redis *store.RedisStore, logger zerolog.Logger, whitelist []string) *RateLimiter {
	rl := &RateLimiter{redis: redis, logger: logger}

	for _, entry := range whitelist {
		if _, network, err := net.ParseCIDR(entry); err == nil {
			rl.whitelist = append(rl.whitelist, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			rl.whitelist = append(rl.whitelist, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		logger.Warn().Str("entry", entry).Msg("invalid rate limit whitelist entry")
	}

	return rl
}

// Middleware enforces the rate limit for the request's category.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil || rl.isWhitelisted(r.RemoteAddr) {
			next.ServeHTTP(w, r)
			return
		}

		category := "write"
		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			category = "read"
		}
		limit := categoryLimits[category]

		ip := clientIP(r.RemoteAddr)
		count, err := rl.redis.IncrementRateLimit(r.Context(), ip, category, rateLimitWindow)
		if err != nil {
			// Redis trouble must not take the API down
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > limit {
			metrics.RateLimitHits.WithLabelValues(category).Inc()

			retryAfter := rateLimitWindow
			if ttl, err := rl.redis.RateLimitTTL(r.Context(), ip, category); err == nil && ttl > 0 {
				retryAfter = ttl
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) isWhitelisted(remoteAddr string) bool {
	ip := net.ParseIP(clientIP(remoteAddr))
	if ip == nil {
		return false
	}
	for _, network := range rl.whitelist {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func clientIP(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}
