package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// EndpointLimit is a per-endpoint budget, keyed by client IP. The map
// key is "METHOD /path".
type EndpointLimit struct {
	Capacity   int
	RefillRate float64
}

// Config holds the middleware limits. The global limit is a single
// shared bucket, the per-IP limit one bucket per client address, and
// EndpointLimits tighten specific routes such as login and password
// reset against brute force.
type Config struct {
	GlobalEnabled    bool
	GlobalCapacity   int
	GlobalRefillRate float64

	PerIPEnabled    bool
	PerIPCapacity   int
	PerIPRefillRate float64

	EndpointLimits map[string]EndpointLimit

	// BucketTTL is how long idle per-key buckets are kept in memory.
	BucketTTL time.Duration
}

// DefaultConfig returns the baseline limits. Endpoint limits are left
// to the caller since they depend on the mounted routes.
func DefaultConfig() *Config {
	return &Config{
		GlobalEnabled:    true,
		GlobalCapacity:   1000,
		GlobalRefillRate: 1000.0 / 60.0,

		PerIPEnabled:    true,
		PerIPCapacity:   100,
		PerIPRefillRate: 100.0 / 60.0,

		BucketTTL:      1 * time.Hour,
		EndpointLimits: make(map[string]EndpointLimit),
	}
}

// Middleware applies the configured limits to every request.
type Middleware struct {
	config    *Config
	global    *Limiter
	perIP     *Limiter
	endpoints map[string]*Limiter
}

func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:    config,
		endpoints: make(map[string]*Limiter),
	}
	if config.GlobalEnabled {
		m.global = NewLimiter(config.GlobalCapacity, config.GlobalRefillRate, 0)
	}
	if config.PerIPEnabled {
		m.perIP = NewLimiter(config.PerIPCapacity, config.PerIPRefillRate, config.BucketTTL)
	}
	for endpoint, limit := range config.EndpointLimits {
		m.endpoints[endpoint] = NewLimiter(limit.Capacity, limit.RefillRate, config.BucketTTL)
	}
	return m
}

func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.global != nil && !m.global.Allow("global") {
			m.reject(w, r, "global")
			return
		}

		ip := clientIP(r)
		if m.perIP != nil && ip != "" && !m.perIP.Allow(ip) {
			m.reject(w, r, "ip")
			return
		}

		endpoint := r.Method + " " + r.URL.Path
		if limiter, ok := m.endpoints[endpoint]; ok && !limiter.Allow(ip) {
			m.reject(w, r, "endpoint")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) reject(w http.ResponseWriter, r *http.Request, limit string) {
	slog.Warn("Rate limit exceeded",
		"limit", limit,
		"ip", clientIP(r),
		"method", r.Method,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"code":"RATE_LIMITED","message":"too many requests, try again later"}`))
}

// clientIP returns the client address, honoring proxy headers. When
// chi's RealIP middleware runs first, RemoteAddr is already rewritten
// and the header checks are a no-op.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
