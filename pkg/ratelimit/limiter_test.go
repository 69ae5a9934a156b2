package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterBurstThenDeny(t *testing.T) {
	l := NewLimiter(3, 1.0, 0)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("key1"), "request %d should pass", i+1)
	}
	assert.False(t, l.Allow("key1"))

	// Separate key, separate bucket.
	assert.True(t, l.Allow("key2"))
}

func TestLimiterRefill(t *testing.T) {
	l := NewLimiter(1, 10.0, 0)

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, l.Allow("k"))
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(1, 0.1, 0)

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	l.Reset("k")
	assert.True(t, l.Allow("k"))
}

func TestLimiterSweepsIdleBuckets(t *testing.T) {
	l := NewLimiter(5, 1.0, 100*time.Millisecond)

	l.Allow("k")
	require.Equal(t, 1, l.Len())

	assert.Eventually(t, func() bool {
		return l.Len() == 0
	}, time.Second, 20*time.Millisecond)
}

func TestLimiterConcurrentAccess(t *testing.T) {
	l := NewLimiter(1000, 1000.0, 0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Allow("shared")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, l.Len())
}

func TestMiddlewareEndpointLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalEnabled = false
	cfg.PerIPEnabled = false
	cfg.EndpointLimits["POST /auth/login"] = EndpointLimit{Capacity: 2, RefillRate: 0.01}

	handler := NewMiddleware(cfg).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("/auth/login"))
	assert.Equal(t, http.StatusOK, do("/auth/login"))
	assert.Equal(t, http.StatusTooManyRequests, do("/auth/login"))

	// Other endpoints are untouched by the endpoint budget.
	assert.Equal(t, http.StatusOK, do("/auth/register"))
}

func TestMiddlewarePerIPIsolation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GlobalEnabled = false
	cfg.PerIPCapacity = 1
	cfg.PerIPRefillRate = 0.01

	handler := NewMiddleware(cfg).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}
