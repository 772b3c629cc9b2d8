package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, requests int) *IPRateLimiter {
	t.Helper()
	rl := NewIPRateLimiter(requests, time.Minute, CleanupOpts{
		TTL:      time.Minute,
		Interval: time.Minute,
	})
	t.Cleanup(rl.Cancel)
	return rl
}

func TestAllow(t *testing.T) {
	rl := newTestLimiter(t, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// Other addresses have their own bucket.
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestMiddlewareTooManyRequests(t *testing.T) {
	rl := newTestLimiter(t, 1)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mw := rl.Middleware(next)

	req := httptest.NewRequest(http.MethodGet, "/people", nil)
	req.RemoteAddr = "10.0.0.3:12345"

	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mw.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGetClientIPForwardedFor(t *testing.T) {
	rl := newTestLimiter(t, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.4:12345"
	assert.Equal(t, ipAddr("10.0.0.4"), rl.GetClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.4")
	assert.Equal(t, ipAddr("10.0.0.4"), rl.GetClientIP(req))
}
