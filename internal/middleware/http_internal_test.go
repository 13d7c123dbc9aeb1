package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPLimiter_PrunesExpiredClients(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := newIPLimiter(10)
	limiter.now = func() time.Time { return now }

	for i := 0; i < pruneEvery-1; i++ {
		ok, _, _, _ := limiter.allow(fmt.Sprintf("10.0.%d.%d", i/256, i%256))
		require.True(t, ok)
	}
	assert.Equal(t, pruneEvery-1, limiter.len())

	now = now.Add(2 * time.Minute)
	ok, _, _, _ := limiter.allow("192.168.1.1")
	require.True(t, ok)

	assert.Equal(t, 1, limiter.len())
}

func TestIPLimiter_WindowResets(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := newIPLimiter(1)
	limiter.now = func() time.Time { return now }

	ok, remaining, _, _ := limiter.allow("10.0.0.1")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, _, wait := limiter.allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, wait)

	now = now.Add(time.Minute + time.Second)
	ok, _, _, _ = limiter.allow("10.0.0.1")
	assert.True(t, ok)
}

func TestRateLimit_RetryAfterHeader(t *testing.T) {
	now := time.Unix(0, 0)
	limiter := newIPLimiter(1)
	limiter.now = func() time.Time { return now }

	h := rateLimit(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, want, rr.Code)
		if want == http.StatusTooManyRequests {
			assert.Equal(t, "60", rr.Header().Get("Retry-After"))
		}
	}
}
