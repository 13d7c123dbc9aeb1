package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"taskBot/internal/command"
	"taskBot/internal/cooldown"
	"taskBot/internal/middleware"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	replies []command.Reply
}

func (r *recorder) Send(ctx context.Context, reply command.Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

func (r *recorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.replies))
	for _, reply := range r.replies {
		out = append(out, reply.Text)
	}
	return out
}

type stubLimiter struct {
	allowed    bool
	retryAfter time.Duration
	err        error
}

func (s stubLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return s.allowed, s.retryAfter, s.err
}

func newContext(ownerID int64, rec *recorder) *command.Context {
	return command.NewContext(context.Background(), ownerID, "add", "milk", rec)
}

func TestRequestID(t *testing.T) {
	rec := &recorder{}
	var seen string
	h := middleware.RequestID(func(c *command.Context) { seen = c.RequestID })

	h(newContext(1, rec))
	assert.NotEmpty(t, seen)

	c := newContext(1, rec)
	c.RequestID = "fixed"
	h(c)
	assert.Equal(t, "fixed", seen)
}

func TestRecover(t *testing.T) {
	rec := &recorder{}
	h := command.Chain(func(c *command.Context) {
		panic("boom")
	}, middleware.Recover)

	assert.NotPanics(t, func() { h(newContext(1, rec)) })
	assert.Equal(t, []string{command.MsgUnexpectedError}, rec.texts())
}

func TestCooldown(t *testing.T) {
	tests := []struct {
		name       string
		limiter    stubLimiter
		wantCalled bool
		wantReply  []string
	}{
		{
			name:       "allowed",
			limiter:    stubLimiter{allowed: true},
			wantCalled: true,
			wantReply:  []string{},
		},
		{
			name:       "rejected rounds up",
			limiter:    stubLimiter{allowed: false, retryAfter: 2100 * time.Millisecond},
			wantCalled: false,
			wantReply:  []string{"⏱️ Slow down! Try again in 3 seconds."},
		},
		{
			name:       "rejected never reports zero",
			limiter:    stubLimiter{allowed: false, retryAfter: 0},
			wantCalled: false,
			wantReply:  []string{"⏱️ Slow down! Try again in 1 seconds."},
		},
		{
			name:       "limiter failure lets the call through",
			limiter:    stubLimiter{err: errors.New("redis down")},
			wantCalled: true,
			wantReply:  []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			called := false
			h := command.Chain(func(c *command.Context) { called = true }, middleware.Cooldown(tt.limiter))

			h(newContext(7, rec))

			assert.Equal(t, tt.wantCalled, called)
			assert.Equal(t, tt.wantReply, rec.texts())
		})
	}
}

func TestCooldown_PerUserWithMemoryLimiter(t *testing.T) {
	limiter := cooldown.NewMemory(time.Minute)
	calls := map[int64]int{}
	h := command.Chain(func(c *command.Context) { calls[c.OwnerID]++ }, middleware.Cooldown(limiter))

	rec := &recorder{}
	h(newContext(1, rec))
	h(newContext(1, rec))
	h(newContext(2, rec))

	assert.Equal(t, 1, calls[1])
	assert.Equal(t, 1, calls[2])
	require.Len(t, rec.texts(), 1)
	assert.Contains(t, rec.texts()[0], "Try again in")
}

func TestHTTPRequestID(t *testing.T) {
	var seen string
	h := middleware.HTTPRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = middleware.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", rr.Header().Get("X-Request-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestHTTPLogging_PassesStatusThrough(t *testing.T) {
	h := middleware.HTTPLogging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", rr.Body.String())
}

func TestRateLimit(t *testing.T) {
	h := middleware.RateLimit(2)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := []int{}
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/messages", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code, "other clients are unaffected")
}
