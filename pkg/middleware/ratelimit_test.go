package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/utafrali/storefront/pkg/logger"
)

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	l := NewRateLimiter(1, 2, logger.Discard())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/wishlist/by-email/a@b.com", nil)
		req.RemoteAddr = "203.0.113.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimiter_TracksClientsSeparately(t *testing.T) {
	l := NewRateLimiter(1, 1, logger.Discard())
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"203.0.113.1:1", "203.0.113.2:1"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, l.size())
}

func TestRateLimiter_CleanupEvictsIdleVisitors(t *testing.T) {
	l := NewRateLimiter(1, 1, logger.Discard())
	now := time.Now()
	l.now = func() time.Time { return now }

	l.allow("198.51.100.1")
	l.allow("198.51.100.2")

	now = now.Add(visitorTTL / 2)
	l.allow("198.51.100.2")

	now = now.Add(visitorTTL/2 + time.Second)
	l.cleanup()

	assert.Equal(t, 1, l.size())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		realIP string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.9, 10.0.0.1", "", "10.0.0.2:80", "203.0.113.9"},
		{"invalid forwarded falls back", "garbage", "198.51.100.4", "10.0.0.2:80", "198.51.100.4"},
		{"remote addr", "", "", "192.0.2.1:4321", "192.0.2.1"},
		{"remote without port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
