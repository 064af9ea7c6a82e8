package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"gymaccess/internal/config"

	"github.com/stretchr/testify/assert"
)

func authTestHandler(cfg config.APIConfig) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return NewHTTPAuth(cfg).Wrap(ok)
}

func TestHTTPAuth(t *testing.T) {
	cfg := config.APIConfig{
		Enabled: true,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			HeaderExtra:  "x-api-extra",
			APIKeys: []config.APIClientKey{
				{Key: "portal-key", Extra: "portal-extra", Permissions: []string{permReadDirectory, permWriteBookings}},
				{Key: "admin-key", Extra: "admin-extra"},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 100, Burst: 200},
	}
	handler := authTestHandler(cfg)

	tests := []struct {
		name   string
		method string
		path   string
		key    string
		extra  string
		want   int
	}{
		{"Success", http.MethodGet, "/api/v1/states", "portal-key", "portal-extra", http.StatusOK},
		{"WritePermission", http.MethodPost, "/api/v1/attempts", "portal-key", "portal-extra", http.StatusOK},
		{"MissingHeaders", http.MethodGet, "/api/v1/states", "", "", http.StatusUnauthorized},
		{"InvalidKey", http.MethodGet, "/api/v1/states", "nope", "portal-extra", http.StatusUnauthorized},
		{"InvalidExtra", http.MethodGet, "/api/v1/states", "portal-key", "nope", http.StatusUnauthorized},
		{"PermissionDenied", http.MethodGet, "/api/v1/access-log/export", "portal-key", "portal-extra", http.StatusForbidden},
		{"ReadPermissionDenied", http.MethodGet, "/api/v1/attempts/abc", "portal-key", "portal-extra", http.StatusForbidden},
		{"AllowAll", http.MethodGet, "/api/v1/access-log/export", "admin-key", "admin-extra", http.StatusOK},
		{"ProbeSkipsAuth", http.MethodGet, "/healthz", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			if tt.key != "" {
				req.Header.Set("x-api-key", tt.key)
			}
			if tt.extra != "" {
				req.Header.Set("x-api-extra", tt.extra)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestHTTPAuthDisabledAPI(t *testing.T) {
	handler := authTestHandler(config.APIConfig{Enabled: false, Auth: config.APIAuthConfig{Enabled: true}})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/states", http.NoBody))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHTTPAuthRateLimit(t *testing.T) {
	handler := authTestHandler(config.APIConfig{
		Enabled:   true,
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 1, Burst: 1},
	})

	req := func() int {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/states", http.NoBody)
		r.Header.Set("x-api-key", "key1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, req())
	assert.Equal(t, http.StatusTooManyRequests, req())

	// Another client has its own bucket.
	r := httptest.NewRequest(http.MethodGet, "/api/v1/states", http.NoBody)
	r.Header.Set("x-api-key", "key2")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLimiterReusesBuckets(t *testing.T) {
	l := newRateLimiter(config.APIRateLimitConfig{RPS: 5})
	assert.True(t, l.enabled())
	assert.Same(t, l.getLimiter("a"), l.getLimiter("a"))
	assert.NotSame(t, l.getLimiter("a"), l.getLimiter("b"))
	assert.Equal(t, 5, l.getLimiter("a").Burst())
}
