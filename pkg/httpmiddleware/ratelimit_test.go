package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func limited(t *testing.T, max int, keyFunc func(*http.Request) string) http.Handler {
	t.Helper()
	return RateLimit(RateLimitConfig{
		Max:     max,
		Window:  time.Minute,
		KeyFunc: keyFunc,
	})(okHandler())
}

func get(handler http.Handler, remoteAddr string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitUnderLimit(t *testing.T) {
	handler := limited(t, 5, nil)

	for i := range 5 {
		w := get(handler, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimitOverLimit(t *testing.T) {
	handler := limited(t, 2, nil)

	for range 2 {
		require.Equal(t, http.StatusOK, get(handler, "10.0.0.1:9999", nil).Code)
	}

	w := get(handler, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate_limited", body.Error.Code)
	assert.Equal(t, "rate limit exceeded", body.Error.Message)
}

func TestRateLimitPerKey(t *testing.T) {
	handler := limited(t, 1, nil)

	assert.Equal(t, http.StatusOK, get(handler, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, get(handler, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "10.0.0.1:5678", nil).Code)
}

func TestRateLimitCustomKeyFunc(t *testing.T) {
	handler := limited(t, 1, func(r *http.Request) string {
		return r.Header.Get("X-User-ID")
	})

	assert.Equal(t, http.StatusOK, get(handler, "1.1.1.1:1", map[string]string{"X-User-ID": "7"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "2.2.2.2:2", map[string]string{"X-User-ID": "7"}).Code)
	assert.Equal(t, http.StatusOK, get(handler, "1.1.1.1:1", map[string]string{"X-User-ID": "8"}).Code)
}

func TestRateLimitXForwardedFor(t *testing.T) {
	handler := limited(t, 1, nil)
	xff := map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}

	assert.Equal(t, http.StatusOK, get(handler, "192.168.1.1:4444", xff).Code)
	// Same forwarded client behind a different proxy address is one key.
	assert.Equal(t, http.StatusTooManyRequests, get(handler, "192.168.1.2:5555", xff).Code)
}
