package proxy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/ratelimit"
)

const testOrigin = "chrome-extension://abcdefghijklmnop"

func newTestServer(t *testing.T, upstreamURL string, limit int) *Server {
	t.Helper()
	cfg := config.ProxyConfig{
		Listen:              ":0",
		UpstreamURL:         upstreamURL,
		APIKey:              "proxy-held-key",
		AllowedOriginPrefix: "chrome-extension://",
		RateLimit:           config.RateLimitConfig{Requests: limit, Window: time.Minute},
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), limit, time.Minute, zap.NewNop())
	return NewServer(zap.NewNop(), cfg, limiter)
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, s *Server, method, origin, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, "/execute", reader)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestPreflight_ValidOrigin(t *testing.T) {
	s := newTestServer(t, "http://unused", 10)

	rec := doRequest(t, s, http.MethodOptions, testOrigin, "", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", rec.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "86400", rec.Header().Get("Access-Control-Max-Age"))
}

func TestPreflight_InvalidOrigin(t *testing.T) {
	s := newTestServer(t, "http://unused", 10)

	rec := doRequest(t, s, http.MethodOptions, "https://evil.example.com", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, s, http.MethodOptions, "", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExecute_InvalidOriginRejected(t *testing.T) {
	s := newTestServer(t, "http://unused", 10)

	rec := doRequest(t, s, http.MethodPost, "https://evil.example.com", `{}`, nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid origin", body["error"])
}

func TestExecute_MethodGate(t *testing.T) {
	s := newTestServer(t, "http://unused", 10)

	rec := doRequest(t, s, http.MethodGet, testOrigin, "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	// Method rejections still carry CORS headers so the client can read them.
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExecute_ForwardsToUpstream(t *testing.T) {
	var gotAuth, gotBody string
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"run":{"stdout":"3\n"}}`))
	})
	s := newTestServer(t, upstream.URL, 10)

	payload := `{"language":"python","version":"3.12.0","files":[{"content":"print(1+2)"}]}`
	rec := doRequest(t, s, http.MethodPost, testOrigin, payload, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"run":{"stdout":"3\n"}}`, rec.Body.String())
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "proxy-held-key", gotAuth)
	assert.JSONEq(t, payload, gotBody)
}

func TestExecute_RelaysUpstreamStatus(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"language not supported"}`))
	})
	s := newTestServer(t, upstream.URL, 10)

	rec := doRequest(t, s, http.MethodPost, testOrigin, `{"language":"cobol"}`, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"language not supported"}`, rec.Body.String())
}

func TestExecute_RateLimitWindow(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	s := newTestServer(t, upstream.URL, 10)

	headers := map[string]string{"CF-Connecting-IP": "203.0.113.7"}
	for i := 0; i < 10; i++ {
		rec := doRequest(t, s, http.MethodPost, testOrigin, `{}`, headers)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be forwarded", i+1)
	}

	rec := doRequest(t, s, http.MethodPost, testOrigin, `{}`, headers)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	retryAfter, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)

	var body struct {
		Error      string `json:"error"`
		RetryAfter int    `json:"retryAfter"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, retryAfter, body.RetryAfter)
}

func TestExecute_RateLimitKeysAreIndependent(t *testing.T) {
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	s := newTestServer(t, upstream.URL, 1)

	rec := doRequest(t, s, http.MethodPost, testOrigin, `{}`, map[string]string{"CF-Connecting-IP": "203.0.113.1"})
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doRequest(t, s, http.MethodPost, testOrigin, `{}`, map[string]string{"CF-Connecting-IP": "203.0.113.1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doRequest(t, s, http.MethodPost, testOrigin, `{}`, map[string]string{"CF-Connecting-IP": "203.0.113.2"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExecute_InvalidJSONBody(t *testing.T) {
	s := newTestServer(t, "http://unused", 10)

	rec := doRequest(t, s, http.MethodPost, testOrigin, "not json at all", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body["error"])
}

func TestExecute_UpstreamUnreachable(t *testing.T) {
	// A server that is immediately closed leaves a port nothing listens on.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()
	s := newTestServer(t, dead.URL, 10)

	rec := doRequest(t, s, http.MethodPost, testOrigin, `{}`, nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, testOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestClientKey(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{
			name:    "cf connecting ip preferred",
			headers: map[string]string{"CF-Connecting-IP": "203.0.113.7", "X-Forwarded-For": "10.0.0.1"},
			want:    "203.0.113.7",
		},
		{
			name:    "x forwarded for fallback takes first hop",
			headers: map[string]string{"X-Forwarded-For": "10.0.0.1, 172.16.0.1"},
			want:    "10.0.0.1",
		},
		{
			name:    "no headers falls back to sentinel",
			headers: nil,
			want:    "0.0.0.0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/execute", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientKey(req))
		})
	}
}

func TestExecute_ElevenRapidRequests(t *testing.T) {
	var forwarded int
	upstream := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		forwarded++
		_, _ = w.Write([]byte(fmt.Sprintf(`{"n":%d}`, forwarded)))
	})
	s := newTestServer(t, upstream.URL, 10)

	codes := make([]int, 0, 11)
	for i := 0; i < 11; i++ {
		rec := doRequest(t, s, http.MethodPost, testOrigin, `{}`, nil)
		codes = append(codes, rec.Code)
	}

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, codes[i])
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[10])
	assert.Equal(t, 10, forwarded)
}
