// Package proxy implements the forwarding service that sits between the
// editor extension and the Piston execution API. It authenticates nothing;
// it gates on request origin, applies a per-client fixed-window rate limit,
// and attaches the server-held API key so the key never ships to clients.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/network"
	"github.com/kimday0326/boj-editor/internal/ratelimit"
)

// fallbackClientKey is used when no client-address header is present. All
// such requests share one rate-limit bucket, which is the safe direction to
// fail in.
const fallbackClientKey = "0.0.0.0"

// maxBodyBytes caps the execution payload we accept from a client.
const maxBodyBytes = 1 << 20

// preflightMaxAge is how long, in seconds, browsers may cache a preflight
// response.
const preflightMaxAge = "86400"

// Server is the rate-limited forwarding proxy.
type Server struct {
	logger   *zap.Logger
	cfg      config.ProxyConfig
	limiter  *ratelimit.Limiter
	upstream *network.Client

	now func() time.Time
}

// NewServer wires a proxy server from its configuration and limiter.
func NewServer(logger *zap.Logger, cfg config.ProxyConfig, limiter *ratelimit.Limiter) *Server {
	httpCfg := network.NewDefaultClientConfig()
	httpCfg.Logger = logger
	return &Server{
		logger:   logger.Named("proxy"),
		cfg:      cfg,
		limiter:  limiter,
		upstream: network.NewClient(httpCfg),
		now:      time.Now,
	}
}

// Router builds the HTTP surface. The execute route handles every method
// itself so that method rejections still carry CORS headers.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/execute", s.handleExecute)
	return r
}

// ListenAndServe runs the proxy until ctx is cancelled, then drains with a
// short grace period.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Proxy listening", zap.String("addr", s.cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		s.handlePreflight(w, r)
		return
	}

	origin := r.Header.Get("Origin")
	if !s.validOrigin(origin) {
		// No CORS headers here: the caller is not one of ours.
		writeJSON(w, http.StatusForbidden, map[string]any{"error": "Invalid origin"})
		return
	}
	s.applyCORS(w, origin)

	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
		return
	}

	key := clientKey(r)
	res, err := s.limiter.Allow(r.Context(), key)
	if err != nil {
		s.logger.Error("Rate limit store failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal server error",
			"message": "rate limit store unavailable",
		})
		return
	}
	if !res.Allowed {
		retryAfter := res.RetryAfter(s.now())
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":      "Rate limit exceeded",
			"retryAfter": retryAfter,
		})
		return
	}

	s.forward(w, r)
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if !s.validOrigin(origin) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	s.applyCORS(w, origin)
	w.WriteHeader(http.StatusNoContent)
}

// forward relays the execution request to the upstream API verbatim, adding
// the server-held credential, and relays the upstream's status and JSON body
// back unchanged.
func (s *Server) forward(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.internalError(w, "read request body", err)
		return
	}
	if !json.Valid(body) {
		s.internalError(w, "parse request body", errors.New("body is not valid JSON"))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.UpstreamURL, strings.NewReader(string(body)))
	if err != nil {
		s.internalError(w, "build upstream request", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", s.cfg.APIKey)
	}

	resp, err := s.upstream.Do(req)
	if err != nil {
		s.internalError(w, "upstream request", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		s.internalError(w, "read upstream response", err)
		return
	}

	s.logger.Debug("Forwarded execution request",
		zap.String("client", clientKey(r)),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

func (s *Server) internalError(w http.ResponseWriter, what string, err error) {
	s.logger.Error("Proxy error", zap.String("op", what), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}

func (s *Server) validOrigin(origin string) bool {
	return origin != "" && strings.HasPrefix(origin, s.cfg.AllowedOriginPrefix)
}

func (s *Server) applyCORS(w http.ResponseWriter, origin string) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	h.Set("Access-Control-Max-Age", preflightMaxAge)
}

// clientKey derives the rate-limit key from the best available
// client-address header.
func clientKey(r *http.Request) string {
	if ip := firstForwarded(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if ip := firstForwarded(r.Header.Get("X-Forwarded-For")); ip != "" {
		return ip
	}
	return fallbackClientKey
}

func firstForwarded(header string) string {
	first, _, _ := strings.Cut(header, ",")
	return strings.TrimSpace(first)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
