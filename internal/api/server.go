package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/link-unfurler/internal/metrics"
	"github.com/JakeFAU/link-unfurler/internal/unfurl"
)

const maxRequestBody = 64 << 10

// Previewer resolves a URL into a preview under a transfer policy.
type Previewer interface {
	PreviewFromURL(ctx context.Context, rawURL string, policy unfurl.TransferPolicy) (unfurl.Result, error)
}

// Admitter decides whether a preview of rawURL may start now.
type Admitter interface {
	Allow(rawURL string) bool
}

// PolicyFunc returns the policy for the next request. It is called once per request.
type PolicyFunc func() unfurl.TransferPolicy

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Limiter is optional; nil admits every request.
	Limiter Admitter
}

// Server wires HTTP handlers to the preview pipeline.
type Server struct {
	router    chi.Router
	previewer Previewer
	policy    PolicyFunc
	limiter   Admitter
	logger    *zap.Logger
	draining  atomic.Bool
}

type previewRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(previewer Previewer, policy PolicyFunc, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	s := &Server{
		previewer: previewer,
		policy:    policy,
		limiter:   opts.Limiter,
		logger:    logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(opts.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Post("/api/preview", s.preview)

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Drain marks the server as shutting down so readiness checks fail.
func (s *Server) Drain() {
	s.draining.Store(true)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.draining.Load() {
		writeJSON(s.logger, w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	target, err := ValidateTarget(req.URL)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	if s.limiter != nil && !s.limiter.Allow(target) {
		writeError(s.logger, w, http.StatusTooManyRequests, "Too many previews for this host; retry later")
		return
	}

	result, err := s.previewer.PreviewFromURL(r.Context(), target, s.policy())
	if err != nil {
		status, detail := statusFor(err)
		s.logger.Info("preview failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("url", target),
			zap.Int("status", status),
			zap.Error(err),
		)
		writeError(s.logger, w, status, detail)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, result)
}

// ValidateTarget accepts absolute http(s) URLs with a host.
func ValidateTarget(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("url required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", errors.New("url must use http or https")
	}
	if u.Hostname() == "" {
		return "", errors.New("url must include a host")
	}
	return u.String(), nil
}

// statusFor maps a pipeline error onto the response status and detail.
func statusFor(err error) (int, string) {
	var fe *unfurl.FetchError
	if !errors.As(err, &fe) {
		return http.StatusBadRequest, "Failed to fetch or parse the URL"
	}
	switch fe.Kind {
	case unfurl.KindTimeout:
		return http.StatusGatewayTimeout, "Upstream fetch timed out"
	case unfurl.KindUpstreamStatus:
		return http.StatusBadRequest, fmt.Sprintf("Upstream returned %d", fe.StatusCode)
	default:
		return http.StatusBadRequest, capitalize(fe.Error())
	}
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, detail string) {
	writeJSON(logger, w, status, errorResponse{Detail: detail})
}
