// Package server exposes the resolver over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simplesapien/redirect-resolver/packages/domain"
	"github.com/simplesapien/redirect-resolver/packages/metrics"
	"github.com/simplesapien/redirect-resolver/packages/resolver"
	"github.com/simplesapien/redirect-resolver/packages/urlutil"
)

const maxBatchBodyBytes = 1 << 20

// Resolver is the part of worker.Pool the server needs.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*domain.Resolution, error)
	ResolveAll(ctx context.Context, urls []string) []domain.BatchItem
}

type Options struct {
	// TrimInput reduces inputs to scheme://host/ before resolving.
	TrimInput    bool
	BatchMaxURLs int
}

type Server struct {
	resolver Resolver
	opts     Options
	logger   *slog.Logger
	mux      *http.ServeMux
}

func New(r Resolver, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchMaxURLs <= 0 {
		opts.BatchMaxURLs = 50
	}
	s := &Server{
		resolver: r,
		opts:     opts,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	s.mux.ServeHTTP(rec, r)

	route := "unmatched"
	if _, pattern := s.mux.Handler(r); pattern != "" {
		route = pattern
	}
	metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	s.logger.Info("Request handled",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/{$}", s.handleHealth)
	s.mux.HandleFunc("/redirect", s.handleRedirect)
	s.mux.HandleFunc("/redirect/batch", s.handleBatch)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	s.logger.Debug("Health check requested")
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Message: "Redirect resolver service",
		Usage:   usage + " to resolve redirects",
	})
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rawURL := r.URL.Query().Get("url")
	logger := s.logger.With("request_id", w.Header().Get("X-Request-ID"), "url", rawURL)
	logger.Info("Redirect resolver called")

	if rawURL == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing url parameter", Usage: usage})
		return
	}
	if _, err := resolver.ParseAbsolute(rawURL); err != nil {
		logger.Warn("Rejected invalid URL", "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid URL format", Message: err.Error()})
		return
	}

	target := s.prepare(rawURL)
	if target != rawURL {
		logger.Info("Trimmed URL", "trimmed_url", target)
	}

	res, err := s.resolver.Resolve(r.Context(), target)
	if err != nil {
		logger.Error("Error processing URL", "error", err)
		s.writeResolveError(w, err)
		return
	}
	logger.Info("Final resolved URL", "final_url", res.FinalURL, "hops", len(res.Hops))

	hops := res.Hops
	if hops == nil {
		hops = []domain.Hop{}
	}
	writeJSON(w, http.StatusOK, redirectResponse{
		OriginalURL: rawURL,
		TrimmedURL:  target,
		FinalURL:    res.FinalURL,
		Redirected:  target != res.FinalURL,
		Hops:        hops,
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req batchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	switch {
	case len(req.URLs) == 0:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No urls supplied"})
		return
	case len(req.URLs) > s.opts.BatchMaxURLs:
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "Too many urls",
			Message: fmt.Sprintf("at most %d urls per batch", s.opts.BatchMaxURLs),
		})
		return
	}

	targets := make([]string, len(req.URLs))
	for i, u := range req.URLs {
		targets[i] = s.prepare(u)
	}
	items := s.resolver.ResolveAll(r.Context(), targets)
	for i := range items {
		items[i].OriginalURL = req.URLs[i]
		if targets[i] != req.URLs[i] {
			items[i].TrimmedURL = targets[i]
		}
	}
	s.logger.Info("Batch resolved", "request_id", w.Header().Get("X-Request-ID"), "count", len(items))
	writeJSON(w, http.StatusOK, batchResponse{Results: items})
}

// prepare applies input trimming. Unparsable input is passed through so the
// resolver reports it as invalid.
func (s *Server) prepare(rawURL string) string {
	if !s.opts.TrimInput {
		return rawURL
	}
	return urlutil.TrimToBaseDomain(rawURL)
}

func (s *Server) writeResolveError(w http.ResponseWriter, err error) {
	var re *resolver.ResolutionError
	if errors.As(err, &re) && re.Kind == resolver.InvalidURL {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid URL format", Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to resolve redirect", Message: err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
