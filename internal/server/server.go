// Package server exposes a snapshot registry over HTTP.
//
// Training jobs post metric values frame by frame; the dashboard frame, the
// registry contents and an interactive report are served from the same
// registry:
//
//	POST /api/graphs/{graph}/series/{series}/frames/{frame}   {"value": 0.42}
//	GET  /api/graphs
//	GET  /api/graphs/{graph}
//	GET  /frame.png?frame=n
//	GET  /report
//
// Errors are returned as {"error": "...", "code": "..."} with a status derived
// from the error code.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/gqnviz/pkg/cache"
	"github.com/matzehuels/gqnviz/pkg/config"
	"github.com/matzehuels/gqnviz/pkg/errors"
	"github.com/matzehuels/gqnviz/pkg/observability"
	"github.com/matzehuels/gqnviz/pkg/report"
	"github.com/matzehuels/gqnviz/pkg/snapshot"
)

const (
	maxBodyBytes    = 1 << 16
	keyScope        = "dashboard:"
	shutdownTimeout = 5 * time.Second
)

// Server serves one registry. Frame renders are serialized; writes and reads
// of the registry are not.
type Server struct {
	cfg    config.Config
	reg    *snapshot.Registry
	layout snapshot.Layout
	cache  cache.Cache
	keyer  cache.Keyer
	logger *log.Logger

	renderMu sync.Mutex
}

// New returns a server over reg drawn with the figure and layout of cfg.
// A nil cache disables frame caching.
func New(cfg config.Config, reg *snapshot.Registry, c cache.Cache, logger *log.Logger) (*Server, error) {
	layout, err := cfg.SnapshotLayout()
	if err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, errors.New(errors.ErrCodeInvalidArgument, "server needs a registry")
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Server{
		cfg:    cfg,
		reg:    reg,
		layout: layout,
		cache:  cache.Instrument(c, "frame"),
		keyer:  cache.NewScopedKeyer(nil, keyScope),
		logger: logger,
	}, nil
}

// Handler returns the router of every endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Route("/api/graphs", func(r chi.Router) {
		r.Get("/", s.handleGraphs)
		r.Get("/{graph}", s.handleGraph)
		r.Post("/{graph}/series/{series}/frames/{frame}", s.handleWrite)
	})
	r.Get("/frame.png", s.handleFrame)
	r.Get("/report", s.handleReport)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, string(errors.ErrCodeNotFound), "no route for "+r.URL.Path)
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving dashboard", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)

		d := time.Since(start)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.Server().OnRequest(r.Context(), r.Method, route, lrw.statusCode, d)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", lrw.statusCode, "duration", d)
	})
}

type writeRequest struct {
	Value *float64 `json:"value"`
}

func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	frame, err := strconv.Atoi(chi.URLParam(r, "frame"))
	if err != nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidArgument, "frame %q is not an integer", chi.URLParam(r, "frame")))
		return
	}
	var req writeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInvalidArgument, err, "decode body"))
		return
	}
	if req.Value == nil {
		s.writeError(w, errors.New(errors.ErrCodeInvalidArgument, "body needs a value"))
		return
	}
	if err := s.reg.Write(chi.URLParam(r, "graph"), chi.URLParam(r, "series"), frame, *req.Value); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	graphs := s.reg.Graphs()
	out := make([]GraphJSON, len(graphs))
	for i, g := range graphs {
		out[i] = toJSON(g)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.reg.Graph(chi.URLParam(r, "graph"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJSON(g))
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	frame := 0
	if q := r.URL.Query().Get("frame"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidArgument, "frame %q is not an integer", q))
			return
		}
		frame = n
	}
	data, err := s.frame(r.Context(), frame)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

// frame returns the PNG of the dashboard at frame, from the cache when the
// registry has not changed since it was drawn.
func (s *Server) frame(ctx context.Context, frame int) ([]byte, error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	graphs := s.reg.Graphs()
	state := make([]GraphJSON, len(graphs))
	for i, g := range graphs {
		state[i] = toJSON(g)
	}
	hash, err := cache.HashJSON(struct {
		Graphs []GraphJSON
		Figure config.FigureConfig
		Layout config.LayoutConfig
	}{state, s.cfg.Figure, s.cfg.Layout})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "hash registry state")
	}
	key := s.keyer.FrameKey(hash, frame, cache.FrameKeyOpts{Format: "png", DPI: float64(s.cfg.Figure.DPI)})

	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("frame cache read failed", "error", err)
	} else if ok {
		return data, nil
	}

	fig := s.cfg.NewFigure()
	snap := snapshot.New(s.reg, s.layout, s.cfg.SnapshotOptions(s.logger)...)
	if err := snapshot.Render(ctx, snap, fig, frame); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fig.Image(s.cfg.Figure.DPI), imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode frame %d", frame)
	}
	if err := s.cache.Set(ctx, key, buf.Bytes(), cache.TTLFrame); err != nil {
		s.logger.Warn("frame cache write failed", "error", err)
	}
	return buf.Bytes(), nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := report.Write(&buf, s.reg, report.Options{Title: s.cfg.Figure.Title, UnifyY: s.cfg.Figure.UnifyY})
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeInternal, err, "report"))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSONError(w, status, string(code), errors.UserMessage(err))
}

// StatusCode maps an error to the HTTP status reported for it.
func StatusCode(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidArgument, errors.ErrCodeOutOfRange, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeNotImplemented:
		return http.StatusNotImplemented
	case errors.ErrCodeInvalidConfig:
		return http.StatusUnprocessableEntity
	}
	if errors.IsCanceled(err) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}
