// Package server exposes expression evaluation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/history"
	"github.com/zephyrtronium/calculator/internal/telemetry"
)

// DefaultMaxBodyBytes is the request size limit used without WithMaxBodyBytes.
const DefaultMaxBodyBytes = 1 << 16

// Server is the HTTP evaluation server.
type Server struct {
	mux       *http.ServeMux
	server    *http.Server
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	history   *history.Store
	syms      *calculator.SymbolTable
	parse     []calculator.ParseOption
	display   func(float64) string
	maxBody   int64
	startTime time.Time
}

// ServerOption configures the Server.
type ServerOption func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics records evaluation metrics and serves them on GET /metrics.
func WithMetrics(m *telemetry.Metrics) ServerOption {
	return func(s *Server) { s.metrics = m }
}

// WithHistory records every evaluation to a history store.
func WithHistory(h *history.Store) ServerOption {
	return func(s *Server) { s.history = h }
}

// WithSymbols sets the symbol table expressions are compiled against. The
// table must not be modified while the server is running.
func WithSymbols(t *calculator.SymbolTable) ServerOption {
	return func(s *Server) { s.syms = t }
}

// WithParseOptions sets the options used to compile expressions.
func WithParseOptions(opts ...calculator.ParseOption) ServerOption {
	return func(s *Server) { s.parse = opts }
}

// WithDisplay sets the function formatting results for the display field.
func WithDisplay(f func(float64) string) ServerOption {
	return func(s *Server) { s.display = f }
}

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) { s.maxBody = n }
}

// NewServer creates a new evaluation server.
func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		logger: slog.Default(),
		syms:   calculator.DefaultSymbols(),
		display: func(x float64) string {
			return calculator.Format(x, calculator.MaxDigits, calculator.RoundingDigits)
		},
		maxBody:   DefaultMaxBodyBytes,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /v1/eval", s.handleEval)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	s.mux = mux
	return s
}

// Handler returns the HTTP handler for use with httptest or custom servers.
func (s *Server) Handler() http.Handler {
	return s.requestMiddleware(s.mux)
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("server starting", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := telemetry.WithRequestID(r.Context(), r.Header.Get("X-Request-ID"))
		w.Header().Set("X-Request-ID", telemetry.RequestID(ctx))
		r = r.WithContext(ctx)
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		if s.metrics != nil {
			s.metrics.RecordRequest(path, strconv.Itoa(sw.code))
		}
		telemetry.RequestLogger(s.logger, ctx).Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.code,
			"duration", time.Since(start),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

// EvalRequest is the body of POST /v1/eval.
type EvalRequest struct {
	Expr string `json:"expr"`
}

// EvalResponse is the body of a successful evaluation.
type EvalResponse struct {
	Result  history.Value `json:"result"`
	Display string        `json:"display"`
}

// ErrorResponse is the body of a failed request. Kind is "compile" or "eval"
// for expression errors and "request" for malformed requests. Pos is the
// 1-based column of a compile error.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Pos   int    `json:"pos,omitempty"`
}

func (s *Server) handleEval(w http.ResponseWriter, r *http.Request) {
	log := telemetry.RequestLogger(s.logger, r.Context())
	var req EvalRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var mb *http.MaxBytesError
		if errors.As(err, &mb) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Kind: "request"})
			return
		}
		writeError(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body: " + err.Error(), Kind: "request"})
		return
	}

	start := time.Now()
	v, err := s.eval(req.Expr)
	d := time.Since(start)
	entry := history.Entry{Expr: req.Expr}
	var resp ErrorResponse
	var ie calculator.InputError
	switch {
	case err == nil:
		entry.Result, entry.Display = history.Value(v), s.display(v)
		s.record(telemetry.StatusOK, d)
	case errors.As(err, &ie):
		resp = ErrorResponse{Error: err.Error(), Kind: "compile", Pos: ie.Pos()}
		s.record(telemetry.StatusCompileError, d)
	default:
		resp = ErrorResponse{Error: err.Error(), Kind: "eval"}
		s.record(telemetry.StatusEvalError, d)
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if s.history != nil {
		if herr := s.history.Append(entry); herr != nil {
			log.Warn("recording history", "error", herr)
		}
	}
	if err != nil {
		log.Debug("evaluation failed", "expr", req.Expr, "kind", resp.Kind, "error", err)
		writeError(w, http.StatusUnprocessableEntity, resp)
		return
	}
	log.Debug("evaluated", "expr", req.Expr, "result", v)
	writeJSON(w, http.StatusOK, EvalResponse{Result: entry.Result, Display: entry.Display})
}

func (s *Server) eval(src string) (float64, error) {
	e, err := calculator.CompileString(src, s.syms, s.parse...)
	if err != nil {
		return 0, err
	}
	return e.Eval()
}

func (s *Server) record(status string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordEval(status, d)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, resp ErrorResponse) {
	writeJSON(w, status, resp)
}
