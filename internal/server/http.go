package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/alfredjeanlab/kvcomments/internal/comments"
	"github.com/alfredjeanlab/kvcomments/internal/model"
)

// defaultMaxBodyBytes leaves room for JSON escaping around a maximum-size comment.
const defaultMaxBodyBytes = 4 << 20

// CORS header values sent on every response.
const (
	corsAllowMethods = "GET, POST, DELETE, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization"
	corsMaxAge       = "86400"
)

// envelope is the JSON shape of every non-probe response.
type envelope struct {
	Code    int            `json:"code"`
	Msg     string         `json:"msg,omitempty"`
	Data    any            `json:"data,omitempty"`
	Comment *model.Comment `json:"comment,omitempty"`
}

// NewHTTPHandler returns an http.Handler with all routes registered.
// When an auth token is configured, deletes and probes must include a valid
// Authorization: Bearer <token> header.
func (s *CommentServer) NewHTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.HandleFunc("/", s.dispatch)

	protected := func(r *http.Request) bool {
		return s.resolve(r).op.requiresAuth()
	}

	var h http.Handler = mux
	h = AuthMiddleware(s.opts.AuthToken, protected, h)
	h = CORSMiddleware(s.opts.AllowOrigin, h)
	h = RecoveryMiddleware(s.logger, h)
	return s.observe(h)
}

func (s *CommentServer) resolve(r *http.Request) route {
	return resolveOperation(r, s.opts.BasePath, s.opts.ProbesEnabled)
}

// dispatch routes every non-infrastructure request through the operation table.
func (s *CommentServer) dispatch(w http.ResponseWriter, r *http.Request) {
	rt := s.resolve(r)
	handler, ok := s.handlers()[rt.op]
	if !ok {
		handler = s.handleInvalid
	}
	handler(w, r, rt)
}

type opHandler func(w http.ResponseWriter, r *http.Request, rt route)

func (s *CommentServer) handlers() map[Operation]opHandler {
	return map[Operation]opHandler{
		OpList:        s.handleList,
		OpAppend:      s.handleAppend,
		OpDelete:      s.handleDelete,
		OpProbeGet:    s.handleProbeGet,
		OpProbeSet:    s.handleProbeSet,
		OpProbeDelete: s.handleProbeDelete,
		OpNotFound:    s.handleNotFound,
		OpInvalid:     s.handleInvalid,
	}
}

// handleHealth handles GET /healthz.
func (s *CommentServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.health.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *CommentServer) handleNotFound(w http.ResponseWriter, r *http.Request, _ route) {
	writeError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}

func (s *CommentServer) handleInvalid(w http.ResponseWriter, _ *http.Request, _ route) {
	writeError(w, http.StatusBadRequest, "invalid operation: "+s.usage())
}

func (s *CommentServer) usage() string {
	u := fmt.Sprintf("use GET %[1]s to list, POST %[1]s with {\"content\"} to add, DELETE %[1]s/{id} to remove, or ?action=get|set|delete", s.opts.BasePath)
	if s.opts.ProbesEnabled {
		u += "|kvGet|kvSet|kvDelete"
	}
	return u
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Code: status, Msg: message})
}

// writeText writes a plain-text probe response.
func writeText(w http.ResponseWriter, status int, format string, args ...any) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, format, args...)
}

// statusFor maps an error from the comment adapter to an HTTP status.
func statusFor(err error) int {
	var ve *model.ValidationError
	var ie inputError
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &ve), errors.As(err, &ie):
		return http.StatusBadRequest
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, comments.ErrCommentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeAdapterError writes err with the status statusFor picks and logs it.
func (s *CommentServer) writeAdapterError(w http.ResponseWriter, r *http.Request, op Operation, err error) {
	status := statusFor(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "operation", op.String(), "status", status, "error", err)
	writeError(w, status, err.Error())
}

// CORSMiddleware sets the CORS headers on every response and answers
// preflight OPTIONS requests with 204 before any other handler runs.
func CORSMiddleware(allowOrigin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", allowOrigin)
		h.Set("Access-Control-Allow-Methods", corsAllowMethods)
		h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		h.Set("Access-Control-Max-Age", corsMaxAge)
		if allowOrigin != "*" {
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware catches panics in downstream handlers, logs the stack
// trace, and returns a 500 envelope instead of dropping the connection.
func RecoveryMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Error("panic recovered in HTTP handler",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// statusWriter records the status code and body size written by a handler.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// observe writes one access log line per request and records metrics.
func (s *CommentServer) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)
		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		duration := time.Since(start)
		op := s.operationLabel(r)

		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"operation", op,
			"status", sw.status,
			"bytes", sw.bytes,
			"duration", duration,
		)
		if s.metrics != nil {
			s.metrics.ObserveRequest(op, sw.status, duration)
		}
	})
}

func (s *CommentServer) operationLabel(r *http.Request) string {
	switch {
	case r.Method == http.MethodOptions:
		return "preflight"
	case r.URL.Path == "/healthz":
		return "healthz"
	case r.URL.Path == "/metrics":
		return "metrics"
	}
	return s.resolve(r).op.String()
}
