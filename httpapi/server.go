package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	fileshare "github.com/SuperSection/fileshare"
	"github.com/SuperSection/fileshare/middleware"
	"github.com/sirupsen/logrus"
)

// Options configures a [Server].
type Options struct {
	// Logger defaults to the logrus standard logger.
	Logger logrus.FieldLogger
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// SpoolDir holds uploads that arrive without a size field. Defaults to os.TempDir().
	SpoolDir string
}

// Server adapts an Engine to HTTP.
type Server struct {
	engine     *fileshare.Engine
	logger     logrus.FieldLogger
	metrics    http.Handler
	spoolDir   string
	maxUpload  int64
	trustProxy bool
}

// New returns a Server for engine. Upload limits and proxy trust are read from the
// engine's configuration.
func New(engine *fileshare.Engine, opts Options) *Server {
	cfg := engine.Config()
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Server{
		engine:     engine,
		logger:     logger,
		metrics:    opts.Metrics,
		spoolDir:   opts.SpoolDir,
		maxUpload:  cfg.Upload.MaxFileSize,
		trustProxy: cfg.Security.TrustProxy,
	}
}

// Handler returns the routed handler with CORS, client IP resolution, and request
// logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/download/{code}", s.handleDownload)
	mux.Handle("/status", middleware.RequireOwnerToken(http.HandlerFunc(s.handleStatus)))
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/", s.handleNotFound)

	var h http.Handler = mux
	h = middleware.ClientIP(s.trustProxy)(h)
	h = middleware.CORS(h)
	return s.logRequests(h)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.metrics == nil {
		http.NotFound(w, r)
		return
	}
	s.metrics.ServeHTTP(w, r)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.logger.WithFields(logrus.Fields{
		"function": "handleNotFound",
		"method":   r.Method,
		"path":     r.URL.Path,
	}).Debug("no route")
	w.WriteHeader(http.StatusNotFound)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: CodeMethodNotAllowed})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	body := ErrorResponse{Error: ErrorCode(err)}
	if status < http.StatusInternalServerError {
		body.Message = err.Error()
	}
	writeJSON(w, status, body)
}

/*
====================================
REQUEST LOGGING
====================================
*/

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (w *statusWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += int64(n)
	return n, err
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		entry := s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   sw.status,
			"bytes":    sw.bytes,
			"duration": time.Since(started).String(),
			"remote":   middleware.RemoteIP(r, s.trustProxy),
		})
		if sw.status >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	})
}
