package webui

import (
	"net"
	"net/http"
	"strings"
	"time"

	"aichat_backend/metrics"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggingMiddleware logs every HTTP request with method, route, status code
// and duration, and feeds the same data to the metrics collector.
type LoggingMiddleware struct {
	logger    RequestLogger
	metrics   *metrics.Collector
	skipPaths map[string]bool
}

// RequestLogger receives one entry per finished request.
type RequestLogger interface {
	LogRequest(entry RequestLogEntry)
}

// RequestLogEntry contains all information about a logged HTTP request
type RequestLogEntry struct {
	Timestamp time.Time
	Method    string
	Path      string

	// Route is the matched mux pattern without its method, or "unmatched".
	Route string

	StatusCode    int
	Duration      time.Duration
	RemoteAddr    string
	UserAgent     string
	ContentLength int64
}

// ZapRequestLogger writes entries through zap. 5xx responses log at error
// level, 4xx at warn, everything else at info.
type ZapRequestLogger struct {
	Logger *zap.Logger
}

// LogRequest implements RequestLogger.
func (z *ZapRequestLogger) LogRequest(entry RequestLogEntry) {
	level := zapcore.InfoLevel
	switch {
	case entry.StatusCode >= 500:
		level = zapcore.ErrorLevel
	case entry.StatusCode >= 400:
		level = zapcore.WarnLevel
	}
	if ce := z.Logger.Check(level, "http request"); ce != nil {
		ce.Write(
			zap.String("method", entry.Method),
			zap.String("path", entry.Path),
			zap.String("route", entry.Route),
			zap.Int("status", entry.StatusCode),
			zap.Duration("duration", entry.Duration),
			zap.String("remote_addr", entry.RemoteAddr),
			zap.Int64("bytes", entry.ContentLength),
		)
	}
}

// NoopLogger discards all log entries.
type NoopLogger struct{}

// LogRequest does nothing
func (n *NoopLogger) LogRequest(entry RequestLogEntry) {}

// LoggingMiddlewareConfig holds configuration for the LoggingMiddleware
type LoggingMiddlewareConfig struct {
	// Logger for request logging (default: NoopLogger)
	Logger RequestLogger

	// Metrics receives per-route counters and latencies. May be nil.
	Metrics *metrics.Collector

	// SkipPaths are logged neither to Logger nor to Metrics.
	SkipPaths []string
}

// NewLoggingMiddlewareWithConfig creates a new LoggingMiddleware.
func NewLoggingMiddlewareWithConfig(config LoggingMiddlewareConfig) *LoggingMiddleware {
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}

	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return &LoggingMiddleware{
		logger:    config.Logger,
		metrics:   config.Metrics,
		skipPaths: skipPaths,
	}
}

// Handler wraps an http.Handler with request logging.
func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK, // Default if not explicitly set
		}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		// ServeMux records the matched pattern on the request it was given.
		route := routeLabel(r.Pattern)

		m.logger.LogRequest(RequestLogEntry{
			Timestamp:     start,
			Method:        r.Method,
			Path:          r.URL.Path,
			Route:         route,
			StatusCode:    wrapped.statusCode,
			Duration:      duration,
			RemoteAddr:    getClientIP(r, true),
			UserAgent:     r.UserAgent(),
			ContentLength: wrapped.bytesWritten,
		})
		m.metrics.ObserveHTTP(r.Method, route, wrapped.statusCode, duration)
	})
}

func routeLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		return pattern[i+1:]
	}
	return pattern
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

// WriteHeader captures the status code
func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.statusCode = statusCode
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write captures the bytes written and ensures header is written
func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += int64(n)
	return n, err
}

// Flush implements http.Flusher if the underlying writer supports it
func (w *responseWriterWrapper) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// getClientIP extracts the client IP from the request. Forwarding headers
// are only honored when trustProxy is set; otherwise the socket address is
// used with its port stripped.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
