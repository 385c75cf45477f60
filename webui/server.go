// Package webui is the HTTP boundary: JSON routes for accounts, image
// generation and chat, plus health and Prometheus endpoints.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"aichat_backend/chat"
	"aichat_backend/imagegen"
	"aichat_backend/metrics"
	"aichat_backend/webui/auth"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ImageService is the image pipeline as seen by the handlers.
type ImageService interface {
	Generate(ctx context.Context, raw imagegen.RawRequest) (*imagegen.Output, error)
	History(ctx context.Context, ownerID string) ([]imagegen.Result, error)
	Validator() *imagegen.Validator
}

// ChatService is the chat pipeline as seen by the handlers.
type ChatService interface {
	Send(ctx context.Context, ownerID, message string) (*chat.Reply, error)
	History(ctx context.Context, ownerID string) ([]chat.Turn, error)
}

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the routes call into. Chat, Database,
// Metrics and Gatherer may be nil.
type Dependencies struct {
	Images   ImageService
	Chat     ChatService
	Accounts *auth.Handlers
	Auth     *auth.Middleware
	Database Pinger
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
}

// Server owns the http.Server and the route table.
type Server struct {
	httpServer  *http.Server
	mux         *http.ServeMux
	handler     http.Handler
	config      ServerConfig
	deps        Dependencies
	logger      *zap.Logger
	rateLimiter *RateLimiter
	startedAt   time.Time
}

// ServerConfig configures the Server.
type ServerConfig struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// DevMode adds diagnostic details to error responses.
	DevMode bool

	// AllowedOrigins receive CORS headers (FRONTEND_URL).
	AllowedOrigins []string

	// MaxBodyBytes caps JSON request bodies.
	MaxBodyBytes int64

	// RateLimitRequests per RateLimitWindow per client IP on /api/.
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// TrustProxy takes the client IP from X-Forwarded-For / X-Real-IP.
	TrustProxy bool

	// LogSkipPaths are paths to skip logging
	LogSkipPaths []string

	Version string
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "0.0.0.0",
		Port:              5000,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      180 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   30 * time.Second,
		AllowedOrigins:    []string{"http://localhost:3000"},
		MaxBodyBytes:      10 << 20,
		RateLimitRequests: 100,
		RateLimitWindow:   15 * time.Minute,
		LogSkipPaths:      []string{"/metrics"},
		Version:           "dev",
	}
}

// multipartOverhead is allowed on top of the upload ceiling for the prompt
// field and part headers.
const multipartOverhead = 1 << 20

// NewServer wires routes and middleware. Images, Accounts and Auth are
// required.
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Images == nil || deps.Accounts == nil || deps.Auth == nil {
		return nil, errors.New("webui: image service, account handlers and auth middleware are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultServerConfig().MaxBodyBytes
	}

	s := &Server{
		mux:         http.NewServeMux(),
		config:      config,
		deps:        deps,
		logger:      logger,
		rateLimiter: NewRateLimiter(config.RateLimitRequests, config.RateLimitWindow),
		startedAt:   time.Now(),
	}
	s.setupRoutes()

	loggingMw := NewLoggingMiddlewareWithConfig(LoggingMiddlewareConfig{
		Logger:    &ZapRequestLogger{Logger: logger},
		Metrics:   deps.Metrics,
		SkipPaths: config.LogSkipPaths,
	})
	s.handler = Chain(s.mux,
		loggingMw.Handler,
		Recovery(logger, config.DevMode),
		SecurityHeaders(),
		CORS(config.AllowedOrigins),
	)

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("HTTP server created",
		zap.String("addr", addr),
		zap.Bool("chat_enabled", deps.Chat != nil),
		zap.Bool("dev_mode", config.DevMode),
	)
	return s, nil
}

func (s *Server) setupRoutes() {
	limited := s.rateLimiter.Middleware(s.config.TrustProxy)
	jsonBody := MaxBody(s.config.MaxBodyBytes)
	protect := s.deps.Auth.Handler

	api := func(pattern string, h http.Handler, mws ...Middleware) {
		s.mux.Handle(pattern, Chain(h, append([]Middleware{limited}, mws...)...))
	}

	api("POST /api/auth/register", http.HandlerFunc(s.deps.Accounts.Register), jsonBody)
	api("POST /api/auth/login", http.HandlerFunc(s.deps.Accounts.Login), jsonBody)
	api("GET /api/auth/me", http.HandlerFunc(s.deps.Accounts.Me), protect)

	uploadCap := s.deps.Images.Validator().MaxUploadSize + multipartOverhead
	api("POST /api/image/generate", http.HandlerFunc(s.handleGenerate), jsonBody, protect)
	api("POST /api/image/generate-image-to-image", http.HandlerFunc(s.handleGenerateFromImage), MaxBody(uploadCap), protect)
	api("GET /api/image/history", http.HandlerFunc(s.handleImageHistory), protect)

	api("POST /api/chat/send", http.HandlerFunc(s.handleChatSend), jsonBody, protect)
	api("GET /api/chat/history", http.HandlerFunc(s.handleChatHistory), protect)

	api("GET /api/health", http.HandlerFunc(s.handleHealth))
	api("GET /api/status", http.HandlerFunc(s.handleStatus))
	api("/api/", http.HandlerFunc(s.handleAPINotFound))

	if s.deps.Gatherer != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusNotFound, "API endpoint not found")
}

// Start listens until Shutdown is called. The rate limiter's cleanup loop
// stops with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.rateLimiter.StartCleanupTicker(ctx, time.Minute)

	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// SplitOrigins parses a comma-separated FRONTEND_URL value.
func SplitOrigins(value string) []string {
	var origins []string
	for _, o := range strings.Split(value, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
