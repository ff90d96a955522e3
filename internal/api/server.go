// Package api exposes the stream manager and filter engine over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/charliek/herolog/internal/constants"
)

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Host   string
	Port   int
	Token  string // bearer token; empty disables auth
	Logger *slog.Logger
}

// Server represents the HTTP API server
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	httpServer *http.Server
	handlers   *Handlers
	logger     *slog.Logger
	mu         sync.Mutex
	closed     bool
}

// NewServer creates a new API server
func NewServer(config ServerConfig, handlers *Handlers) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware())

	s := &Server{
		config:   config,
		router:   r,
		handlers: handlers,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// requestLogger logs each request through slog once it completes
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// corsMiddleware returns a CORS middleware restricted to localhost
func corsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if isLocalhostOrigin(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isLocalhostOrigin checks that origin is exactly a loopback address with an optional port
func isLocalhostOrigin(origin string) bool {
	if origin == "" {
		return false
	}

	localhostPrefixes := []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
		"http://[::1]",
		"https://[::1]",
	}
	for _, prefix := range localhostPrefixes {
		if origin == prefix || strings.HasPrefix(origin, prefix+":") {
			return true
		}
	}
	return false
}

// authMiddleware requires "Authorization: Bearer <token>" when token is set
func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing authorization header", Code: "UNAUTHORIZED"})
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(authHeader, prefix) {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header format", Code: "UNAUTHORIZED"})
				return
			}

			provided := strings.TrimPrefix(authHeader, prefix)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: "UNAUTHORIZED"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(authMiddleware(s.config.Token))

		// the SSE stream must not be cut off by the request timeout
		r.Get("/logs/stream", s.handlers.StreamLogs)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(constants.DefaultRequestTimeout))

			r.Get("/status", s.handlers.GetStatus)
			r.Get("/logs", s.handlers.GetLogs)

			r.Post("/connect", s.handlers.Connect)
			r.Post("/disconnect", s.handlers.Disconnect)

			r.Get("/filters", s.handlers.GetFilters)
			r.Post("/filters", s.handlers.AddFilter)
			r.Delete("/filters", s.handlers.ClearFilters)
			r.Delete("/filters/{index}", s.handlers.RemoveFilter)
			r.Put("/filters/mode", s.handlers.SetMode)

			r.Get("/apps", s.handlers.GetApps)

			r.Post("/shutdown", s.handlers.Shutdown)
		})
	})
}

// Start listens on the configured address and serves until Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.Addr(), err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown. After Shutdown it closes ln and
// returns http.ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return http.ErrServerClosed
	}
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disable for SSE
		IdleTimeout:  60 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	s.logger.Info("api server listening", "addr", ln.Addr().String())
	return server.Serve(ln)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	server := s.httpServer
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// Addr returns the configured listen address
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
