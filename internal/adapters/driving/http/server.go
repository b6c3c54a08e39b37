package http

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ledgerline/offline-core/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// TokenIssuer mints bearer tokens for dashboard clients.
type TokenIssuer interface {
	GenerateToken(clientID string) (string, error)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string

	// Services
	cacheService driving.CacheManager
	syncService  driving.SyncManager

	// Auth
	issuer       TokenIssuer
	parser       TokenParser
	clientSecret string

	// Infrastructure
	db        Pinger // store health check
	lockStore Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// ClientSecret is the shared secret dashboard instances exchange for
	// a bearer token.
	ClientSecret string

	// AllowedOrigins configures CORS for browser-hosted dashboards.
	AllowedOrigins []string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(
	cfg Config,
	cacheService driving.CacheManager,
	syncService driving.SyncManager,
	issuer TokenIssuer,
	parser TokenParser,
	db Pinger,
	lockStore Pinger, // can be nil
) *Server {
	s := &Server{
		router:       http.NewServeMux(),
		version:      cfg.Version,
		cacheService: cacheService,
		syncService:  syncService,
		issuer:       issuer,
		parser:       parser,
		clientSecret: cfg.ClientSecret,
		db:           db,
		lockStore:    lockStore,
	}

	handler := NewRecoveryMiddleware().Handler(
		NewCORSMiddleware(cfg.AllowedOrigins).Handler(
			NewLoggingMiddleware().Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Create middleware
	authMiddleware := NewAuthMiddleware(s.parser)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Auth endpoint (public)
	s.router.HandleFunc("POST /api/v1/auth/token", s.handleToken)

	// Cache endpoints
	s.router.Handle("GET /api/v1/cache/stats",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCacheStats)))
	s.router.Handle("GET /api/v1/cache/health",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleCacheHealth)))
	s.router.Handle("POST /api/v1/cache/preload",
		authMiddleware.Authenticate(http.HandlerFunc(s.handlePreload)))
	s.router.Handle("POST /api/v1/cache/clean",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleClean)))
	s.router.Handle("DELETE /api/v1/cache",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleClearAll)))

	// Sync endpoints
	s.router.Handle("POST /api/v1/sync",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSync)))

	// Operation queue endpoints
	s.router.Handle("POST /api/v1/operations",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleEnqueue)))
	s.router.Handle("GET /api/v1/operations/pending",
		authMiddleware.Authenticate(http.HandlerFunc(s.handlePendingCount)))
	s.router.Handle("GET /api/v1/operations/failed",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleListFailed)))
	s.router.Handle("POST /api/v1/operations/{id}/retry",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRetryOperation)))
	s.router.Handle("DELETE /api/v1/operations/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDiscardOperation)))
	s.router.Handle("POST /api/v1/operations/retry-all",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleRetryAll)))
	s.router.Handle("DELETE /api/v1/operations/failed",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDiscardFailed)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-stop
	log.Println("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Attempt graceful shutdown
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Println("Server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
