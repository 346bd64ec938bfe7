package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/fixora/triage/internal/infra/logger"
)

// Server represents the HTTP server
type Server struct {
	addr   string
	logger logger.Logger
	server *http.Server
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// NewRouter wires the dashboard routes and middleware
func NewRouter(dashboard *DashboardHandler, rateLimit *RateLimitMiddleware, corsOrigins []string, log logger.Logger) http.Handler {
	router := mux.NewRouter()

	dashboard.RegisterRoutes(router, rateLimit.RateLimit)

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	router.Use(correlationMiddleware)
	router.Use(loggingMiddleware(log))

	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{log: log}),
		handlers.PrintRecoveryStack(true),
	)
	// Preflight requests match no route, so CORS wraps the router
	return recovery(handlers.CompressHandler(corsMiddleware(corsOrigins)(router)))
}

// NewServer creates a new HTTP server
func NewServer(config ServerConfig, handler http.Handler, log logger.Logger) *Server {
	addr := config.Host + ":" + config.Port
	return &Server{
		addr:   addr,
		logger: log,
		server: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
