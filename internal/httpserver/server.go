package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"accounts/backend/internal/config"
	"accounts/backend/internal/observability"
	authusecase "accounts/backend/internal/usecase/auth"
	orgusecase "accounts/backend/internal/usecase/organisation"
	userusecase "accounts/backend/internal/usecase/user"
)

// Server wraps the HTTP server lifecycle.
type Server struct {
	httpServer   *http.Server
	router       *http.ServeMux
	gate         *Gate
	logger       *slog.Logger
	metrics      *observability.Metrics
	authService  *authusecase.Service
	userService  *userusecase.Service
	orgService   *orgusecase.Service
	cookieTTL    time.Duration
	cookieSecure bool
	addr         string
}

// NewServer constructs a new Server with configured dependencies.
func NewServer(
	cfg config.Config,
	logger *slog.Logger,
	metrics *observability.Metrics,
	tokens authusecase.TokenManager,
	authService *authusecase.Service,
	userService *userusecase.Service,
	orgService *orgusecase.Service,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	addr := cfg.HTTPPort
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	resolver := NewResolver(tokens, cfg.BearerHeader)
	handler := withAuthentication(withLogging(withCORS(mux, cfg.AllowedOrigins), logger, metrics), resolver, metrics)

	srv := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		router:       mux,
		gate:         NewGate(resolver, metrics, logger),
		logger:       logger,
		metrics:      metrics,
		authService:  authService,
		userService:  userService,
		orgService:   orgService,
		cookieTTL:    cookieLifetime(cfg.TokenTTL),
		cookieSecure: cfg.CookieSecure,
		addr:         addr,
	}
	srv.registerRoutes()
	return srv
}

// cookieLifetime matches the token lifetime the token manager applies to an unset TTL.
func cookieLifetime(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return authusecase.DefaultTokenTTL
	}
	return ttl
}

// Start serves HTTP on the configured address until Shutdown.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the configured network address for the HTTP server.
func (s *Server) Addr() string {
	return s.addr
}
