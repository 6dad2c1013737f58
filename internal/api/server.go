package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/netbill/netbill-server/internal/auth"
	"github.com/netbill/netbill-server/internal/config"
	"github.com/netbill/netbill-server/internal/reconcile"
	"github.com/netbill/netbill-server/internal/router"
	"github.com/netbill/netbill-server/internal/storage"
	"github.com/netbill/netbill-server/internal/traffic"
	"github.com/netbill/netbill-server/internal/validation"
)

// Dependencies are the services behind the API
type Dependencies struct {
	Store     storage.Store
	Router    *router.Client
	Reconcile *reconcile.Service
	Traffic   *traffic.Poller
}

// RESTServer represents the REST API server
type RESTServer struct {
	config    *config.Config
	store     storage.Store
	client    *router.Client
	reconcile *reconcile.Service
	traffic   *traffic.Poller
	auth      *auth.JWTManager
	validator *validation.Validator
	router    chi.Router
	server    *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, deps Dependencies) *RESTServer {
	s := &RESTServer{
		config:    cfg,
		store:     deps.Store,
		client:    deps.Router,
		reconcile: deps.Reconcile,
		traffic:   deps.Traffic,
		auth:      auth.NewJWTManager(&cfg.JWT),
		validator: validation.NewValidator(),
		router:    chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 75 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler
func (s *RESTServer) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.API.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Get token from header
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
			return
		}

		// Parse Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization header")
			return
		}

		// Validate token
		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
	})
}

// adminOnly rejects operators without the admin role
func (s *RESTServer) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok || !claims.IsAdmin() {
			s.respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
