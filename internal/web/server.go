// Package web provides the HTTP server and handlers for the CSV upload vault.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/JonMunkholm/csvvault/internal/auth"
	"github.com/JonMunkholm/csvvault/internal/config"
	"github.com/JonMunkholm/csvvault/internal/core"
	"github.com/JonMunkholm/csvvault/internal/web/middleware"
)

// UploadService is the upload surface the handlers need.
type UploadService interface {
	Create(ctx context.Context, p core.Principal, file *core.FileInput) (core.Upload, error)
	Read(ctx context.Context, p core.Principal, id uuid.UUID) (core.UploadDetail, error)
	ListOwn(ctx context.Context, p core.Principal) ([]core.Upload, error)
	ListAll(ctx context.Context, p core.Principal) ([]core.Upload, error)
	Download(ctx context.Context, p core.Principal, id uuid.UUID) (core.Download, error)
	Delete(ctx context.Context, p core.Principal, id uuid.UUID) error
}

// Authenticator is the login surface the handlers need.
type Authenticator interface {
	middleware.SessionAuthenticator
	LoginURL(state string) string
	CompleteLogin(ctx context.Context, code string) (auth.Session, error)
	Logout(ctx context.Context, token string) error
}

var (
	_ UploadService = (*core.Service)(nil)
	_ Authenticator = (*auth.Service)(nil)
)

// Server is the HTTP server for the upload vault.
type Server struct {
	uploads UploadService
	authn   Authenticator
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
	limits  []*rateLimiter
	now     func() time.Time
}

// NewServer creates a Server with its middleware and routes.
func NewServer(uploads UploadService, authn Authenticator, cfg *config.Config) *Server {
	s := &Server{
		uploads: uploads,
		authn:   authn,
		cfg:     cfg,
		router:  chi.NewRouter(),
		now:     time.Now,
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders)

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// Public
	s.router.Get("/", s.handleHealthCheck)
	s.router.Get("/api/health_check", s.handleHealthCheck)
	s.router.Get("/up", s.handleUp)

	// Login flow
	s.router.Get(middleware.LoginPath, s.handleLogin)
	s.router.Get(middleware.LoginPath+"/callback", s.handleCallback)
	s.router.Delete("/logout", s.handleLogout)
	s.router.Post("/logout", s.handleLogout)

	// Signed-in users
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(s.authn))

		r.Get("/dashboard", s.handleDashboard)

		r.Route("/uploads", func(r chi.Router) {
			if s.cfg.Rate.Enabled {
				r.With(s.newRateLimiter(s.cfg.Rate.UploadLimit, time.Minute).middleware).Post("/", s.handleCreateUpload)
			} else {
				r.Post("/", s.handleCreateUpload)
			}
			r.Get("/{id}", s.handleShowUpload)
			r.Get("/{id}/download", s.handleDownloadUpload)
			r.Delete("/{id}", s.handleDeleteUpload)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/uploads", s.handleAdminUploads)
			r.Get("/uploads/{id}", s.handleShowUpload)
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server and its background jobs.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, rl := range s.limits {
		rl.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func (s *Server) newRateLimiter(rate int, window time.Duration) *rateLimiter {
	rl := newRateLimiter(rate, window)
	s.limits = append(s.limits, rl)
	return rl
}

// securityHeaders adds security headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON with the given status.
// Encoding errors are only logged since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
