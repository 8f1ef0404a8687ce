// Package httpapi serves the login, second-factor and session routes of an authcore Engine
// over HTTP with a chi router. Tokens travel in HttpOnly cookies; every JSON response uses
// the {"success":...,"data"|"error":...} envelope.
package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mentorloop/authcore"
	"github.com/mentorloop/authcore/middleware"
	"github.com/mentorloop/authcore/permission"
	"github.com/mentorloop/authcore/session"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	Cookies session.CookieConfig
	Logger  *zap.Logger
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
}

// Server binds an Engine to HTTP routes.
type Server struct {
	engine  *authcore.Engine
	cookies *session.Cookies
	logger  *zap.Logger
	metrics http.Handler
}

// NewServer binds engine to the HTTP routes. Zero cookie lifetimes follow the engine TTLs.
func NewServer(engine *authcore.Engine, opts Options) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: engine required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cookieCfg := opts.Cookies
	if cookieCfg.SessionMaxAge == 0 {
		cookieCfg.SessionMaxAge = engine.SessionTTL()
	}
	if cookieCfg.PendingMaxAge == 0 {
		cookieCfg.PendingMaxAge = engine.PendingTTL()
	}

	return &Server{
		engine:  engine,
		cookies: session.NewCookies(cookieCfg),
		logger:  logger.Named("http"),
		metrics: opts.Metrics,
	}, nil
}

// Router returns the complete route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(15 * time.Second))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
		r.Post("/2fa/verify", s.handleVerifySecondFactor)

		r.Group(func(r chi.Router) {
			r.Use(s.Guard())
			r.Get("/me", s.handleMe)
			r.Post("/2fa/enroll", s.handleEnroll)
			r.Post("/2fa/confirm", s.handleConfirm)
			r.Post("/2fa/disable", s.handleDisable)
		})
	})

	return r
}

// Guard returns the session + role middleware for routes outside this package. With no roles
// any authenticated principal passes.
func (s *Server) Guard(roles ...permission.Role) func(http.Handler) http.Handler {
	allowed := permission.AnyRole()
	if len(roles) > 0 {
		allowed = permission.Roles(roles...)
	}
	return middleware.Guard(s.engine, allowed, s.writeError)
}
