// Package web serves the viewer page, its JSON API and the live websocket
// channel.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/sheetview/internal/config"
	"github.com/JonMunkholm/sheetview/internal/core"
	mw "github.com/JonMunkholm/sheetview/internal/web/middleware"
)

//go:embed static
var staticFiles embed.FS

// Server is the HTTP front end for a core.Service.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	limiters []*rateLimiter
}

// NewServer wires routes and middleware from cfg.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware installs the middleware shared by every route. Timeout
// and compression are added per group in setupRoutes because the live
// channel needs a hijackable, unbounded connection.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(s.newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute).middleware)
	}
}

func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	bounded := func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		r.Use(middleware.Compress(5))
	}

	s.router.Group(func(r chi.Router) {
		bounded(r)
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
		r.Get("/healthz", s.handleHealth)
		r.Get("/", s.handleIndex)
		r.Get("/s/{sessionID}", s.handlePage)
	})

	s.router.Route("/api/sessions", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Long-lived websocket: no timeout, no compression.
		r.Get("/{sessionID}/live", s.handleLive)

		r.Group(func(r chi.Router) {
			bounded(r)
			r.Post("/", s.handleCreateSession)
			r.Get("/{sessionID}/table", s.handleTable)
			r.Post("/{sessionID}/cells", s.handleEditCell)
			r.Get("/{sessionID}/export/{format}", s.handleExport)
			r.Delete("/{sessionID}", s.handleDeleteSession)

			if s.cfg.Rate.Enabled {
				r.With(s.newRateLimiter(s.cfg.Rate.LoadLimit, time.Minute).middleware).
					Post("/{sessionID}/load", s.handleLoad)
			} else {
				r.Post("/{sessionID}/load", s.handleLoad)
			}
		})
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr())
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, waits for in-flight ones and stops
// the rate limiter cleanup loops.
func (s *Server) Shutdown(ctx context.Context) error {
	for _, l := range s.limiters {
		l.stop()
	}
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'"

// securityHeaders sets the hardening headers on every response.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if csp {
				h.Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
