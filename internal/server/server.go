package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zine-studio/zine-landing/internal/engagement"
	"github.com/zine-studio/zine-landing/internal/experiment"
	"github.com/zine-studio/zine-landing/internal/store"
	"github.com/zine-studio/zine-landing/internal/telemetry"
)

// Options tunes the server.
type Options struct {
	SecureCookies   bool
	AllowedOrigins  []string
	TrustProxy      bool // take the client address from X-Forwarded-For / X-Real-IP
	Overrides       experiment.Overrides
	Sampler         experiment.Sampler
	WaitlistRate    rate.Limit // submissions per second per client
	WaitlistBurst   int
	ShutdownTimeout time.Duration
}

type Server struct {
	store     *store.SQLiteStore
	emitter   *telemetry.Emitter
	registry  *engagement.Registry
	opts      Options
	router    chi.Router
	pages     *template.Template
	waitlist  *clientLimiter
	startTime time.Time
	log       *zap.Logger
}

func New(s *store.SQLiteStore, em *telemetry.Emitter, reg *engagement.Registry, opts Options) *Server {
	if opts.Sampler == nil {
		opts.Sampler = experiment.UniformSampler
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.WaitlistRate <= 0 {
		opts.WaitlistRate = rate.Every(10 * time.Second)
	}
	if opts.WaitlistBurst <= 0 {
		opts.WaitlistBurst = 3
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	srv := &Server{
		store:     s,
		emitter:   em,
		registry:  reg,
		opts:      opts,
		router:    chi.NewRouter(),
		pages:     template.Must(template.New("pages").Funcs(templateFuncs).Parse(pageTemplates)),
		waitlist:  newClientLimiter(opts.WaitlistRate, opts.WaitlistBurst),
		startTime: time.Now(),
		log:       zap.L().Named("server"),
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	r := s.router
	if s.opts.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	// Preflight requests match no route, so CORS sits on the root router.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	// Public API
	r.Group(func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/zl.js", s.handleTrackerJS)

		r.Group(func(r chi.Router) {
			r.Use(s.visitorMiddleware)
			r.Post("/b", s.handleBeacon)
			r.Post("/api/events", s.handleEvent)
			r.Post("/api/waitlist", s.handleWaitlist)
		})
	})

	// Funnel pages
	r.Group(func(r chi.Router) {
		r.Use(s.visitorMiddleware)
		for _, p := range funnelPages {
			r.Get(p.Path, s.handlePage(p))
		}
	})
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *store.SQLiteStore {
	return s.store
}

func (s *Server) Registry() *engagement.Registry {
	return s.registry
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return eris.Wrap(err, "server listen")
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server shutdown")
	}
	return nil
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// Addr formats a listen address from host and port.
func Addr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
