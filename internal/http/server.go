// Package http exposes the services as a JSON API.
package http

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/cors"

	applog "spendwise/internal/log"
	"spendwise/internal/metrics"
	"spendwise/internal/middleware/ratelimit"
	"spendwise/internal/middleware/security"
	"spendwise/internal/middleware/trace"
	"spendwise/internal/services"
)

// Options configure the API server. Ready, Metrics, Logger and DevUser are
// optional; a nil DevUser leaves /api/dev/token unregistered.
type Options struct {
	Addr          string
	CORSOrigins   []string
	AuthRateLimit int
	DevUser       *services.RegisterInput
	Ready         func(ctx context.Context) error
	Metrics       *metrics.Metrics
	Logger        *applog.Logger
}

type Server struct {
	http.Server
	svc         *services.Services
	opts        Options
	logger      *applog.Logger
	detector    *security.Detector
	authLimiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, svc *services.Services) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		svc:    svc,
		opts:   opts,
		logger: logger.WithComponent(applog.ComponentHTTP),
		authLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.AuthRateLimit,
		}),
	}
	s.detector = security.NewDetector(s.reportSuspicious)

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = newCORS(opts.CORSOrigins).Handler(handler)
	handler = s.detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(logger, s.detector.ExtractClientIP, opts.Metrics).Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	limited := s.authLimiter.Middleware(s.detector.ExtractClientIP, s.rejectRateLimited)

	mux.Handle("POST /api/auth/register", limited(http.HandlerFunc(s.handleRegister)))
	mux.Handle("POST /api/auth/login", limited(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("GET /api/auth/me", s.requireAuth(s.handleMe))

	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/categories", s.requireAuth(s.handleListCategories))
	mux.HandleFunc("POST /api/categories", s.requireAuth(s.handleCreateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", s.requireAuth(s.handleDeleteCategory))

	mux.HandleFunc("POST /api/budget", s.requireAuth(s.handleUpsertBudget))
	mux.HandleFunc("GET /api/budget/{month}/{year}", s.requireAuth(s.handleGetBudget))

	mux.HandleFunc("POST /api/recurring", s.requireAuth(s.handleCreateRecurring))
	mux.HandleFunc("GET /api/recurring", s.requireAuth(s.handleListRecurring))
	mux.HandleFunc("DELETE /api/recurring/{id}", s.requireAuth(s.handleDeleteRecurring))

	mux.HandleFunc("GET /api/dashboard/stats", s.requireAuth(s.handleDashboardStats))
	mux.HandleFunc("GET /api/export/{format}", s.requireAuth(s.handleExport))

	if s.opts.DevUser != nil {
		mux.HandleFunc("GET /api/dev/token", s.handleDevToken)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics.Handler())
	}
}

// newCORS builds the CORS handler. Credentials are only allowed for an
// explicit origin list since browsers refuse them with a wildcard.
func newCORS(origins []string) *cors.Cors {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Disposition", trace.RequestIDHeader},
		AllowCredentials: !slices.Contains(origins, "*"),
	})
}

func (s *Server) reportSuspicious(r *http.Request, clientIP string) {
	s.opts.Metrics.Suspicious()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentSecurity).WarnContext(r.Context(),
		"Suspicious request",
		applog.FieldClientIP, clientIP,
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path,
		applog.FieldUserAgent, r.UserAgent())
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	s.opts.Metrics.RateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(),
		"Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	writeJSON(w, http.StatusTooManyRequests, errorBody{Detail: "Rate limit exceeded. Please try again later."})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
// Subsequent calls return nil.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.authLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
