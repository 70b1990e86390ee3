package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"budget/internal/log"
	"budget/internal/metrics"
	"budget/internal/middleware/ratelimit"
	"budget/internal/middleware/security"
	"budget/internal/middleware/trace"
	"budget/internal/services"
	appweb "budget/web"
)

// maxBodyBytes bounds form and JSON bodies.
const maxBodyBytes = 16 << 10

// ReadyFunc reports whether a dependency can serve traffic.
type ReadyFunc func(ctx context.Context) error

// Options carries the optional collaborators of a Server.
type Options struct {
	RateLimitPerMinute int
	Metrics            *metrics.Metrics
	Logger             *log.Logger
	// Ready is the ledger backend check used by /readyz.
	Ready ReadyFunc
	// Now replaces time.Now for the date header and uptime.
	Now func() time.Time
}

type Server struct {
	http.Server
	service   *services.BudgetService
	templates *template.Template
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	ready     ReadyFunc
	logger    *log.Logger
	now       func() time.Time
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, svc *services.BudgetService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Server{
		service:  svc,
		metrics:  opts.Metrics,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector: security.NewDetector(),
		ready:    opts.Ready,
		logger:   opts.Logger.WithComponent(log.ComponentHTTP),
		now:      opts.Now,
	}
	s.startedAt = s.now()

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	var traceOpts []trace.Option
	if s.metrics != nil {
		traceOpts = append(traceOpts, trace.WithObserver(func(method string, status int, d time.Duration) {
			s.metrics.ObserveRequest(method, status, d.Seconds())
		}))
	}

	r.Use(trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, traceOpts...).Middleware)
	r.Use(log.ComponentMiddleware(log.ComponentHTTP))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.MutatingOnly, s.handleRateLimited))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.Handle("/static/*", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	r.Get("/", s.handleIndex)
	r.Post("/entries", s.handleCreateEntry)
	r.Delete("/entries/{category}/{id}", s.handleRemoveEntry)
	r.Post("/entries/{category}/{id}", s.handleRemoveEntry)
	r.Get("/ui/totals", s.handleTotalsPartial)

	r.Route("/api", func(r chi.Router) {
		r.Get("/totals", s.handleAPITotals)
		r.Get("/entries", s.handleAPIEntries)
	})

	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	if wantsJSON(r) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}
	TooManyRequestsError("Too many requests, slow down").Write(w)
}

// Shutdown stops the limiter and drains the HTTP server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
