package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tesoreria/internal/backend"
	"tesoreria/internal/cache"
	"tesoreria/internal/log"
	"tesoreria/internal/middleware/ratelimit"
	"tesoreria/internal/middleware/security"
	"tesoreria/internal/middleware/trace"
	"tesoreria/internal/services"
)

const (
	exportCacheSize = 32
	exportCacheTTL  = 5 * time.Minute
	cacheSweepEvery = time.Minute
)

// Server is the JSON API over a ledger service.
type Server struct {
	http.Server
	svc    *services.LedgerService
	pinger backend.Pinger
	logger *log.Logger
	access *log.StructuredLogger

	rateLimit   ratelimit.Config
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware
	headers     *security.HeadersMiddleware

	// Rendered exports keyed by ledger version, filter and format
	exportCache  *cache.LRUCache[services.Export]
	cacheManager *cache.Manager

	metrics      appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime         time.Time
	movementsAdded int64
	closingsSaved  int64
}

// Option configures a Server.
type Option func(*Server)

// WithPinger makes /readyz check the store.
func WithPinger(p backend.Pinger) Option {
	return func(s *Server) { s.pinger = p }
}

// WithLogger replaces the logger built from the slog default.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		s.logger = log.New(log.Config{Handler: l.Handler(), Component: log.ComponentHTTP})
	}
}

// WithRateLimit overrides the write rate limit.
func WithRateLimit(c ratelimit.Config) Option {
	return func(s *Server) { s.rateLimit = c }
}

// NewServer wires the routes and middleware. Call Shutdown to release the
// background goroutines it starts.
func NewServer(addr string, svc *services.LedgerService, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:          svc,
		logger:       log.New(log.Config{Handler: slog.Default().Handler(), Component: log.ComponentHTTP}),
		rateLimit:    ratelimit.DefaultConfig(),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		exportCache:  cache.NewLRUCache[services.Export](exportCacheSize, exportCacheTTL),
		cacheManager: cache.NewManager(),
		metrics:      appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.access = log.NewStructuredLogger(s.logger)
	s.rateLimiter = ratelimit.NewLimiter(s.rateLimit)
	s.tracer = trace.NewMiddleware(extractClientIP, s.logCompletion)

	s.cacheManager.Register(s.exportCache)
	s.cacheManager.StartCleanup(cacheSweepEvery)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/movements", s.handleListMovements)
	mux.HandleFunc("POST /api/movements", s.handleCreateMovement)
	mux.HandleFunc("DELETE /api/movements/{id}", s.handleDeleteMovement)
	mux.HandleFunc("GET /api/balance", s.handleBalance)

	mux.HandleFunc("GET /api/session", s.handleGetSession)
	mux.HandleFunc("PUT /api/session/date", s.handleSetSessionDate)
	mux.HandleFunc("POST /api/session/confirm", s.handleConfirmSession)
	mux.HandleFunc("POST /api/session/{kind}", s.handleStage)
	mux.HandleFunc("DELETE /api/session/items/{id}", s.handleUnstage)

	mux.HandleFunc("GET /api/report", s.handleGetReport)
	mux.HandleFunc("PUT /api/report/range", s.handleSetRange)
	mux.HandleFunc("DELETE /api/report/range", s.handleClearRange)
	mux.HandleFunc("POST /api/report/reset", s.handleResetRange)
	mux.HandleFunc("GET /api/report/export", s.handleExport)

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(extractClientIP, ratelimit.Writes, s.onRateLimited)(h)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	h = s.headers.Middleware(h)
	s.Handler = h

	return s
}

func (s *Server) logCompletion(ctx context.Context, c trace.Completion) {
	s.access.LogHTTPEnd(ctx, c.Request, c.Status, c.Duration.Milliseconds(), c.ClientIP)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, extractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}

// Shutdown stops the background goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
