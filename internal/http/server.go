package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/buildinfo"
	"roadwiki/app/internal/users"
	"roadwiki/app/internal/wiki"
)

// HealthChecker reports whether the storage backend is reachable.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// Options configures the HTTP server wiring.
type Options struct {
	Users       users.Service
	Wiki        wiki.Service
	Health      HealthChecker
	Logger      *logrus.Logger
	SentryHub   *sentry.Hub
	RateLimiter RateLimiterSettings
	// APIKeys grant access to /api routes. With no keys the REST API is disabled.
	APIKeys []string
	// Gatherer backs /metrics; defaults to the Prometheus default gatherer.
	Gatherer prometheus.Gatherer
}

// RateLimiterSettings configures the HTTP rate limiter behaviour.
type RateLimiterSettings struct {
	RequestsPerSecond float64
	Burst             int
	ClientTTL         time.Duration
}

// Server wires the HTTP transport layer via Huma.
type Server struct {
	api         huma.API
	mux         *stdhttp.ServeMux
	users       users.Service
	wiki        wiki.Service
	health      HealthChecker
	logger      *logrus.Logger
	sentry      *sentry.Hub
	rateLimiter *RateLimiter
	apiKeys     [][]byte
}

// NewServer constructs the HTTP server.
func NewServer(opts Options) (*Server, error) {
	if opts.Users == nil {
		return nil, eris.New("user service is required")
	}
	if opts.Wiki == nil {
		return nil, eris.New("wiki service is required")
	}
	if opts.Health == nil {
		return nil, eris.New("health checker is required")
	}

	mux := stdhttp.NewServeMux()
	config := huma.DefaultConfig("roadwiki", buildinfo.Version)

	api := humago.New(mux, config)

	srv := &Server{
		api:    api,
		mux:    mux,
		users:  opts.Users,
		wiki:   opts.Wiki,
		health: opts.Health,
		logger: opts.Logger,
		sentry: opts.SentryHub,
	}

	for _, key := range opts.APIKeys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			srv.apiKeys = append(srv.apiKeys, []byte(trimmed))
		}
	}

	settings := opts.RateLimiter
	if settings.Burst <= 0 {
		return nil, eris.New("rate limiter burst must be greater than zero")
	}
	if settings.RequestsPerSecond <= 0 {
		return nil, eris.New("rate limiter requests per second must be greater than zero")
	}
	if settings.ClientTTL <= 0 {
		return nil, eris.New("rate limiter client TTL must be greater than zero")
	}

	srv.rateLimiter = NewRateLimiter(settings.Burst, settings.RequestsPerSecond, settings.ClientTTL)

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv.registerMiddlewares()
	srv.registerRoutes()

	return srv, nil
}

// Handler exposes the underlying HTTP handler for wiring into the application.
func (s *Server) Handler() stdhttp.Handler {
	return s.mux
}

// API exposes the underlying Huma API instance.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) registerMiddlewares() {
	s.api.UseMiddleware(
		s.sentryMiddleware(),
		s.recoveryMiddleware(),
		s.requestIDMiddleware(),
		s.rateLimitMiddleware(),
		s.loggingMiddleware(),
		s.apiKeyMiddleware(),
	)
}

func (s *Server) registerRoutes() {
	s.registerSystemRoutes()
	s.registerUserRoutes()
	s.registerPageRoutes()
	s.registerSettingsRoutes()
}

func (s *Server) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	s.mux.ServeHTTP(w, r)
}

// RESTEnabled reports whether any API key is configured.
func (s *Server) RESTEnabled() bool {
	return len(s.apiKeys) > 0
}
