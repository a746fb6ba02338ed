package inspect

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"diagflow/internal/constants"
	"diagflow/pkg/counter"
	"diagflow/pkg/diag"
	"diagflow/pkg/health"
	"diagflow/pkg/logger"
	"diagflow/pkg/metrics"
	"diagflow/pkg/middleware"
	"diagflow/pkg/perf"
	"diagflow/pkg/ratelimit"
	"diagflow/pkg/tracing"
)

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type Config struct {
	Enabled   bool            `mapstructure:"enabled"`
	Port      int             `mapstructure:"port"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type Server struct {
	cfg      Config
	logger   logger.Logger
	router   *gin.Engine
	server   *http.Server
	limiters *ratelimit.ClientLimiters
	perf     *perf.Manager
	counter  *counter.Counter
}

type ServerOption func(*Server)

// WithTracing adds the OpenTelemetry gin middleware.
func WithTracing(serviceName string) ServerOption {
	return func(s *Server) {
		s.router.Use(tracing.GinMiddleware(serviceName))
	}
}

// WithTools exposes the performance events and object counters. Either may
// be nil.
func WithTools(perfs *perf.Manager, objects *counter.Counter) ServerOption {
	return func(s *Server) {
		s.perf = perfs
		s.counter = objects
	}
}

func NewServer(cfg Config, p *diag.Pipeline, checks *health.CheckerRegistry, log logger.Logger, opts ...ServerOption) *Server {
	if cfg.Port == 0 {
		cfg.Port = constants.DefaultInspectorPort
	}
	if log == nil {
		log = logger.NopLogger()
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{cfg: cfg, logger: log, router: gin.New()}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RecoveryMiddleware(log))
	s.router.Use(middleware.RequestIDMiddleware())
	s.router.Use(middleware.LoggerMiddleware(log))

	if cfg.RateLimit.Enabled {
		s.limiters = ratelimit.NewClientLimiters(ratelimit.RateLimitConfig{
			RPS:             cfg.RateLimit.RPS,
			Burst:           cfg.RateLimit.Burst,
			CleanupInterval: time.Duration(cfg.RateLimit.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(cfg.RateLimit.MaxAge) * time.Second,
		})
		s.router.Use(s.limiters.Middleware())
		log.InfowCtx(context.Background(), "Rate limiting enabled", "rps", cfg.RateLimit.RPS, "burst", cfg.RateLimit.Burst)
	}

	metrics.RegisterPipelineMetrics()
	metrics.RegisterCircuitBreakerMetrics()
	metrics.RegisterInspectorMetrics()
	metrics.RegisterToolMetrics()

	h := NewHandler(p, checks, log)
	h.perf = s.perf
	h.counter = s.counter
	h.RegisterRoutes(s.router)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: constants.DefaultHTTPTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is done, then shuts the server down.
func (s *Server) Run(ctx context.Context) error {
	if s.limiters != nil {
		go s.limiters.RunCleanup(ctx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.InfowCtx(ctx, "Inspector listening", "port", s.cfg.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("inspector server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errChan:
		return err
	}
}

func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("inspector shutdown error: %w", err)
	}
	s.logger.InfowCtx(shutdownCtx, "Inspector stopped")
	return nil
}
