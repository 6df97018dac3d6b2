// Package host serves legacy pages over HTTP with the profiling pipeline
// attached. Every request gets its own hooks, output buffer, request stack
// and dispatcher; profile storage, metrics and the logger are shared.
package host

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"github.com/karloscodes/webprofiler"
	"github.com/karloscodes/webprofiler/bridge"
	"github.com/karloscodes/webprofiler/config"
	"github.com/karloscodes/webprofiler/kernel"
	"github.com/karloscodes/webprofiler/middleware"
	"github.com/karloscodes/webprofiler/profiler"
)

// ProfilerPrefix is where profiles are served.
const ProfilerPrefix = "/_profiler/"

// ServerConfig configures a Server.
type ServerConfig struct {
	// Core dependencies (required)
	Config *config.Config
	Logger webprofiler.Logger

	// Storage receives profiles. Defaults to an in-memory storage bounded by
	// Config.ProfilerMaxProfiles.
	Storage profiler.Storage

	// Metrics defaults to a fresh registry when Config.MetricsEnabled.
	Metrics *Metrics

	// Fiber configuration
	ErrorHandler fiber.ErrorHandler
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Middleware configuration
	EnableRequestID     bool
	EnableRecover       bool
	EnableHelmet        bool
	EnableRequestLogger bool

	// ProfilerRateLimit caps profiler endpoint hits per second per IP.
	ProfilerRateLimit int
}

// DefaultServerConfig returns a configuration with every middleware enabled.
func DefaultServerConfig(cfg *config.Config, logger webprofiler.Logger) *ServerConfig {
	return &ServerConfig{
		Config:              cfg,
		Logger:              logger,
		ReadTimeout:         30 * time.Second,
		WriteTimeout:        30 * time.Second,
		EnableRequestID:     true,
		EnableRecover:       true,
		EnableHelmet:        true,
		EnableRequestLogger: true,
		ProfilerRateLimit:   50,
	}
}

// Server runs legacy pages and the native front controller.
type Server struct {
	app     *fiber.App
	cfg     *ServerConfig
	logger  webprofiler.Logger
	storage profiler.Storage
	metrics *Metrics

	// stopwatch holds one section per in-flight request.
	stopwatch *kernel.Stopwatch
}

// NewServer creates a server and registers the profiler and metrics routes.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("host: config is required")
	}
	if cfg.Config == nil {
		return nil, errors.New("host: runtime config is required")
	}
	if cfg.Logger == nil {
		return nil, errors.New("host: logger is required")
	}

	fiberCfg := fiber.Config{
		DisableDefaultDate:    true,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
	}
	if cfg.ErrorHandler != nil {
		fiberCfg.ErrorHandler = cfg.ErrorHandler
	} else {
		fiberCfg.ErrorHandler = ErrorHandler(cfg.Logger, cfg.Config.IsDevelopment())
	}

	s := &Server{
		app:       fiber.New(fiberCfg),
		cfg:       cfg,
		logger:    cfg.Logger,
		storage:   cfg.Storage,
		metrics:   cfg.Metrics,
		stopwatch: kernel.NewStopwatch(),
	}
	if s.storage == nil {
		s.storage = profiler.NewMemoryStorage(cfg.Config.ProfilerMaxProfiles)
	}
	if s.metrics == nil && cfg.Config.MetricsEnabled {
		s.metrics = NewMetrics()
	}

	s.setupGlobalMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupGlobalMiddleware() {
	if s.cfg.EnableRequestID {
		s.app.Use(requestid.New())
	}
	if s.cfg.EnableRecover {
		s.app.Use(middleware.Recover(s.logger))
	}
	if s.cfg.EnableHelmet {
		s.app.Use(middleware.Helmet())
	}
	if s.cfg.EnableRequestLogger {
		s.app.Use(middleware.RequestLogger(s.logger, "/metrics", ProfilerPrefix))
	}
}

func (s *Server) setupRoutes() {
	if s.cfg.Config.ProfilerEnabled {
		profiles := s.app.Group("/_profiler", middleware.RateLimiter(middleware.WithMax(s.cfg.ProfilerRateLimit)))
		profiles.Get("/", s.listProfiles)
		profiles.Get("/:token", s.showProfile)
		profiles.Delete("/", middleware.SecFetchSite(), s.purgeProfiles)
	}
	if s.metrics != nil {
		s.app.Get("/metrics", s.metrics.Handler())
	}
}

// Page registers a legacy page for every method on path.
func (s *Server) Page(path string, page PageFunc) {
	s.app.All(path, s.servePage(page))
}

// FrontController registers the native front controller on path.
func (s *Server) FrontController(path string, controller Controller) {
	s.app.All(path, s.serveNative(controller))
}

// App returns the underlying Fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Storage returns the profile storage.
func (s *Server) Storage() profiler.Storage { return s.storage }

// Metrics returns the metrics, nil when disabled.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	port := s.cfg.Config.GetPort()
	s.logger.Info("Server started and ready to accept requests",
		"port", port,
		"front_controller", s.frontController(),
		"profiler", s.cfg.Config.ProfilerEnabled,
	)
	if err := s.app.Listen(":" + port); err != nil {
		return fmt.Errorf("host: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan error, 1)
	go func() {
		done <- s.app.Shutdown()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func (s *Server) frontController() string {
	if fc := s.cfg.Config.FrontController; fc != "" {
		return fc
	}
	return bridge.DefaultFrontController
}
