package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"ipmonitor/internal/api/middleware"
	"ipmonitor/internal/api/response"
	av1 "ipmonitor/internal/api/v1"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Config represents status API configuration
type Config struct {
	Addr            string        `mapstructure:"addr" validate:"omitempty,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Debug           bool          `mapstructure:"debug"`
}

// Enabled reports whether the API should be served
func (c Config) Enabled() bool { return c.Addr != "" }

// Router handles all routing logic
type Router struct {
	engine *gin.Engine
	logger *zap.Logger
}

// NewRouter creates and configures a new router
func NewRouter(cfg Config, deps av1.Deps, logger *zap.Logger) *Router {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine: gin.New(),
		logger: logger,
	}

	m := middleware.New(logger)
	r.engine.Use(m.RequestID())
	r.engine.Use(m.Logger())
	r.engine.Use(m.Recovery())
	r.engine.Use(m.Secure())
	r.engine.Use(m.NoCache())

	r.engine.NoRoute(func(c *gin.Context) {
		response.New(c, logger).NotFound(errors.New("route not found"))
	})

	api := av1.NewAPI(deps, logger)
	r.engine.GET("/healthz", api.HealthCheck)
	api.RegisterRoutes(r.engine.Group("/api/v1"))

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Server runs the router on an HTTP listener
type Server struct {
	cfg    Config
	server *http.Server
	logger *zap.Logger
	wg     sync.WaitGroup
	addr   net.Addr
}

// NewServer creates a status server
func NewServer(cfg Config, deps av1.Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("api")
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}

	return &Server{
		cfg:    cfg,
		logger: logger,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           NewRouter(cfg, deps, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Start listens and serves in the background. Listen errors are returned
// synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	s.addr = ln.Addr()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("Starting status server", zap.String("address", s.addr.String()))
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() net.Addr {
	return s.addr
}

// Stop gracefully shuts the server down
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	s.wg.Wait()
	return nil
}
