package providers

import (
	"context"
	"errors"
	"net"
	"sync/atomic"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/bridge"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Server is the notification endpoint dashboards connect to.
type Server struct {
	active   atomic.Bool
	conns    atomic.Int64
	cfg      config.SocketConfig
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	hub      *hub.Hub
	service  *service.Service
	bridge   bridge.Bridge
	app      *fiber.App
}

// NewServer wires the hub, service, metrics and HTTP routes.
func NewServer(cfg config.SocketConfig, logger zerolog.Logger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	h := hub.New(logger, hub.WithSendBuffer(cfg.SendBuffer), hub.WithMetrics(m))

	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		registry: reg,
		metrics:  m,
		hub:      h,
		service:  service.New(h, logger),
		app:      fiber.New(fiber.Config{AppName: "notifyd"}),
	}
	s.RegisterRoutes(s.app)
	return s
}

// Activate starts the hub event loop and, when redisCfg is non-nil, the
// Redis bridge. An unreachable Redis leaves the server standalone.
func (s *Server) Activate(redisCfg *bridge.RedisConfig) {
	go s.hub.Run()
	if redisCfg != nil {
		s.initBridge(redisCfg)
	}
	s.active.Store(true)
	s.logger.Info().Msg("notification server activated")
}

// initBridge tries to start the Redis pub/sub bridge.
func (s *Server) initBridge(cfg *bridge.RedisConfig) {
	rb := bridge.NewRedisBridge(cfg, s.hub, s.logger)
	if err := rb.Start(); err != nil {
		s.logger.Warn().Err(err).Msg("redis bridge unavailable, running standalone")
		_ = rb.Stop()
		return
	}
	s.bridge = rb
	s.hub.SetBridge(rb)
	s.logger.Info().Str("redis_addr", cfg.Addr).Msg("redis bridge connected")
}

// Deactivate stops the bridge and hub event loop.
func (s *Server) Deactivate() error {
	var err error
	if s.bridge != nil {
		if err = s.bridge.Stop(); err != nil {
			s.logger.Error().Err(err).Msg("bridge stop error")
		}
		s.bridge = nil
	}
	s.hub.Stop()
	s.active.Store(false)
	return err
}

// IsActive reports whether Activate has run without a later Deactivate.
func (s *Server) IsActive() bool { return s.active.Load() }

// acquireSlot reserves one websocket connection against MaxConnections.
// Every successful call must be paired with releaseSlot.
func (s *Server) acquireSlot() bool {
	n := s.conns.Add(1)
	if s.cfg.MaxConnections > 0 && n > int64(s.cfg.MaxConnections) {
		s.conns.Add(-1)
		return false
	}
	return true
}

func (s *Server) releaseSlot() { s.conns.Add(-1) }

// Service exposes the push API for in-process callers.
func (s *Server) Service() *service.Service { return s.service }

// Registry returns the Prometheus registry served on /metrics.
func (s *Server) Registry() *prometheus.Registry { return s.registry }

// Metrics returns the collectors shared with in-process channels.
func (s *Server) Metrics() *metrics.Metrics { return s.metrics }

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &fasthttp.Server{
		Handler:         s.Handler(),
		Name:            "notifyd",
		ReadBufferSize:  4096,
		WriteTimeout:    s.cfg.WriteTimeout,
		CloseOnShutdown: true,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		// Hijacked websocket connections only end when their clients close.
		s.hub.Stop()
		if err := srv.Shutdown(); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	}
}

// ListenAndServe listens on the configured address and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}
