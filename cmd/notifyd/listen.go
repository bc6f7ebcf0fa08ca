package main

import (
	"context"
	"errors"
	"net"
	"os/signal"
	"sync"
	"syscall"

	"github.com/orchestra-mcp/notify/config"
	"github.com/orchestra-mcp/notify/src/channel"
	"github.com/orchestra-mcp/notify/src/metrics"
	"github.com/orchestra-mcp/notify/src/toast"
	"github.com/orchestra-mcp/notify/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"golang.org/x/sync/errgroup"
)

var (
	listenEndpoint    string
	listenMetricsAddr string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Connect to a notification endpoint and log every toast",
	Long: `Keep a channel open to the endpoint and log each notification as a toast.

The endpoint comes from --endpoint, NOTIFY_WS_ENDPOINT or channel.endpoint in
the config file. With --config the file is watched and the channel is
re-created whenever its channel settings change.`,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenEndpoint, "endpoint", "", "websocket endpoint, e.g. ws://localhost:8090/ws")
	listenCmd.Flags().StringVar(&listenMetricsAddr, "metrics-addr", "", "serve channel metrics on this address")
}

// listener owns the current channel and swaps it when the config changes.
type listener struct {
	logger  zerolog.Logger
	toaster toast.Toaster
	metrics *metrics.Metrics

	mu  sync.Mutex
	cfg config.ChannelConfig
	ch  *channel.Channel
}

func newListener(cfg config.ChannelConfig, toaster toast.Toaster, m *metrics.Metrics, logger zerolog.Logger) *listener {
	return &listener{logger: logger, toaster: toaster, metrics: m, cfg: cfg}
}

func (l *listener) start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.startLocked()
}

func (l *listener) startLocked() error {
	ch := channel.New(l.cfg, l.toaster,
		channel.WithLogger(l.logger),
		channel.WithMetrics(l.metrics),
		channel.WithStateListener(func(from, to types.State) {
			l.logger.Debug().Stringer("from", from).Stringer("to", to).Msg("channel state")
		}),
	)
	if err := ch.Connect(l.cfg.Endpoint); err != nil {
		return err
	}
	l.ch = ch
	return nil
}

// reload re-creates the channel when its settings changed.
func (l *listener) reload(cfg config.ChannelConfig) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cfg == l.cfg {
		return nil
	}
	l.logger.Info().Str("endpoint", cfg.Endpoint).Msg("channel config changed, reconnecting")
	if l.ch != nil {
		l.ch.Dispose()
		l.ch = nil
	}
	l.cfg = cfg
	return l.startLocked()
}

func (l *listener) current() *channel.Channel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

func (l *listener) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ch != nil {
		l.ch.Dispose()
		l.ch = nil
	}
}

func runListen(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenEndpoint != "" {
		cfg.Channel.Endpoint = listenEndpoint
	}
	if cfg.Channel.Endpoint == "" {
		return errors.New("no endpoint: set --endpoint, NOTIFY_WS_ENDPOINT or channel.endpoint")
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	queue := toast.NewQueue(toast.NewLog(logger), cfg.Channel.ToastBuffer, logger)
	defer queue.Close()

	l := newListener(cfg.Channel, queue, metrics.New(reg), logger)
	if err := l.start(); err != nil {
		return err
	}
	defer l.stop()

	g, gctx := errgroup.WithContext(ctx)
	if configPath != "" {
		g.Go(func() error {
			return config.Watch(gctx, configPath, logger, func(next *config.Config) {
				if listenEndpoint != "" {
					next.Channel.Endpoint = listenEndpoint
				}
				if err := l.reload(next.Channel); err != nil {
					logger.Error().Err(err).Msg("reload channel")
				}
			})
		})
	}
	if listenMetricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, listenMetricsAddr, reg) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// serveMetrics exposes reg on addr until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &fasthttp.Server{
		Handler: fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		Name:    "notifyd-listen",
	}
	go func() {
		<-ctx.Done()
		_ = srv.Shutdown()
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
