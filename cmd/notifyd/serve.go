package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/orchestra-mcp/notify/providers"
	"github.com/orchestra-mcp/notify/src/bridge"
	"github.com/spf13/cobra"
)

var serveRedis bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the notification hub and its HTTP endpoints",
	Long: `Run the websocket hub on /ws along with the admin routes and /metrics.

The Redis bridge is enabled with --redis or when REDIS_ADDR or REDIS_URL
is set. An
unreachable Redis leaves the server running standalone.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveRedis, "redis", false, "fan out through the Redis bridge")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv := providers.NewServer(cfg.Socket, logger)
	var redisCfg *bridge.RedisConfig
	if serveRedis || os.Getenv("REDIS_ADDR") != "" || os.Getenv("REDIS_URL") != "" {
		redisCfg = bridge.RedisConfigFromEnv()
	}
	srv.Activate(redisCfg)

	serveErr := srv.ListenAndServe(ctx)
	if err := srv.Deactivate(); err != nil {
		logger.Warn().Err(err).Msg("deactivate")
	}
	logger.Info().Msg("server stopped")
	return serveErr
}
