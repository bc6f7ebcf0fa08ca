package providers

import (
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const (
	wsPath      = "/ws"
	metricsPath = "/metrics"
)

// RegisterRoutes registers the JSON routes via Fiber.
// The WebSocket upgrade and /metrics are served by Handler directly,
// since Fiber v3 does not expose *fasthttp.RequestCtx.
func (s *Server) RegisterRoutes(group fiber.Router) {
	group.Get("/healthz", s.handleHealth)
	group.Get("/ws/info", s.handleInfo)
	group.Get("/ws/clients", s.handleListClients)
	group.Get("/ws/topics", s.handleListTopics)
	group.Post("/notify", s.handleNotify)
	group.Post("/publish", s.handlePublish)
}

// Handler routes websocket upgrades and metrics scrapes ahead of the Fiber app.
func (s *Server) Handler() fasthttp.RequestHandler {
	app := s.app.Handler()
	ws := s.FastHTTPHandler()
	scrape := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case wsPath:
			ws(ctx)
		case metricsPath:
			scrape(ctx)
		default:
			app(ctx)
		}
	}
}

func (s *Server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "active": s.IsActive()})
}

func (s *Server) handleInfo(c fiber.Ctx) error {
	bridged := s.bridge != nil && s.bridge.Available()
	return c.JSON(fiber.Map{
		"websocket": true,
		"endpoint":  wsPath,
		"clients":   s.hub.ClientCount(),
		"topics":    len(s.hub.Topics()),
		"bridged":   bridged,
	})
}

// FastHTTPHandler returns a raw fasthttp handler for WebSocket upgrades.
// The optional "topics" query parameter is a comma separated list of
// topics to join on top of the global one.
func (s *Server) FastHTTPHandler() fasthttp.RequestHandler {
	upgrader := websocket.FastHTTPUpgrader{
		ReadBufferSize:  s.cfg.ReadBufferSize,
		WriteBufferSize: s.cfg.WriteBufferSize,
		// Development endpoint: dashboards are served from another origin.
		CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
	}

	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			ctx.SetStatusCode(fasthttp.StatusUpgradeRequired)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"upgrade_required","message":"WebSocket upgrade required"}`)
			return
		}
		if !s.acquireSlot() {
			ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"error":"too_many_connections","message":"connection limit reached"}`)
			return
		}

		clientID := uuid.New().String()
		topics := parseTopics(string(ctx.QueryArgs().Peek("topics")))
		userAgent := string(ctx.UserAgent())
		h := s.hub
		writeTimeout := s.cfg.WriteTimeout

		err := upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			defer s.releaseSlot()
			client := hub.NewClient(clientID, transport.Wrap(conn, writeTimeout), h, topics...)
			client.UserAgent = userAgent
			h.Register(client)
			go client.WritePump()
			client.ReadPump()
		})
		if err != nil {
			s.releaseSlot()
			s.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

func parseTopics(raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
