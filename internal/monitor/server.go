// Package monitor is the read-mostly HTTP+WebSocket introspection
// surface for a running node: alias table, interface status, and a live
// tap of decoded messages, plus one JWT-guarded mutating endpoint to
// force an arbitration restart. It generalizes the teacher's fiber app
// wiring (internal/api) and websocket.Hub to this node's domain.
package monitor

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/edgeflow/lccstack/internal/aliasmap"
	"github.com/edgeflow/lccstack/internal/arbiter"
	"github.com/edgeflow/lccstack/internal/lccmsg"
	"github.com/edgeflow/lccstack/internal/telemetry"
)

// Config wires the server to the running node's collaborators.
type Config struct {
	Log       *zap.Logger
	AliasMap  *aliasmap.AliasMap
	Arbiter   *arbiter.AliasArbiter
	Counters  *telemetry.Counters
	JWT       JWTConfig
	BindAddr  string
}

// Server is the monitor's fiber app plus its websocket hub.
type Server struct {
	log      *zap.Logger
	app      *fiber.App
	hub      *hub
	aliases  *aliasmap.AliasMap
	arb      *arbiter.AliasArbiter
	counters *telemetry.Counters
	bindAddr string
}

// New builds a Server. Call TapMessage from the node's inbound dispatch
// path to feed the live websocket view; call Start to begin serving.
func New(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		log:      log,
		hub:      newHub(),
		aliases:  cfg.AliasMap,
		arb:      cfg.Arbiter,
		counters: cfg.Counters,
		bindAddr: cfg.BindAddr,
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/v1/health", s.handleHealth)
	app.Get("/v1/aliases", s.handleAliases)
	app.Get("/v1/interface/status", s.handleStatus)

	app.Use("/v1/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/v1/ws", websocket.New(s.hub.handleConn))

	guarded := app.Group("/v1", jwtMiddleware(cfg.JWT))
	guarded.Post("/arbiter/restart", s.handleArbiterRestart)

	s.app = app
	return s
}

// TapMessage broadcasts msg to every connected monitor websocket client.
// Intended to be called from the interface's inbound dispatch path; it
// never blocks (BroadcastMessage drops on a full client buffer).
func (s *Server) TapMessage(msg lccmsg.Message) {
	s.hub.BroadcastMessage(msg)
}

// TapLog broadcasts one log entry to every connected monitor websocket
// client. Intended to be wired to logger.SetBroadcaster so the live tap
// mirrors the node's own log stream.
func (s *Server) TapLog(level, message string, fields map[string]interface{}) {
	s.hub.BroadcastLog(level, message, fields)
}

// Start begins serving on the configured bind address. Blocks until the
// listener stops; run it in its own goroutine.
func (s *Server) Start() error {
	return s.app.Listen(s.bindAddr)
}

// Shutdown gracefully stops the server within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleAliases(c *fiber.Ctx) error {
	entries := s.aliases.Snapshot()
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, fiber.Map{
			"alias":   e.Alias.String(),
			"node_id": e.NodeID.String(),
		})
	}
	return c.JSON(fiber.Map{"aliases": out})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := fiber.Map{
		"websocket_clients": s.hub.ClientCount(),
	}
	if s.arb != nil {
		resp["arbiter_state"] = s.arb.State().String()
		resp["arbiter_alias"] = s.arb.Alias().String()
	}
	if s.counters != nil {
		resp["counters"] = s.counters.Snapshot()
	}
	return c.JSON(resp)
}

func (s *Server) handleArbiterRestart(c *fiber.Ctx) error {
	if s.arb == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no arbiter configured"})
	}
	if err := s.arb.Start(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "restarting"})
}
