// Package web serves the avatar control API and streams rendered frames
// to websocket clients.
package web

import (
	"context"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/protocol"
)

// Config configures the dashboard server.
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    string `mapstructure:"port" yaml:"port"`

	// StaticDir is served at / when set.
	StaticDir string `mapstructure:"static_dir" yaml:"static_dir"`

	// FrameDivisor broadcasts every Nth rendered frame. 1 streams all.
	FrameDivisor int `mapstructure:"frame_divisor" yaml:"frame_divisor"`
}

// DefaultConfig returns a disabled server on port 8080 streaming every
// second frame.
func DefaultConfig() Config {
	return Config{
		Enabled:      false,
		Port:         "8080",
		FrameDivisor: 2,
	}
}

// Server is the avatar dashboard server. It implements avatar.Renderer.
type Server struct {
	app  *fiber.App
	port string

	frameDivisor uint64

	// Hub for websocket broadcast (thread-safe!)
	avatarHub *hub.Hub
	hubOnce   sync.Once

	ctrlMu sync.RWMutex
	ctrl   avatar.Controller
}

// NewServer creates a new dashboard server
func NewServer(cfg Config) *Server {
	if cfg.FrameDivisor <= 0 {
		cfg.FrameDivisor = 1
	}

	s := &Server{
		port:         cfg.Port,
		frameDivisor: uint64(cfg.FrameDivisor),
		avatarHub:    hub.New("avatar"),
	}
	s.avatarHub.OnMessage(s.handleClientMessage)

	app := fiber.New(fiber.Config{
		AppName:               "Avatar Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	// API routes
	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/talk", s.handleTalk)
	api.Post("/talk/stop", s.handleTalkStop)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/avatar", websocket.New(s.handleAvatarWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Attach binds the avatar controlled by this server.
func (s *Server) Attach(ctrl avatar.Controller) {
	s.ctrlMu.Lock()
	defer s.ctrlMu.Unlock()
	s.ctrl = ctrl
}

func (s *Server) controller() avatar.Controller {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	return s.ctrl
}

func (s *Server) startHub() {
	s.hubOnce.Do(func() { go s.avatarHub.Run() })
}

// Start starts the web server and blocks until it stops.
func (s *Server) Start() error {
	log.Info("web dashboard listening", "url", "http://localhost:"+s.port)
	s.startHub()
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the web server in a goroutine
func (s *Server) StartAsync() {
	s.startHub()
	go func() {
		if err := s.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()
}

// Shutdown gracefully stops the web server and disconnects clients.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.avatarHub.Stop()
	return err
}

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	return s.avatarHub.ClientCount()
}

// RenderFrame broadcasts a frame to websocket clients.
func (s *Server) RenderFrame(_ context.Context, f avatar.Frame) error {
	if f.Seq%s.frameDivisor != 0 || s.avatarHub.ClientCount() == 0 {
		return nil
	}

	msg, err := protocol.NewFrameMessage(frameData(f))
	if err != nil {
		return err
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	s.avatarHub.Broadcast(hub.NewJSONMessage(data))
	return nil
}

func frameData(f avatar.Frame) protocol.FrameData {
	bones := make([]protocol.BoneData, len(f.Bones))
	for i, b := range f.Bones {
		bones[i] = protocol.BoneData{
			Name:     b.Name,
			Position: [3]float64{b.Position.X(), b.Position.Y(), b.Position.Z()},
			Rotation: [4]float64{b.Rotation.X(), b.Rotation.Y(), b.Rotation.Z(), b.Rotation.W},
		}
	}
	return protocol.FrameData{
		AvatarID:    f.AvatarID,
		Seq:         f.Seq,
		ClockMs:     f.Clock.Milliseconds(),
		RootYaw:     f.RootYaw,
		Talking:     f.Talking,
		Bones:       bones,
		Expressions: f.Expressions,
	}
}
