// Package server provides the HTTP handlers and routing for the MCP server.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"chat-help-mcp/internal/dispatch"
)

// DefaultMaxBodyBytes caps request bodies when Config leaves it unset.
const DefaultMaxBodyBytes = 1 << 20

// Config contains transport settings.
type Config struct {
	MaxBodyBytes int64
	Logger       log.FieldLogger
}

// Server contains the configured router and the dispatcher every surface delegates to.
type Server struct {
	cfg        Config
	router     *chi.Mux
	dispatcher *dispatch.Dispatcher
	streams    *streamHub
	logger     log.FieldLogger
}

// New constructs a Server with middleware and routes configured.
func New(d *dispatch.Dispatcher, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = log.StandardLogger()
	}
	s := &Server{
		cfg:        cfg,
		router:     chi.NewRouter(),
		dispatcher: d,
		streams:    newStreamHub(),
		logger:     cfg.Logger,
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors)

	s.router.Post("/", s.handleRPC)
	s.router.Post("/mcp", s.handleRPC)
	s.router.Get("/", s.handleRoot)
	s.router.Get("/mcp", s.handleRoot)

	s.router.Post("/initialize", s.handleInitialize)
	s.router.Get("/tools", s.handleListTools)
	s.router.Post("/tools/call", s.handleCallTool)

	s.router.Get("/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", d.Metrics().Handler())

	s.router.Get("/sse", s.handleStream)
	s.router.Post("/messages", s.handleStreamMessage)
	s.router.Get("/ws", s.handleWebSocket)

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// Close ends every open push stream so Shutdown does not wait on them.
func (s *Server) Close() {
	s.streams.closeAll()
}
