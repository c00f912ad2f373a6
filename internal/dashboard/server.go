package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sprintforge/sprintforge/internal/chatsvc"
	"github.com/sprintforge/sprintforge/internal/eventbus"
	"github.com/sprintforge/sprintforge/internal/forge"
	"github.com/sprintforge/sprintforge/internal/session"
	"github.com/sprintforge/sprintforge/internal/sprintrunner"
	"github.com/sprintforge/sprintforge/web"
)

// Server is the sprintforge dashboard HTTP server: JSON API, SSE fallback
// feed, websocket hub, and the embedded SPA.
type Server struct {
	port        int
	projectPath string
	slug        string
	multiRepo   bool
	logger      *slog.Logger

	bus    *eventbus.Bus
	runner *sprintrunner.Runner
	forge  forge.Adapter
	chat   *chatsvc.Service
	hitl   *session.Controller

	sseHub *SSEHub
	wsHub  *WSHub
}

// Config holds the dependencies the dashboard server wires against a
// running sprint.
type Config struct {
	Port        int
	ProjectPath string
	Slug        string
	MultiRepo   bool
	Bus         *eventbus.Bus
	Runner      *sprintrunner.Runner
	Forge       forge.Adapter
	Chat        *chatsvc.Service
	HITL        *session.Controller
	Logger      *slog.Logger
}

// New creates a Server from cfg.
func New(cfg Config) *Server {
	return &Server{
		port:        cfg.Port,
		projectPath: cfg.ProjectPath,
		slug:        cfg.Slug,
		multiRepo:   cfg.MultiRepo,
		logger:      cfg.Logger,
		bus:         cfg.Bus,
		runner:      cfg.Runner,
		forge:       cfg.Forge,
		chat:        cfg.Chat,
		hitl:        cfg.HITL,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	sessions := NewSessionRegistry(s.bus)

	handlers := &Handlers{
		ProjectPath: s.projectPath,
		Slug:        s.slug,
		Forge:       s.forge,
		Sessions:    sessions,
		MultiRepo:   s.multiRepo,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handlers.HandleHealth)
	mux.HandleFunc("GET /api/sprints", handlers.HandleListSprints)
	mux.HandleFunc("GET /api/sprints/history", handlers.HandleSprintHistory)
	mux.HandleFunc("GET /api/sprints/{n}/state", handlers.HandleSprintState)
	mux.HandleFunc("GET /api/sprints/{n}/issues", handlers.HandleSprintIssues)
	mux.HandleFunc("GET /api/backlog", handlers.HandleBacklog)
	mux.HandleFunc("GET /api/ideas", handlers.HandleIdeas)
	mux.HandleFunc("GET /api/repo", handlers.HandleRepo)
	mux.HandleFunc("GET /api/sessions", handlers.HandleSessions)

	s.sseHub = NewSSEHub(s.projectPath, s.logger)
	mux.Handle("GET /api/events", s.sseHub)

	s.wsHub = NewWSHub(s.runner, sessions, s.chat, s.hitl, handlers, s.logger)
	s.wsHub.Subscribe(s.bus)
	mux.Handle("GET /ws", s.wsHub)

	mux.Handle("/", SPAHandler(web.DistFS))

	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go s.sseHub.Start(ctx)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	s.logger.Info("dashboard server started", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
