// Package api serves the local control panel: a small HTTP API on loopback
// plus a websocket that streams alerts, progress and file prompts to the
// panel page.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/journal"
)

// Workspace is the part of app.Workspace the panel reads and drives.
type Workspace interface {
	Status() app.Status
	Tasks(ctx context.Context, limit int) ([]*journal.Task, error)
	RecentProjects(ctx context.Context, limit int) ([]*journal.RecentProject, error)
	Cancel(id string) bool
	Settings() config.Settings
	UpdateSettings(m map[string]any) []error
	ExportEDL(ctx context.Context, dir string) (string, error)
}

// ErrUnknownAction is returned by ActionRunner.Start for names it does not
// list.
var ErrUnknownAction = errors.New("unknown action")

// ActionInfo describes one menu action.
type ActionInfo struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Usage string `json:"usage,omitempty"`
}

// ActionRunner starts menu actions in the background. Results reach the
// panel as hub events.
type ActionRunner interface {
	Actions() []ActionInfo
	Start(name string, args []string) error
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port      int
	Workspace Workspace
	Journal   journal.Repository
	Actions   ActionRunner
	Hub       *Hub
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      0,
			IdleTimeout:       60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

// Listen binds the server address so a taken port is reported before the
// panel is announced.
func (s *Server) Listen() (net.Listener, error) {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.httpServer.Addr, err)
	}
	return ln, nil
}

// Serve handles requests on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	err := s.httpServer.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
