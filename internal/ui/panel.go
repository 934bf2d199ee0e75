package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/droneedit/droneedit-agent/internal/api"
	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

var errPanelStopped = errors.New("control panel is not running")

// PanelOptions configures the browser control panel.
type PanelOptions struct {
	Workspace *app.Workspace
	Journal   journal.Repository
	Port      int
	Tray      bool // also show the system tray menu
	Version   string
	Logger    *slog.Logger
}

// PanelUI serves the control panel on loopback and runs panel-triggered
// actions in the background. Prompts and results travel over the event
// socket.
type PanelUI struct {
	opts   PanelOptions
	ws     *app.Workspace
	logger *slog.Logger

	hub    *api.Hub
	server *api.Server
	ln     net.Listener
	token  string
	tray   *Tray

	mu      sync.Mutex
	runCtx  context.Context
	running sync.WaitGroup
	quit    chan struct{}
	once    sync.Once
}

func NewPanelUI(opts PanelOptions) *PanelUI {
	return &PanelUI{
		opts:   opts,
		ws:     opts.Workspace,
		logger: logging.WithComponent(logging.OrDiscard(opts.Logger), "panel"),
		quit:   make(chan struct{}),
	}
}

func (p *PanelUI) Name() string { return "panel" }

// Init prepares the token and binds the port.
func (p *PanelUI) Init(ctx context.Context) error {
	if p.opts.Journal == nil {
		return fmt.Errorf("%w: no journal for the panel token", ErrUnavailable)
	}
	token, err := api.EnsureToken(ctx, p.opts.Journal)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	p.token = token
	p.hub = api.NewHub(p.opts.Logger)
	p.server = api.NewServer(api.ServerConfig{
		Port:      p.opts.Port,
		Workspace: p.ws,
		Journal:   p.opts.Journal,
		Actions:   p,
		Hub:       p.hub,
		Logger:    logging.OrDiscard(p.opts.Logger),
		StartTime: time.Now(),
		Version:   p.opts.Version,
	})
	ln, err := p.server.Listen()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	p.ln = ln

	if tr := p.ws.Tracker(); tr != nil {
		tr.Subscribe(func(t journal.Task) {
			resp := api.TaskToResponse(&t)
			p.hub.Broadcast(api.Event{Type: api.EventTask, Task: &resp})
		})
	}
	if p.opts.Tray {
		p.tray = NewTray(TrayConfig{
			Workspace: p.ws,
			Logger:    p.logger,
			PanelURL:  p.URL(),
			OnQuit:    p.Quit,
		})
	}
	return nil
}

// URL is the panel address including the access token.
func (p *PanelUI) URL() string {
	if p.ln == nil {
		return ""
	}
	return fmt.Sprintf("http://%s/?token=%s", p.ln.Addr(), p.token)
}

// Addr is the bound listen address.
func (p *PanelUI) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// Run serves until Quit, the tray's Quit or ctx ends. Running actions are
// cancelled and awaited before it returns.
func (p *PanelUI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	p.runCtx = ctx
	p.mu.Unlock()

	serveErr := make(chan error, 1)
	go func() { serveErr <- p.server.Serve(p.ln) }()
	if p.tray != nil {
		go p.tray.Run()
	}
	p.logger.Info("control panel ready", "addr", p.Addr())
	fmt.Println("DroneEdit control panel: " + p.URL())

	var err error
	select {
	case <-ctx.Done():
	case <-p.quit:
	case err = <-serveErr:
	}

	p.mu.Lock()
	p.runCtx = nil
	p.mu.Unlock()
	cancel()
	p.running.Wait()

	p.hub.Close()
	if p.tray != nil {
		p.tray.Quit()
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if serr := p.server.Shutdown(shutdownCtx); serr != nil {
		p.logger.Warn("panel shutdown", "error", serr)
	}
	return err
}

// Quit ends Run.
func (p *PanelUI) Quit() {
	p.once.Do(func() { close(p.quit) })
}

// Actions implements api.ActionRunner.
func (p *PanelUI) Actions() []api.ActionInfo {
	out := make([]api.ActionInfo, 0, len(actions))
	for _, a := range actions {
		out = append(out, api.ActionInfo{Name: a.Name, Title: a.Title, Usage: a.Usage})
	}
	return out
}

// Start implements api.ActionRunner. The action runs in the background;
// its outcome is reported as an alert event.
func (p *PanelUI) Start(name string, args []string) error {
	if _, ok := Find(name); !ok {
		return fmt.Errorf("%w: %q", api.ErrUnknownAction, name)
	}
	p.mu.Lock()
	ctx := p.runCtx
	if ctx == nil {
		p.mu.Unlock()
		return errPanelStopped
	}
	p.running.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.running.Done()
		if err := Dispatch(ctx, p.ws, p, name, args); err != nil {
			p.logger.Warn("panel action failed", "action", name, "error", err)
		}
	}()
	return nil
}

func (p *PanelUI) Alert(_ context.Context, title, message string) {
	p.logger.Info("alert", "title", title, "message", message)
	p.hub.Broadcast(api.Event{Type: api.EventAlert, Title: title, Message: message})
}

func (p *PanelUI) Progress(_ context.Context, title string, percent int) {
	p.hub.Broadcast(api.Event{Type: api.EventProgress, Title: title, Percent: percent})
}

func (p *PanelUI) PromptPath(ctx context.Context, title string, kind PathKind) (string, error) {
	v, err := p.hub.Prompt(ctx, title, string(kind))
	if errors.Is(err, api.ErrPromptCancelled) {
		return "", ErrCancelled
	}
	return v, err
}
