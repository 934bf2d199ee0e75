package ui

import (
	_ "embed"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/droneedit/droneedit-agent/internal/app"
)

//go:embed icon.png
var iconBytes []byte

// Tray is the system tray menu shown next to the control panel.
type Tray struct {
	ws     *app.Workspace
	logger *slog.Logger

	statusItem  *systray.MenuItem
	projectItem *systray.MenuItem
	cancelItem  *systray.MenuItem

	mu   sync.Mutex
	stop chan struct{}
	once sync.Once

	panelURL string
	onQuit   func()
}

type TrayConfig struct {
	Workspace *app.Workspace
	Logger    *slog.Logger
	PanelURL  string
	OnQuit    func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		ws:       cfg.Workspace,
		logger:   cfg.Logger,
		panelURL: cfg.PanelURL,
		onQuit:   cfg.OnQuit,
		stop:     make(chan struct{}),
	}
}

// Run blocks until the tray exits.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("DroneEdit")
	systray.SetTooltip("DroneEdit Agent")

	t.statusItem = systray.AddMenuItem(statusLine(t.ws.Status()), "Current agent status")
	t.statusItem.Disable()

	t.projectItem = systray.AddMenuItem(projectLine(t.ws.Status()), "Open project")
	t.projectItem.Disable()

	systray.AddSeparator()

	panelItem := systray.AddMenuItem("Copy Panel Address", t.panelURL)
	t.cancelItem = systray.AddMenuItem("Cancel Running Task", "Stop the running operation")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit DroneEdit Agent")

	ticker := time.NewTicker(2 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh()
			case <-panelItem.ClickedCh:
				t.logger.Info("control panel address", "url", t.panelURL)
			case <-t.cancelItem.ClickedCh:
				t.logger.Info("cancel requested from tray")
				t.ws.CancelAll()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			case <-t.stop:
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.ws.Status()
	t.statusItem.SetTitle(statusLine(st))
	t.projectItem.SetTitle(projectLine(st))
	if st.Busy != "" {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}
}

func (t *Tray) Quit() {
	t.once.Do(func() { close(t.stop) })
	systray.Quit()
}

func statusLine(st app.Status) string {
	switch {
	case st.Busy != "":
		return "Status: Running " + st.Busy
	case !st.Connected:
		return "Status: No host"
	default:
		return "Status: Idle"
	}
}

func projectLine(st app.Status) string {
	if st.Project == "" {
		return "Project: none"
	}
	return "Project: " + st.Project
}
