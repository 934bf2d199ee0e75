package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/capability"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

var errHostMenu = errors.New("host menu failed")

// MenuTitle heads the host menu.
const MenuTitle = "DroneEdit"

// QuitChoice is the menu entry that ends the host front-end.
const QuitChoice = "Quit"

// HostUI shows the menu, alerts and file pickers through the host's own
// UI manager.
type HostUI struct {
	ws     *app.Workspace
	logger *slog.Logger

	probe *capability.Probe
	ui    *host.Object
}

func NewHostUI(ws *app.Workspace, logger *slog.Logger) *HostUI {
	return &HostUI{ws: ws, logger: logging.WithComponent(logging.OrDiscard(logger), "hostui")}
}

func (h *HostUI) Name() string { return "host" }

// Init fetches the UI manager. Hosts without one, or without its menu
// and alert calls, cannot run this front-end.
func (h *HostUI) Init(ctx context.Context) error {
	sess := h.ws.Session()
	if sess == nil || sess.App == nil {
		return fmt.Errorf("%w: no host session", ErrUnavailable)
	}
	h.probe = h.ws.Probe()
	v, ok := h.probe.InvokeIfPresent(ctx, sess.App, "GetUIManager")
	if !ok {
		return fmt.Errorf("%w: host has no UI manager", ErrUnavailable)
	}
	ui, ok := v.Object()
	if !ok {
		return fmt.Errorf("%w: host returned no UI manager", ErrUnavailable)
	}
	for _, op := range []string{"ShowMenu", "ShowAlert"} {
		if !h.probe.Has(ui, op) {
			return fmt.Errorf("%w: %w", ErrUnavailable, capability.Missing(ui.Kind(), op))
		}
	}
	h.ui = ui
	return nil
}

func menuChoices() []string {
	out := make([]string, 0, len(actions)+1)
	for _, a := range actions {
		out = append(out, a.Title)
	}
	return append(out, QuitChoice)
}

// Run shows the menu until the user picks Quit. A menu call that fails
// is returned so the selector can switch to the console.
func (h *HostUI) Run(ctx context.Context) error {
	choices := menuChoices()
	for ctx.Err() == nil {
		v, ok := h.probe.InvokeIfPresent(ctx, h.ui, "ShowMenu", MenuTitle, choices)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return errHostMenu
		}
		choice, _ := v.String()
		if choice == "" || choice == QuitChoice {
			h.logger.Info("quit chosen from host menu")
			return nil
		}
		a, ok := FindTitle(choice)
		if !ok {
			h.Alert(ctx, MenuTitle, "Unknown menu entry: "+choice)
			continue
		}
		if err := Dispatch(ctx, h.ws, h, a.Name, nil); err != nil {
			h.logger.Warn("action failed", "action", a.Name, "error", err)
		}
	}
	return nil
}

func (h *HostUI) Alert(ctx context.Context, title, message string) {
	if _, ok := h.probe.InvokeIfPresent(ctx, h.ui, "ShowAlert", title, message); !ok {
		h.logger.Info(title, "message", message)
	}
}

func (h *HostUI) Progress(ctx context.Context, title string, percent int) {
	if h.probe.Has(h.ui, "ShowProgress") {
		h.probe.InvokeIfPresent(ctx, h.ui, "ShowProgress", title, percent)
		return
	}
	h.logger.Debug("progress", "title", title, "percent", percent)
}

// PromptPath asks the host for a path. An empty answer is a cancel.
func (h *HostUI) PromptPath(ctx context.Context, title string, kind PathKind) (string, error) {
	v, ok := h.probe.InvokeIfPresent(ctx, h.ui, "RequestFile", title, string(kind))
	if !ok {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return "", capability.Missing(host.KindUIManager, "RequestFile")
	}
	path, _ := v.String()
	if path == "" {
		return "", ErrCancelled
	}
	return path, nil
}
