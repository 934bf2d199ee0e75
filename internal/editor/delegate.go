// Package editor wraps the host's media pool and timeline operations.
//
// Every operation validates its arguments before touching the host and
// every host call goes through the capability probe. Failures are logged
// and reported as a sentinel (nil, false, zero count); nothing here
// returns a host error to the caller.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/droneedit/droneedit-agent/internal/capability"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

// ErrValidation marks a rejected call argument.
var ErrValidation = errors.New("invalid argument")

// Delegate drives one host session.
type Delegate struct {
	app    *host.Object
	probe  *capability.Probe
	logger *slog.Logger
}

// New creates a delegate for session. A nil probe is built from the
// session's version.
func New(session *host.Session, probe *capability.Probe, logger *slog.Logger) *Delegate {
	logger = logging.OrDiscard(logger)
	d := &Delegate{probe: probe, logger: logging.WithComponent(logger, "editor")}
	if session != nil {
		d.app = session.App
		if d.probe == nil {
			d.probe = capability.NewProbe(session.Version, logger)
		}
	}
	return d
}

// Probe returns the capability probe the delegate uses.
func (d *Delegate) Probe() *capability.Probe { return d.probe }

// App returns the host application object.
func (d *Delegate) App() *host.Object { return d.app }

func (d *Delegate) invalid(op, reason string) {
	d.logger.Error("rejected "+op, "error", fmt.Errorf("%w: %s", ErrValidation, reason))
}

// call invokes a probed operation. The probe logs absence and call failures.
func (d *Delegate) call(ctx context.Context, obj *host.Object, op string, args ...any) (host.Value, bool) {
	return d.probe.InvokeIfPresent(ctx, obj, op, args...)
}

// object calls op and expects a handle back.
func (d *Delegate) object(ctx context.Context, obj *host.Object, op string, args ...any) *host.Object {
	v, ok := d.call(ctx, obj, op, args...)
	if !ok {
		return nil
	}
	o, ok := v.Object()
	if !ok {
		return nil
	}
	return o
}

func (d *Delegate) str(ctx context.Context, obj *host.Object, op string, args ...any) string {
	v, ok := d.call(ctx, obj, op, args...)
	if !ok {
		return ""
	}
	s, _ := v.String()
	return s
}

// Project returns the host's current project.
func (d *Delegate) Project(ctx context.Context) *host.Object {
	if d.app == nil {
		d.invalid("project lookup", "no host session")
		return nil
	}
	pm := d.object(ctx, d.app, "GetProjectManager")
	if pm == nil {
		d.logger.Error("project manager unavailable")
		return nil
	}
	p := d.object(ctx, pm, "GetCurrentProject")
	if p == nil {
		d.logger.Error("no project open in host")
	}
	return p
}

// MediaPool returns the current project's media pool.
func (d *Delegate) MediaPool(ctx context.Context) *host.Object {
	p := d.Project(ctx)
	if p == nil {
		return nil
	}
	mp := d.object(ctx, p, "GetMediaPool")
	if mp == nil {
		d.logger.Error("media pool unavailable")
	}
	return mp
}

// ProjectName returns the host project's display name.
func (d *Delegate) ProjectName(ctx context.Context) string {
	p := d.Project(ctx)
	if p == nil {
		return ""
	}
	return d.str(ctx, p, "GetName")
}

// SaveHostProject asks the host to save its own project database entry.
func (d *Delegate) SaveHostProject(ctx context.Context) bool {
	if d.app == nil {
		d.invalid("host project save", "no host session")
		return false
	}
	pm := d.object(ctx, d.app, "GetProjectManager")
	if pm == nil {
		return false
	}
	v, ok := d.call(ctx, pm, "SaveProject")
	return ok && v.Truthy()
}

// OpenPage switches the host to one of its pages (media, edit, color...).
func (d *Delegate) OpenPage(ctx context.Context, page string) bool {
	if page == "" {
		d.invalid("open page", "empty page name")
		return false
	}
	if d.app == nil {
		d.invalid("open page", "no host session")
		return false
	}
	v, ok := d.call(ctx, d.app, "OpenPage", page)
	return ok && v.Truthy()
}
