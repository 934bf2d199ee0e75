package capability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

// ErrMissing marks a host operation that is not available in this session.
// It is logged so callers can skip a feature; Probe never returns it.
var ErrMissing = errors.New("capability missing")

// Missing builds an ErrMissing for kind.op, for log attributes.
func Missing(kind host.Kind, op string) error {
	return fmt.Errorf("%w: %s.%s", ErrMissing, kind, op)
}

var versionPrefix = regexp.MustCompile(`^\s*(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

// ParseVersion reads the leading major.minor.patch of a host version
// string such as "18.6.4.6" or "19.0b3". It returns nil when there is none.
func ParseVersion(s string) *semver.Version {
	m := versionPrefix.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	parts := [3]string{m[1], m[2], m[3]}
	for i := range parts {
		if parts[i] == "" {
			parts[i] = "0"
		}
	}
	v, err := semver.NewVersion(parts[0] + "." + parts[1] + "." + parts[2])
	if err != nil {
		return nil
	}
	return v
}

// Probe answers capability questions for one host session.
type Probe struct {
	raw     string
	version *semver.Version
	ops     map[host.Kind]map[string]bool
	logger  *slog.Logger
}

// NewProbe computes the capability set for a host version.
func NewProbe(version string, logger *slog.Logger) *Probe {
	v := ParseVersion(version)
	logger = logging.OrDiscard(logger)
	if v == nil {
		logger.Warn("unrecognized host version, using base capabilities", "version", version)
	}
	return &Probe{
		raw:     version,
		version: v,
		ops:     resolve(v),
		logger:  logger,
	}
}

// Version returns the host version string the probe was built for.
func (p *Probe) Version() string {
	if p == nil {
		return ""
	}
	return p.raw
}

// Supports reports whether kind exposes op in this session.
func (p *Probe) Supports(kind host.Kind, op string) bool {
	if p == nil {
		return false
	}
	return p.ops[kind][op]
}

// Has reports whether obj exposes op. It never panics, for any probe,
// object or name.
func (p *Probe) Has(obj *host.Object, op string) bool {
	if obj == nil || op == "" {
		return false
	}
	return p.Supports(obj.Kind(), op)
}

// InvokeIfPresent calls op on obj when the session supports it. A missing
// operation, a host-side "method not found" and a failed call all yield
// found == false; only the log line tells them apart.
func (p *Probe) InvokeIfPresent(ctx context.Context, obj *host.Object, op string, args ...any) (host.Value, bool) {
	if !p.Has(obj, op) {
		p.log().Info("skipping unavailable host operation", "op", op, "object", obj.String(), "error", Missing(obj.Kind(), op))
		return host.Value{}, false
	}
	v, err := obj.Call(ctx, op, args...)
	if err != nil {
		if host.IsMethodNotFound(err) {
			p.log().Info("host does not expose operation", "op", op, "object", obj.String(), "error", Missing(obj.Kind(), op))
			return host.Value{}, false
		}
		p.log().Warn("host operation failed", "op", op, "object", obj.String(), "error", err)
		return host.Value{}, false
	}
	return v, true
}

// Flags returns a fresh name -> availability map for every operation the
// table knows for kind.
func (p *Probe) Flags(kind host.Kind) map[string]bool {
	flags := map[string]bool{}
	for _, op := range known(kind) {
		flags[op] = p.Supports(kind, op)
	}
	return flags
}

func (p *Probe) log() *slog.Logger {
	if p == nil {
		return logging.Discard()
	}
	return p.logger
}
