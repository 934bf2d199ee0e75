package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// AppName is the application object requested from the bridge.
const AppName = "Resolve"

// EntryPoint is the host-exposed global used to bootstrap a scripting
// bridge.
type EntryPoint interface {
	AcquireBridge(ctx context.Context) (*Bridge, error)
}

// Bridge is the host-provided object used to obtain a session.
type Bridge struct {
	Product string
	Version string
	Root    *Object
}

// Session is the handle to the running host application. It is obtained
// once and held for the life of the process.
type Session struct {
	App         *Object
	Product     string
	Version     string
	ConnectedAt time.Time
}

// AcquireSession asks the bridge for the application object.
func (b *Bridge) AcquireSession(ctx context.Context) (*Session, error) {
	v, err := b.Root.Call(ctx, "scriptapp", AppName)
	if err != nil {
		return nil, err
	}
	app, ok := v.Object()
	if !ok {
		return nil, fmt.Errorf("bridge returned no %s application object", AppName)
	}
	return &Session{
		App:         app,
		Product:     b.Product,
		Version:     b.Version,
		ConnectedAt: time.Now(),
	}, nil
}

type transportEntry struct {
	transport Transport
}

// NewEntryPoint builds an entry point on top of a transport.
func NewEntryPoint(t Transport) EntryPoint {
	return &transportEntry{transport: t}
}

func (e *transportEntry) AcquireBridge(ctx context.Context) (*Bridge, error) {
	h, err := e.transport.Hello(ctx)
	if err != nil {
		return nil, fmt.Errorf("bridge handshake: %w", err)
	}
	kind := h.Root.Kind
	if kind == "" {
		kind = KindBridge
	}
	return &Bridge{
		Product: h.Product,
		Version: h.Version,
		Root:    NewObject(e.transport, h.Root.Handle, kind),
	}, nil
}

// Discovery is the file the in-host bridge script writes on startup.
type Discovery struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

// Locate finds the bridge entry point: an explicit URL wins, otherwise the
// discovery file is read. When neither exists the host is unavailable.
func Locate(bridgeURL, token, discoveryPath string, logger *slog.Logger) (EntryPoint, error) {
	if bridgeURL != "" {
		return NewEntryPoint(NewHTTPTransport(bridgeURL, token, logger)), nil
	}
	if discoveryPath == "" {
		return nil, ErrHostUnavailable
	}

	data, err := os.ReadFile(discoveryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrHostUnavailable
		}
		return nil, fmt.Errorf("%w: %v", ErrHostUnavailable, err)
	}

	var d Discovery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: bad discovery file: %v", ErrHostUnavailable, err)
	}
	if d.URL == "" {
		return nil, fmt.Errorf("%w: discovery file has no url", ErrHostUnavailable)
	}
	if token == "" {
		token = d.Token
	}
	return NewEntryPoint(NewHTTPTransport(d.URL, token, logger)), nil
}
