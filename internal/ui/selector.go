package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

// State is a step of the front-end selection.
type State int

const (
	Probing State = iota
	NativeUI
	FallbackUI
	Console
	Failed
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case NativeUI:
		return "native"
	case FallbackUI:
		return "fallback"
	case Console:
		return "console"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrNoFrontend = errors.New("no front-end could run")
	errPanic      = errors.New("front-end panicked")
)

// SelectorOptions lists the candidates. A nil candidate is skipped.
type SelectorOptions struct {
	Native   Frontend
	Fallback Frontend
	Console  Frontend

	ForceConsole bool
	Logger       *slog.Logger
}

// Selector tries the native front-end, then the fallback, and drops to the
// console when neither starts or the running one fails. Console failing is
// terminal.
type Selector struct {
	opts   SelectorOptions
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	history []State
	active  Frontend
}

func NewSelector(opts SelectorOptions) *Selector {
	return &Selector{
		opts:   opts,
		logger: logging.WithComponent(logging.OrDiscard(opts.Logger), "ui"),
	}
}

func (s *Selector) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns every state entered, in order.
func (s *Selector) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]State(nil), s.history...)
}

// Active returns the front-end currently running, or nil.
func (s *Selector) Active() Frontend {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Selector) enter(st State, fe Frontend) {
	s.mu.Lock()
	s.state = st
	s.history = append(s.history, st)
	s.active = fe
	s.mu.Unlock()
	if fe != nil {
		s.logger.Info("front-end selected", "state", st.String(), "frontend", fe.Name())
	}
}

// Run selects a front-end and serves it until the user quits or ctx ends.
func (s *Selector) Run(ctx context.Context) error {
	s.enter(Probing, nil)
	if s.opts.ForceConsole {
		s.logger.Info("console mode requested")
		return s.runConsole(ctx)
	}

	candidates := []struct {
		state State
		fe    Frontend
	}{
		{NativeUI, s.opts.Native},
		{FallbackUI, s.opts.Fallback},
	}
	for _, c := range candidates {
		if c.fe == nil {
			continue
		}
		if err := guard(func() error { return c.fe.Init(ctx) }); err != nil {
			s.logger.Info("front-end unavailable", "frontend", c.fe.Name(), "error", err)
			continue
		}
		s.enter(c.state, c.fe)
		err := guard(func() error { return c.fe.Run(ctx) })
		if err == nil || ctx.Err() != nil {
			return nil
		}
		s.logger.Error("front-end failed, switching to console", "frontend", c.fe.Name(), "error", err)
		return s.runConsole(ctx)
	}
	return s.runConsole(ctx)
}

func (s *Selector) runConsole(ctx context.Context) error {
	fe := s.opts.Console
	if fe == nil {
		s.enter(Failed, nil)
		return ErrNoFrontend
	}
	s.enter(Console, fe)
	err := guard(func() error { return fe.Init(ctx) })
	if err == nil {
		err = guard(func() error { return fe.Run(ctx) })
	}
	if err != nil && ctx.Err() == nil {
		s.enter(Failed, nil)
		s.logger.Error("console failed", "error", err)
		return fmt.Errorf("%w: %w", ErrNoFrontend, err)
	}
	return nil
}

func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return fn()
}
