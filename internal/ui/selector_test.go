package ui

import (
	"context"
	"errors"
	"testing"
)

type fakeFrontend struct {
	recorder
	name     string
	initErr  error
	runErr   error
	runPanic bool
	ran      bool
}

func (f *fakeFrontend) Name() string { return f.name }

func (f *fakeFrontend) Init(context.Context) error { return f.initErr }

func (f *fakeFrontend) Run(context.Context) error {
	f.ran = true
	if f.runPanic {
		panic("host went away")
	}
	return f.runErr
}

func statesEqual(a, b []State) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSelector_Transitions(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		native   *fakeFrontend
		fallback *fakeFrontend
		console  *fakeFrontend
		force    bool
		want     []State
		wantErr  bool
	}{
		{
			name:     "native runs",
			native:   &fakeFrontend{name: "host"},
			fallback: &fakeFrontend{name: "panel"},
			console:  &fakeFrontend{name: "console"},
			want:     []State{Probing, NativeUI},
		},
		{
			name:     "native unavailable",
			native:   &fakeFrontend{name: "host", initErr: ErrUnavailable},
			fallback: &fakeFrontend{name: "panel"},
			console:  &fakeFrontend{name: "console"},
			want:     []State{Probing, FallbackUI},
		},
		{
			name:     "native fails while running",
			native:   &fakeFrontend{name: "host", runErr: boom},
			fallback: &fakeFrontend{name: "panel"},
			console:  &fakeFrontend{name: "console"},
			want:     []State{Probing, NativeUI, Console},
		},
		{
			name:     "fallback panics",
			native:   &fakeFrontend{name: "host", initErr: ErrUnavailable},
			fallback: &fakeFrontend{name: "panel", runPanic: true},
			console:  &fakeFrontend{name: "console"},
			want:     []State{Probing, FallbackUI, Console},
		},
		{
			name:     "nothing starts",
			native:   &fakeFrontend{name: "host", initErr: ErrUnavailable},
			fallback: &fakeFrontend{name: "panel", initErr: ErrUnavailable},
			console:  &fakeFrontend{name: "console"},
			want:     []State{Probing, Console},
		},
		{
			name:     "console requested",
			native:   &fakeFrontend{name: "host"},
			fallback: &fakeFrontend{name: "panel"},
			console:  &fakeFrontend{name: "console"},
			force:    true,
			want:     []State{Probing, Console},
		},
		{
			name:     "console fails",
			native:   &fakeFrontend{name: "host", initErr: ErrUnavailable},
			fallback: nil,
			console:  &fakeFrontend{name: "console", runErr: boom},
			want:     []State{Probing, Console, Failed},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := SelectorOptions{Native: tt.native, Console: tt.console, ForceConsole: tt.force, Logger: testLogger()}
			if tt.fallback != nil {
				opts.Fallback = tt.fallback
			}
			s := NewSelector(opts)
			err := s.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrNoFrontend) {
				t.Errorf("err = %v, want ErrNoFrontend", err)
			}
			if got := s.History(); !statesEqual(got, tt.want) {
				t.Errorf("history = %v, want %v", got, tt.want)
			}
			if s.State() != tt.want[len(tt.want)-1] {
				t.Errorf("State() = %v", s.State())
			}
		})
	}
}

func TestSelector_ForceConsoleSkipsNative(t *testing.T) {
	native := &fakeFrontend{name: "host"}
	console := &fakeFrontend{name: "console"}
	s := NewSelector(SelectorOptions{Native: native, Console: console, ForceConsole: true})
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if native.ran || !console.ran {
		t.Errorf("native ran = %v, console ran = %v", native.ran, console.ran)
	}
	if s.Active() != console {
		t.Errorf("Active() = %v, want console", s.Active())
	}
}

func TestSelector_NoConsole(t *testing.T) {
	s := NewSelector(SelectorOptions{Native: &fakeFrontend{name: "host", initErr: ErrUnavailable}})
	if err := s.Run(context.Background()); !errors.Is(err, ErrNoFrontend) {
		t.Fatalf("err = %v, want ErrNoFrontend", err)
	}
	if s.State() != Failed {
		t.Errorf("State() = %v, want failed", s.State())
	}
}

func TestSelector_CancelledContextIsNotFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	native := &fakeFrontend{name: "host", runErr: context.Canceled}
	console := &fakeFrontend{name: "console"}
	s := NewSelector(SelectorOptions{Native: native, Console: console})
	if err := s.Run(ctx); err != nil {
		t.Fatal(err)
	}
	if console.ran {
		t.Error("console started after shutdown")
	}
}

func TestState_String(t *testing.T) {
	for st, want := range map[State]string{Probing: "probing", NativeUI: "native", FallbackUI: "fallback", Console: "console", Failed: "failed", State(9): "State(9)"} {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(st), got, want)
		}
	}
}
