// Package analysis provides the footage analysis operations: scene
// detection, highlight picking, automatic grading and audio enhancement.
//
// Two implementations share the Analyzer interface. Simulated produces
// pseudo-random results after a cancellable wait. Delegated hands the work
// to an external tool or service and falls back to Simulated when that
// fails. The implementation is chosen once at startup with New.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/droneedit/droneedit-agent/internal/editor"
)

// Analysis modes.
const (
	ModeSimulated = "simulated"
	ModeDelegated = "delegated"
)

// ProgressFunc receives integer percentages in [0, 100].
type ProgressFunc func(percent int)

// Segment is a sub-range of a clip in seconds. Start < End.
type Segment struct {
	Clip  editor.Clip
	Start float64
	End   float64
}

// Length returns End - Start.
func (s Segment) Length() float64 { return s.End - s.Start }

// Highlight is a scored window inside a clip.
type Highlight struct {
	Clip  editor.Clip
	Start float64
	End   float64
	Score float64
}

// Grade is the colour preset chosen for a clip.
type Grade struct {
	Clip   editor.Clip
	Preset string
}

// AudioEnhancer runs the per-track audio operations on the host.
type AudioEnhancer interface {
	EnhanceAudio(ctx context.Context, opts editor.AudioOptions) editor.AudioReport
}

// Analyzer is the analysis contract. Every method returns early with the
// context's error when ctx is cancelled.
type Analyzer interface {
	Name() string
	DetectScenes(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Segment, error)
	SmartHighlight(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Highlight, error)
	AutoColorGrade(ctx context.Context, clips []editor.Clip, preset string, progress ProgressFunc) ([]Grade, error)
	EnhanceAudio(ctx context.Context, target AudioEnhancer, opts editor.AudioOptions) (editor.AudioReport, error)
}

// LevelSetter is implemented by analyzers whose ai_processing_level can
// change between calls.
type LevelSetter interface {
	SetLevel(level string)
}

type processingLevel struct{ v atomic.Value }

func (l *processingLevel) Set(level string) { l.v.Store(level) }

func (l *processingLevel) Get() string {
	s, _ := l.v.Load().(string)
	return s
}

// Options configures both implementations.
type Options struct {
	Level  string // ai_processing_level: Low, Medium or High
	Logger *slog.Logger

	// Rand and Sleep are injectable for tests.
	Rand  *rand.Rand
	Sleep func(ctx context.Context, d time.Duration) error

	// Delegated only.
	Executable string
	ServiceURL string
	Timeout    time.Duration
	WorkDir    string
}

// New selects the implementation for mode.
func New(mode string, opts Options) (Analyzer, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeSimulated:
		return NewSimulated(opts), nil
	case ModeDelegated:
		return NewDelegated(opts), nil
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}
}

func report(progress ProgressFunc, done, total int) {
	if progress == nil || total <= 0 {
		return
	}
	progress(100 * done / total)
}
