package analysis

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

const (
	minSegment      = 2.0
	dropProbability = 0.1
	unknownMin      = 20.0
	unknownMax      = 60.0

	sceneLatency     = 300 * time.Millisecond
	highlightLatency = 200 * time.Millisecond
	gradeLatency     = 1500 * time.Millisecond
	audioLatency     = 200 * time.Millisecond
)

var levelScale = map[string]float64{
	"Low":    0.5,
	"Medium": 1,
	"High":   2,
}

// Simulated is the placeholder analyzer. It does no real analysis: cut
// points, highlight windows and scores are random draws.
type Simulated struct {
	level  processingLevel
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulated creates a simulated analyzer.
func NewSimulated(opts Options) *Simulated {
	s := &Simulated{
		logger: logging.WithComponent(logging.OrDiscard(opts.Logger), "analysis"),
		sleep:  opts.Sleep,
		rng:    opts.Rand,
	}
	s.level.Set(opts.Level)
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

func (s *Simulated) Name() string { return ModeSimulated }

// DetectScenes cuts every clip at one to three random interior points.
// Segments shorter than two seconds are dropped, and each survivor is
// dropped with probability 0.1.
func (s *Simulated) DetectScenes(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Segment, error) {
	var segments []Segment
	for i, clip := range clips {
		if err := s.wait(ctx, sceneLatency); err != nil {
			return nil, err
		}
		dur := s.duration(clip)

		bounds := []float64{0, dur}
		if dur > 2*minSegment {
			n := 1 + s.intN(3)
			for j := 0; j < n; j++ {
				bounds = append(bounds, s.uniform(minSegment, dur-minSegment))
			}
		}
		sort.Float64s(bounds)

		for j := 0; j+1 < len(bounds); j++ {
			start, end := bounds[j], bounds[j+1]
			if end-start < minSegment {
				continue
			}
			if s.float() < dropProbability {
				continue
			}
			segments = append(segments, Segment{Clip: clip, Start: start, End: end})
		}
		report(progress, i+1, len(clips))
	}
	s.logger.Info("scene detection finished", "clips", len(clips), "segments", len(segments))
	return segments, nil
}

// SmartHighlight picks one to three windows of three to seven seconds per
// clip, scored in [0.6, 1.0], and returns them best first.
func (s *Simulated) SmartHighlight(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Highlight, error) {
	var out []Highlight
	for i, clip := range clips {
		if err := s.wait(ctx, highlightLatency); err != nil {
			return nil, err
		}
		dur := s.duration(clip)
		n := 1 + s.intN(3)
		for j := 0; j < n; j++ {
			length := s.uniform(3, 7)
			if length > dur {
				length = dur
			}
			start := s.uniform(0, dur-length)
			out = append(out, Highlight{
				Clip:  clip,
				Start: start,
				End:   start + length,
				Score: s.uniform(0.6, 1.0),
			})
		}
		report(progress, i+1, len(clips))
	}
	sortHighlights(out)
	return out, nil
}

// AutoColorGrade waits and assigns preset to every clip.
func (s *Simulated) AutoColorGrade(ctx context.Context, clips []editor.Clip, preset string, progress ProgressFunc) ([]Grade, error) {
	if err := s.wait(ctx, gradeLatency); err != nil {
		return nil, err
	}
	grades := make([]Grade, len(clips))
	for i, clip := range clips {
		grades[i] = Grade{Clip: clip, Preset: preset}
		report(progress, i+1, len(clips))
	}
	return grades, nil
}

// EnhanceAudio runs the host's track operations through target.
func (s *Simulated) EnhanceAudio(ctx context.Context, target AudioEnhancer, opts editor.AudioOptions) (editor.AudioReport, error) {
	if err := s.wait(ctx, audioLatency); err != nil {
		return editor.AudioReport{}, err
	}
	if target == nil {
		return editor.AudioReport{}, nil
	}
	return target.EnhanceAudio(ctx, opts), nil
}

func (s *Simulated) duration(c editor.Clip) float64 {
	if c.Duration.Known && c.Duration.Seconds > 0 {
		return c.Duration.Seconds
	}
	return s.uniform(unknownMin, unknownMax)
}

// SetLevel implements LevelSetter.
func (s *Simulated) SetLevel(level string) { s.level.Set(level) }

func (s *Simulated) wait(ctx context.Context, base time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	scale, ok := levelScale[s.level.Get()]
	if !ok {
		scale = 1
	}
	d := time.Duration(float64(base) * scale * s.uniform(0.5, 1.5))
	return s.sleep(ctx, d)
}

func (s *Simulated) uniform(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + (hi-lo)*s.float()
}

func (s *Simulated) float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

func (s *Simulated) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func sortHighlights(h []Highlight) {
	sort.SliceStable(h, func(i, j int) bool { return h[i].Score > h[j].Score })
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
