package analysis

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sort"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

var errEmptyResult = errors.New("empty result")

// Wire types shared by the tool and the service.
type (
	clipPayload struct {
		Index    int     `json:"index"`
		Name     string  `json:"name"`
		Path     string  `json:"path"`
		Duration float64 `json:"duration,omitempty"`
	}
	analysisRequest struct {
		Level  string        `json:"level"`
		Preset string        `json:"preset,omitempty"`
		Clips  []clipPayload `json:"clips"`
	}
	segmentPayload struct {
		ClipIndex int     `json:"clip_index"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
	}
	highlightPayload struct {
		ClipIndex int     `json:"clip_index"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		Score     float64 `json:"score"`
	}
	gradePayload struct {
		ClipIndex int    `json:"clip_index"`
		Preset    string `json:"preset"`
	}
	scenesResponse struct {
		Segments []segmentPayload `json:"segments"`
	}
	highlightsResponse struct {
		Highlights []highlightPayload `json:"highlights"`
	}
	gradeResponse struct {
		Grades []gradePayload `json:"grades"`
	}
)

// Delegated hands analysis to an external tool or service. It tries the
// tool, then the service, then falls back to the simulated analyzer.
// Audio enhancement always runs on the host.
type Delegated struct {
	level    processingLevel
	tool     *ToolRunner
	service  *ServiceClient
	fallback *Simulated
	logger   *slog.Logger
}

// NewDelegated builds a delegated analyzer. A missing executable is logged
// and leaves only the service and the fallback.
func NewDelegated(opts Options) *Delegated {
	logger := logging.WithComponent(logging.OrDiscard(opts.Logger), "analysis")
	d := &Delegated{
		fallback: NewSimulated(opts),
		logger:   logger,
	}
	d.level.Set(opts.Level)
	if opts.Executable != "" {
		tool, err := NewToolRunner(opts.Executable, opts.WorkDir, opts.Timeout, logger)
		if err != nil {
			logger.Warn("analysis tool unavailable", "error", err)
		} else {
			d.tool = tool
		}
	}
	if opts.ServiceURL != "" {
		d.service = NewServiceClient(opts.ServiceURL, opts.Timeout, logger)
	}
	if d.tool == nil && d.service == nil {
		logger.Warn("no analysis tool or service configured, delegated analysis will use the simulation")
	}
	return d
}

func (d *Delegated) Name() string { return ModeDelegated }

// SetLevel implements LevelSetter.
func (d *Delegated) SetLevel(level string) {
	d.level.Set(level)
	d.fallback.SetLevel(level)
}

// fetch asks the tool, then the service, for op. It returns false when
// neither produced a usable reply.
func (d *Delegated) fetch(ctx context.Context, op string, req analysisRequest, resp any, empty func() bool) bool {
	if d.tool != nil {
		_, err := d.tool.Run(ctx, op, req, resp)
		if err == nil && empty() {
			err = errEmptyResult
		}
		if err == nil {
			return true
		}
		d.logger.Warn("analysis tool failed", "op", op, "error", err)
	}
	if ctx.Err() != nil {
		return false
	}
	if d.service != nil {
		err := d.service.Post(ctx, op, req, resp)
		if err == nil && empty() {
			err = errEmptyResult
		}
		if err == nil {
			return true
		}
		d.logger.Warn("analysis service failed", "op", op, "error", err)
	}
	return false
}

func (d *Delegated) request(clips []editor.Clip, preset string) analysisRequest {
	req := analysisRequest{Level: d.level.Get(), Preset: preset, Clips: make([]clipPayload, len(clips))}
	for i, c := range clips {
		req.Clips[i] = clipPayload{Index: i, Name: c.Name, Path: c.FilePath}
		if c.Duration.Known {
			req.Clips[i].Duration = c.Duration.Seconds
		}
	}
	return req
}

// reportEach reports per-clip progress for a reply that covered all clips
// at once.
func reportEach(progress ProgressFunc, clips int) {
	for i := 0; i < clips; i++ {
		report(progress, i+1, clips)
	}
}

// DetectScenes implements Analyzer.
func (d *Delegated) DetectScenes(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Segment, error) {
	if len(clips) == 0 {
		return nil, nil
	}
	var resp scenesResponse
	if d.fetch(ctx, "scenes", d.request(clips, ""), &resp, func() bool { return len(resp.Segments) == 0 }) {
		if segs := clampSegments(clips, resp.Segments); len(segs) > 0 {
			reportEach(progress, len(clips))
			return segs, nil
		}
		d.logger.Warn("delegated scenes violated constraints, using simulation")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Info("falling back to simulated scene detection")
	return d.fallback.DetectScenes(ctx, clips, progress)
}

// SmartHighlight implements Analyzer.
func (d *Delegated) SmartHighlight(ctx context.Context, clips []editor.Clip, progress ProgressFunc) ([]Highlight, error) {
	if len(clips) == 0 {
		return nil, nil
	}
	var resp highlightsResponse
	if d.fetch(ctx, "highlights", d.request(clips, ""), &resp, func() bool { return len(resp.Highlights) == 0 }) {
		if hs := clampHighlights(clips, resp.Highlights); len(hs) > 0 {
			reportEach(progress, len(clips))
			return hs, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Info("falling back to simulated highlights")
	return d.fallback.SmartHighlight(ctx, clips, progress)
}

// AutoColorGrade implements Analyzer.
func (d *Delegated) AutoColorGrade(ctx context.Context, clips []editor.Clip, preset string, progress ProgressFunc) ([]Grade, error) {
	if len(clips) == 0 {
		return nil, nil
	}
	var resp gradeResponse
	if d.fetch(ctx, "grade", d.request(clips, preset), &resp, func() bool { return len(resp.Grades) == 0 }) {
		if gs := clampGrades(clips, preset, resp.Grades); len(gs) > 0 {
			reportEach(progress, len(clips))
			return gs, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.logger.Info("falling back to simulated grading")
	return d.fallback.AutoColorGrade(ctx, clips, preset, progress)
}

// EnhanceAudio implements Analyzer. The host owns the audio operations.
func (d *Delegated) EnhanceAudio(ctx context.Context, target AudioEnhancer, opts editor.AudioOptions) (editor.AudioReport, error) {
	return d.fallback.EnhanceAudio(ctx, target, opts)
}

// clampSegments drops segments outside their clip, shorter than the minimum
// or overlapping an earlier one, and orders them by clip then start.
func clampSegments(clips []editor.Clip, in []segmentPayload) []Segment {
	sorted := slices.Clone(in)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ClipIndex != sorted[j].ClipIndex {
			return sorted[i].ClipIndex < sorted[j].ClipIndex
		}
		return sorted[i].Start < sorted[j].Start
	})

	var out []Segment
	lastEnd := map[int]float64{}
	for _, p := range sorted {
		if p.ClipIndex < 0 || p.ClipIndex >= len(clips) || !finite(p.Start, p.End) {
			continue
		}
		clip := clips[p.ClipIndex]
		start := math.Max(0, p.Start)
		end := p.End
		if clip.Duration.Known {
			end = math.Min(end, clip.Duration.Seconds)
		}
		if prev, ok := lastEnd[p.ClipIndex]; ok && start < prev {
			continue
		}
		if end-start < minSegment {
			continue
		}
		lastEnd[p.ClipIndex] = end
		out = append(out, Segment{Clip: clip, Start: start, End: end})
	}
	return out
}

func clampHighlights(clips []editor.Clip, in []highlightPayload) []Highlight {
	var out []Highlight
	for _, p := range in {
		if p.ClipIndex < 0 || p.ClipIndex >= len(clips) || !finite(p.Start, p.End, p.Score) {
			continue
		}
		clip := clips[p.ClipIndex]
		start := math.Max(0, p.Start)
		end := p.End
		if clip.Duration.Known {
			end = math.Min(end, clip.Duration.Seconds)
		}
		if end <= start {
			continue
		}
		score := math.Min(1.0, math.Max(0.6, p.Score))
		out = append(out, Highlight{Clip: clip, Start: start, End: end, Score: score})
	}
	sortHighlights(out)
	return out
}

func clampGrades(clips []editor.Clip, preset string, in []gradePayload) []Grade {
	var out []Grade
	for _, p := range in {
		if p.ClipIndex < 0 || p.ClipIndex >= len(clips) {
			continue
		}
		name := p.Preset
		if !slices.Contains(config.LUTSelections, name) {
			name = preset
		}
		out = append(out, Grade{Clip: clips[p.ClipIndex], Preset: name})
	}
	return out
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
