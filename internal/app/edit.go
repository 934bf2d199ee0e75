package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/grading"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/project"
)

// NewProject starts an unsaved project with the live settings.
func (w *Workspace) NewProject(name, description string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("project name is required")
	}
	if !w.mu.TryLock() {
		return ErrBusy
	}
	defer w.mu.Unlock()

	w.state.Reset(project.NewRecord(name, description, w.state.Settings(), time.Now()))
	w.setView(func() {
		w.clips = nil
		w.segments = nil
	})
	w.logger.Info("new project", "name", name)
	return nil
}

// Import brings paths into bin (DefaultBin when empty) and adds them to
// the working set used by analysis.
func (w *Workspace) Import(ctx context.Context, paths []string, bin string) ([]editor.Clip, error) {
	if err := w.requireSession(); err != nil {
		return nil, err
	}
	if bin == "" {
		bin = DefaultBin
	}
	var clips []editor.Clip
	err := w.run(ctx, journal.TaskImport, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		clips = w.delegate.ImportFiles(ctx, paths, bin)
		if len(clips) == 0 {
			return fmt.Errorf("no files imported from %d paths", len(paths))
		}
		w.setView(func() { w.clips = append(w.clips, clips...) })
		return nil
	})
	return clips, err
}

// IngestFiles imports footage found by the folder watcher.
func (w *Workspace) IngestFiles(ctx context.Context, paths []string) ([]editor.Clip, error) {
	return w.Import(ctx, paths, IngestBin)
}

// workingClips returns the imported working set, or the whole media pool
// when nothing was imported this session.
func (w *Workspace) workingClips(ctx context.Context) ([]editor.Clip, error) {
	w.view.RLock()
	clips := append([]editor.Clip(nil), w.clips...)
	w.view.RUnlock()
	if len(clips) == 0 {
		clips = w.delegate.Clips(ctx)
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("%w: media pool is empty", ErrNothingToDo)
	}
	return clips, nil
}

// Build describes a timeline assembled from analysis results.
type Build struct {
	Timeline    string `json:"timeline"`
	Segments    int    `json:"segments"`
	Transitions int    `json:"transitions"`
}

// DetectAndBuild detects scenes in the working clips and assembles them on
// a new timeline, adding the default transition between cuts.
func (w *Workspace) DetectAndBuild(ctx context.Context, name string, progress analysis.ProgressFunc) (Build, error) {
	if err := w.requireSession(); err != nil {
		return Build{}, err
	}
	var b Build
	err := w.run(ctx, journal.TaskDetect, progress, func(ctx context.Context, progress analysis.ProgressFunc) error {
		clips, err := w.workingClips(ctx)
		if err != nil {
			return err
		}
		segs, err := w.analyzer.DetectScenes(ctx, clips, progress)
		if err != nil {
			return err
		}
		if len(segs) == 0 {
			return fmt.Errorf("%w: no scenes kept", ErrNothingToDo)
		}
		w.setView(func() { w.segments = segs })
		b.Segments = len(segs)

		placements := make([]editor.Placement, 0, len(segs))
		for _, s := range segs {
			placements = append(placements, editor.Placement{Clip: s.Clip.Item, Name: s.Clip.Name, Start: s.Start, End: s.End})
		}
		tl, title, err := w.createTimeline(ctx, w.timelineName(name, "Edit"), placements)
		if err != nil {
			return err
		}
		b.Timeline = title

		settings := w.state.Settings()
		if settings.DefaultTransition != "" && len(placements) > 1 && w.probe.Supports(host.KindTimeline, "AddTransition") {
			b.Transitions, _ = w.delegate.AddTransitions(ctx, tl, settings.DefaultTransition, settings.DefaultTransitionDuration)
		}
		return nil
	})
	return b, err
}

// Highlights scores windows in the working clips and assembles the best
// ones, highest score first, on a highlights timeline.
func (w *Workspace) Highlights(ctx context.Context, progress analysis.ProgressFunc) ([]analysis.Highlight, string, error) {
	if err := w.requireSession(); err != nil {
		return nil, "", err
	}
	var (
		hs    []analysis.Highlight
		title string
	)
	err := w.run(ctx, journal.TaskHighlights, progress, func(ctx context.Context, progress analysis.ProgressFunc) error {
		clips, err := w.workingClips(ctx)
		if err != nil {
			return err
		}
		hs, err = w.analyzer.SmartHighlight(ctx, clips, progress)
		if err != nil {
			return err
		}
		if len(hs) == 0 {
			return fmt.Errorf("%w: no highlights found", ErrNothingToDo)
		}
		placements := make([]editor.Placement, 0, len(hs))
		for _, h := range hs {
			placements = append(placements, editor.Placement{Clip: h.Clip.Item, Name: h.Clip.Name, Start: h.Start, End: h.End})
		}
		_, title, err = w.createTimeline(ctx, w.timelineName("", "Highlights"), placements)
		return err
	})
	return hs, title, err
}

func (w *Workspace) timelineName(name, suffix string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	if p := w.state.Record().Name; p != "" {
		return p + " " + suffix
	}
	return "DroneEdit " + suffix
}

// createTimeline creates a timeline, numbering the name when it is taken.
func (w *Workspace) createTimeline(ctx context.Context, name string, placements []editor.Placement) (*host.Object, string, error) {
	title := name
	for n := 2; w.delegate.FindTimeline(ctx, title) != nil; n++ {
		if n > 99 {
			return nil, "", fmt.Errorf("too many timelines named %q", name)
		}
		title = fmt.Sprintf("%s %d", name, n)
	}
	tl := w.delegate.CreateTimeline(ctx, title, placements)
	if tl == nil {
		return nil, "", fmt.Errorf("host could not create timeline %q", title)
	}
	w.setView(func() { w.timeline = title })
	return tl, title, nil
}

// ApplyLUT applies the LUT of selection, or of the configured selection
// when empty, to every item of the current timeline. The Default selection
// applies nothing.
func (w *Workspace) ApplyLUT(ctx context.Context, selection string) (int, error) {
	if err := w.requireSession(); err != nil {
		return 0, err
	}
	if selection == "" {
		selection = w.state.Settings().LUTSelection
	}
	var applied int
	err := w.run(ctx, journal.TaskLUT, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		path, err := w.lutPath(selection)
		if errors.Is(err, grading.ErrNoLUT) {
			w.logger.Info("default grade selected, no LUT applied")
			return nil
		}
		if err != nil {
			return err
		}
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		w.openColorPage(ctx)
		n, ok := w.delegate.ApplyLUT(ctx, tl, path)
		if !ok {
			return fmt.Errorf("LUT %s not applied to any item", selection)
		}
		applied = n
		return nil
	})
	return applied, err
}

func (w *Workspace) lutPath(selection string) (string, error) {
	if w.luts == nil {
		return "", errors.New("no LUT directory configured")
	}
	return w.luts.Path(selection)
}

// AutoGrade lets the analyzer pick a preset per clip and applies each
// preset's LUT to the matching items of the current timeline.
func (w *Workspace) AutoGrade(ctx context.Context, progress analysis.ProgressFunc) ([]analysis.Grade, int, error) {
	if err := w.requireSession(); err != nil {
		return nil, 0, err
	}
	var (
		grades  []analysis.Grade
		applied int
	)
	err := w.run(ctx, journal.TaskGrade, progress, func(ctx context.Context, progress analysis.ProgressFunc) error {
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		items := w.delegate.TimelineItems(ctx, tl)
		if len(items) == 0 {
			return fmt.Errorf("%w: timeline is empty", ErrNothingToDo)
		}
		w.openColorPage(ctx)
		clips, err := w.workingClips(ctx)
		if err != nil {
			return err
		}
		grades, err = w.analyzer.AutoColorGrade(ctx, clips, w.state.Settings().LUTSelection, progress)
		if err != nil {
			return err
		}

		preset := make(map[string]string, len(grades))
		for _, g := range grades {
			preset[g.Clip.Name] = g.Preset
		}
		paths := map[string]string{}
		wanted := 0
		for _, it := range items {
			p, ok := preset[it.Name]
			if !ok || p == grading.DefaultPreset {
				continue
			}
			wanted++
			path, seen := paths[p]
			if !seen {
				path, err = w.lutPath(p)
				if err != nil {
					w.logger.Warn("preset has no usable LUT", "preset", p, "error", err)
				}
				paths[p] = path
			}
			if path != "" && w.delegate.ApplyItemLUT(ctx, it, path) {
				applied++
			}
		}
		if wanted > 0 && applied == 0 {
			return errors.New("no graded item took its LUT")
		}
		return nil
	})
	return grades, applied, err
}

// openColorPage shows the grading page so LUT changes are visible. The
// grade is applied either way.
func (w *Workspace) openColorPage(ctx context.Context) {
	if !w.probe.Supports(host.KindResolve, "OpenPage") {
		return
	}
	if !w.delegate.OpenPage(ctx, ColorPage) {
		w.logger.Debug("could not switch to the color page")
	}
}

// AddTransitions inserts name (or the default transition) between every
// pair of items on the current timeline.
func (w *Workspace) AddTransitions(ctx context.Context, name string, seconds float64) (int, error) {
	if err := w.requireSession(); err != nil {
		return 0, err
	}
	settings := w.state.Settings()
	if name == "" {
		name = settings.DefaultTransition
	}
	if seconds <= 0 {
		seconds = settings.DefaultTransitionDuration
	}
	var added int
	err := w.run(ctx, journal.TaskTransitions, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		n, ok := w.delegate.AddTransitions(ctx, tl, name, seconds)
		if !ok {
			return fmt.Errorf("no %s transitions added", name)
		}
		added = n
		return nil
	})
	return added, err
}

// EnhanceAudio runs the audio operations enabled in the settings on every
// track of the current timeline.
func (w *Workspace) EnhanceAudio(ctx context.Context) (editor.AudioReport, error) {
	if err := w.requireSession(); err != nil {
		return editor.AudioReport{}, err
	}
	settings := w.state.Settings()
	opts := editor.AudioOptions{Normalize: settings.AutoVolume, Denoise: settings.NoiseGateEQ}
	if !opts.Normalize && !opts.Denoise {
		return editor.AudioReport{}, fmt.Errorf("%w: audio options are off", ErrNothingToDo)
	}
	var report editor.AudioReport
	err := w.run(ctx, journal.TaskAudio, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		report, err = w.analyzer.EnhanceAudio(ctx, w.delegate.Mixer(tl), opts)
		if err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("audio enhancement failed on all %d tracks", report.Tracks)
		}
		return nil
	})
	return report, err
}

// ApplyEffect adds a compositing comp holding tool to every item of the
// current timeline. It returns the number of items that took it.
func (w *Workspace) ApplyEffect(ctx context.Context, tool string) (int, error) {
	if err := w.requireSession(); err != nil {
		return 0, err
	}
	tool = strings.TrimSpace(tool)
	if tool == "" {
		return 0, errors.New("effect tool name is required")
	}
	var applied int
	err := w.run(ctx, journal.TaskEffect, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		items := w.delegate.TimelineItems(ctx, tl)
		if len(items) == 0 {
			return fmt.Errorf("%w: timeline is empty", ErrNothingToDo)
		}
		for _, it := range items {
			if err := ctx.Err(); err != nil {
				return err
			}
			if w.delegate.ApplyEffect(ctx, it.Object, tool) {
				applied++
			}
		}
		if applied == 0 {
			return fmt.Errorf("effect %s not applied to any item", tool)
		}
		return nil
	})
	return applied, err
}

// Trim cuts item index (1-based, primary layer) of the current timeline to
// [start, end] seconds of its source. The host cannot trim in place, so the
// item is removed and re-added at the end of the timeline.
func (w *Workspace) Trim(ctx context.Context, index int, start, end float64) error {
	if err := w.requireSession(); err != nil {
		return err
	}
	if start < 0 || end <= start {
		return fmt.Errorf("invalid trim range %.2f-%.2f", start, end)
	}
	return w.run(ctx, journal.TaskTrim, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		tl, err := w.currentTimeline(ctx)
		if err != nil {
			return err
		}
		items := w.delegate.TimelineItems(ctx, tl)
		if index < 1 || index > len(items) {
			return fmt.Errorf("item %d out of range, timeline has %d", index, len(items))
		}
		if !w.delegate.TrimItem(ctx, tl, items[index-1], start, end) {
			return fmt.Errorf("host could not trim item %d", index)
		}
		return nil
	})
}
