package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/export"
	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/logging"
	"github.com/droneedit/droneedit-agent/internal/project"
	"github.com/droneedit/droneedit-agent/internal/timecode"
)

// Save writes the project to path, or to the file it was last saved to or
// loaded from when path is empty.
func (w *Workspace) Save(ctx context.Context, path string) (string, error) {
	if path == "" {
		path = w.state.Path()
	}
	if path == "" {
		return "", errors.New("no project file chosen")
	}
	if filepath.Ext(path) == "" {
		path += project.Extension
	}
	err := w.run(ctx, journal.TaskSave, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		if err := w.store.Save(ctx, path, w.state); err != nil {
			return err
		}
		if w.delegate != nil && !w.delegate.SaveHostProject(ctx) {
			w.logger.Warn("host did not save its project")
		}
		w.remember(ctx, path)
		return nil
	})
	return path, err
}

// Load replaces the open project with the one at path and reconciles it
// against the host.
func (w *Workspace) Load(ctx context.Context, path string) (project.LoadReport, error) {
	var report project.LoadReport
	err := w.run(ctx, journal.TaskLoad, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		var err error
		report, err = w.store.Load(ctx, path, w.state)
		if err != nil {
			return err
		}
		w.syncLevel()
		w.setView(func() {
			w.clips = nil
			w.segments = nil
			w.timeline = w.state.Record().Timeline.Name
		})
		w.remember(ctx, path)
		return nil
	})
	return report, err
}

func (w *Workspace) remember(ctx context.Context, path string) {
	if w.journal == nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if err := w.journal.TouchRecentProject(ctx, &journal.RecentProject{Path: abs, Name: w.state.Record().Name}); err != nil {
		w.logger.Warn("failed to record recent project", "error", err)
	}
	if err := w.journal.SetConfig(ctx, journal.KeyLastProject, abs); err != nil {
		w.logger.Warn("failed to record last project", "error", err)
	}
}

// AutosaveDir is the settings' autosave_dir, else the configured default.
func (w *Workspace) AutosaveDir() string {
	if dir := w.state.Settings().AutosaveDir; dir != "" {
		return dir
	}
	return w.autosaveDir
}

// Autosave saves a timestamped copy of the open project. The project's own
// file is left alone.
func (w *Workspace) Autosave(ctx context.Context) (string, error) {
	var path string
	err := w.run(ctx, journal.TaskSave, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		var err error
		path, err = w.store.Autosave(ctx, w.AutosaveDir(), w.state)
		return err
	})
	return path, err
}

// RunAutosave autosaves the open project every interval until ctx is done.
// Ticks that find the workspace busy or no project open are skipped.
func (w *Workspace) RunAutosave(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.state.Open() {
				continue
			}
			path, err := w.Autosave(ctx)
			switch {
			case errors.Is(err, ErrBusy):
				w.logger.Debug("autosave skipped, workspace busy")
			case err != nil:
				w.logger.Warn("autosave failed", "error", err)
			default:
				w.logger.Info("autosaved", "path", logging.SanitizePath(path))
			}
		}
	}
}

// ExportEDL writes the last detected scenes as an edit decision list into
// dir.
func (w *Workspace) ExportEDL(ctx context.Context, dir string) (string, error) {
	var path string
	err := w.run(ctx, journal.TaskExport, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		w.view.RLock()
		segs := append([]analysis.Segment(nil), w.segments...)
		w.view.RUnlock()
		if len(segs) == 0 {
			return fmt.Errorf("%w: detect scenes before exporting", ErrNothingToDo)
		}

		fps := timecode.DefaultFPS
		if w.delegate != nil {
			if tl := w.delegate.CurrentTimeline(ctx); tl != nil {
				fps = w.delegate.TimelineFPS(ctx, tl)
			}
		}
		events := make([]export.Event, 0, len(segs))
		for _, s := range segs {
			events = append(events, export.Event{ClipName: s.Clip.Name, MediaPath: s.Clip.FilePath, Start: s.Start, End: s.End})
		}
		var err error
		path, err = export.WriteEDL(events, dir, w.title(), float64(fps))
		return err
	})
	return path, err
}

// Render queues a render of the current timeline into dir using the export
// settings.
func (w *Workspace) Render(ctx context.Context, dir string) (string, error) {
	if err := w.requireSession(); err != nil {
		return "", err
	}
	if err := export.ValidateOutputDir(dir); err != nil {
		return "", err
	}
	var job string
	err := w.run(ctx, journal.TaskRender, nil, func(ctx context.Context, _ analysis.ProgressFunc) error {
		if _, err := w.currentTimeline(ctx); err != nil {
			return err
		}
		settings := w.state.Settings()
		id, ok := w.delegate.QueueRender(ctx, export.SanitizeName(w.title(), 120), settings.ExportFormat, settings.ExportResolution, dir)
		if !ok {
			return errors.New("host did not start the render")
		}
		job = id
		return nil
	})
	return job, err
}

func (w *Workspace) title() string {
	if name := w.state.Record().Name; name != "" {
		return name
	}
	w.view.RLock()
	defer w.view.RUnlock()
	if w.timeline != "" {
		return w.timeline
	}
	return "droneedit"
}
