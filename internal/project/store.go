package project

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/logging"
	"github.com/droneedit/droneedit-agent/internal/timecode"
)

// Editor is the host state a store reads on save and reconciles on load.
// *editor.Delegate satisfies it.
type Editor interface {
	Snapshot(ctx context.Context) (editor.TimelineSummary, []editor.ClipDescriptor)
	FindClip(ctx context.Context, name, path string) *editor.Clip
	ImportFiles(ctx context.Context, paths []string, bin string) []editor.Clip
	FindTimeline(ctx context.Context, name string) *host.Object
	SetCurrentTimeline(ctx context.Context, tl *host.Object) bool
	CreateTimeline(ctx context.Context, name string, placements []editor.Placement) *host.Object
}

// LoadReport says how a loaded record was matched against the host.
type LoadReport struct {
	Resolved        int
	Imported        int
	Missing         []string
	TimelineCreated bool
	TimelineReused  bool
	SettingsErrors  []error
}

// Store saves and loads records. A nil editor skips the host: saves keep the
// recorded timeline and loads do not reconcile.
type Store struct {
	editor Editor
	logger *slog.Logger
	now    func() time.Time
}

func NewStore(ed Editor, logger *slog.Logger) *Store {
	return &Store{
		editor: ed,
		logger: logging.WithComponent(logging.OrDiscard(logger), "project"),
		now:    time.Now,
	}
}

// Save refreshes the modified time, re-derives the timeline summary and clip
// list from the host, and overwrites path with the whole record.
func (s *Store) Save(ctx context.Context, path string, st *State) error {
	return s.write(ctx, path, st, true)
}

// write saves st to path; remember makes path the project's file.
func (s *Store) write(ctx context.Context, path string, st *State, remember bool) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: empty path", ErrIO)
	}
	var (
		sum   editor.TimelineSummary
		clips []editor.ClipDescriptor
	)
	if s.editor != nil {
		sum, clips = s.editor.Snapshot(ctx)
	}
	now := s.now()
	keep := ""
	if remember {
		keep = path
	}
	rec := st.draft(func(r *Record, settings config.Settings) {
		if r.Version == "" {
			*r = NewRecord("Untitled", "", settings, now)
		}
		r.Modified = now.Unix()
		r.Settings = settings.ToMap()
		if s.editor != nil {
			r.capture(sum, clips)
		}
	})

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %w", ErrIO, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	st.commit(rec, keep)
	s.logger.Info("project saved", "name", rec.Name, "path", logging.SanitizePath(path), "clips", len(rec.Clips))
	return nil
}

// Decode parses a project document. A missing or non-string version is a
// schema error.
func Decode(data []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	raw, ok := fields["version"]
	if !ok {
		return Record{}, fmt.Errorf("%w: missing version", ErrSchema)
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil || version == "" {
		return Record{}, fmt.Errorf("%w: version must be a non-empty string", ErrSchema)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return rec, nil
}

// Load reads path, replaces the state's record wholesale and reconciles the
// recorded clips and timeline against the host.
func (s *Store) Load(ctx context.Context, path string, st *State) (LoadReport, error) {
	var report LoadReport
	data, err := os.ReadFile(path)
	if err != nil {
		return report, fmt.Errorf("%w: %w", ErrIO, err)
	}
	rec, err := Decode(data)
	if err != nil {
		return report, err
	}
	if rec.Version != FormatVersion {
		s.logger.Warn("project written by a different format version", "version", rec.Version)
	}

	report.SettingsErrors = st.Replace(rec, path)
	for _, e := range report.SettingsErrors {
		s.logger.Warn("ignored project setting", "error", e)
	}
	s.logger.Info("project loaded", "name", rec.Name, "path", logging.SanitizePath(path), "clips", len(rec.Clips))

	if s.editor != nil {
		s.reconcile(ctx, rec, &report)
	}
	return report, nil
}

func (s *Store) reconcile(ctx context.Context, rec Record, report *LoadReport) {
	fps := rec.Timeline.FPS
	if fps <= 0 {
		fps = timecode.DefaultFPS
	}

	var placements []editor.Placement
	for _, cd := range rec.Clips {
		if ctx.Err() != nil {
			return
		}
		clip := s.editor.FindClip(ctx, cd.Name, cd.FilePath)
		if clip != nil {
			report.Resolved++
		} else if cd.FilePath != "" {
			if imported := s.editor.ImportFiles(ctx, []string{cd.FilePath}, ""); len(imported) > 0 {
				clip = &imported[0]
				report.Imported++
			}
		}
		if clip == nil {
			s.logger.Warn("recorded clip not found", "clip", cd.Name, "path", logging.SanitizePath(cd.FilePath))
			report.Missing = append(report.Missing, cd.Name)
			continue
		}
		if length := timecode.FramesToSeconds(cd.EndFrame-cd.StartFrame, fps); length > 0 {
			placements = append(placements, editor.Placement{Clip: clip.Item, Name: clip.Name, Start: 0, End: length})
		}
	}

	name := rec.Timeline.Name
	if name == "" {
		return
	}
	if tl := s.editor.FindTimeline(ctx, name); tl != nil {
		report.TimelineReused = s.editor.SetCurrentTimeline(ctx, tl)
		return
	}
	report.TimelineCreated = s.editor.CreateTimeline(ctx, name, placements) != nil
}

// AutosaveName builds the autosave file name for project at t: path
// separators are stripped, spaces become underscores.
func AutosaveName(project string, t time.Time) string {
	name := strings.NewReplacer("/", "", `\`, "", " ", "_").Replace(strings.TrimSpace(project))
	if name == "" {
		name = "Untitled"
	}
	return fmt.Sprintf("%s_%s_autosave%s", name, t.Format("20060102_150405"), Extension)
}

// Autosave saves the open project under dir with a generated name and
// returns the path written.
func (s *Store) Autosave(ctx context.Context, dir string, st *State) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("%w: no autosave directory", ErrIO)
	}
	rec := st.Record()
	path := filepath.Join(dir, AutosaveName(rec.Name, s.now()))
	if err := s.write(ctx, path, st, false); err != nil {
		return "", err
	}
	return path, nil
}
