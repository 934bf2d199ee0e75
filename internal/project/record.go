// Package project holds the project record: what was edited, with which
// settings, and which clips sat on the timeline when it was last saved.
// Records are stored as one JSON document per project file.
package project

import (
	"errors"
	"maps"
	"sync"
	"time"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
)

const (
	FormatVersion = "1.0"
	Extension     = ".droneproj"
)

var (
	ErrIO     = errors.New("project io error")
	ErrEncode = errors.New("project encode error")
	ErrDecode = errors.New("project decode error")
	ErrSchema = errors.New("project schema error")
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type TimelineData struct {
	Name       string     `json:"name"`
	FPS        int        `json:"fps"`
	Resolution Resolution `json:"resolution"`
}

type ClipData struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	StartFrame int64  `json:"start_frame"`
	EndFrame   int64  `json:"end_frame"`
	FilePath   string `json:"file_path"`
}

// Record is the persisted project. Created and Modified are epoch seconds.
type Record struct {
	Version     string         `json:"version"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Created     int64          `json:"created"`
	Modified    int64          `json:"modified"`
	Settings    map[string]any `json:"settings"`
	Timeline    TimelineData   `json:"timeline_data"`
	Clips       []ClipData     `json:"clip_data"`
}

// NewRecord starts a project at now with a snapshot of settings.
func NewRecord(name, description string, settings config.Settings, now time.Time) Record {
	return Record{
		Version:     FormatVersion,
		Name:        name,
		Description: description,
		Created:     now.Unix(),
		Modified:    now.Unix(),
		Settings:    settings.ToMap(),
	}
}

// capture replaces the timeline summary and clip list.
func (r *Record) capture(sum editor.TimelineSummary, clips []editor.ClipDescriptor) {
	r.Timeline = TimelineData{
		Name:       sum.Name,
		FPS:        sum.FPS,
		Resolution: Resolution{Width: sum.Width, Height: sum.Height},
	}
	r.Clips = make([]ClipData, 0, len(clips))
	for _, c := range clips {
		r.Clips = append(r.Clips, ClipData{
			Index:      c.Index,
			Name:       c.Name,
			StartFrame: c.StartFrame,
			EndFrame:   c.EndFrame,
			FilePath:   c.FilePath,
		})
	}
}

func (r Record) clone() Record {
	r.Settings = maps.Clone(r.Settings)
	r.Clips = append([]ClipData(nil), r.Clips...)
	return r
}

// State is the open project: its record, the file it came from and the
// live settings. The orchestrator owns exactly one.
type State struct {
	mu       sync.RWMutex
	record   Record
	path     string
	settings config.Settings
}

func NewState(settings config.Settings) *State {
	return &State{settings: settings}
}

// Record returns a copy of the current record.
func (s *State) Record() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.clone()
}

// Open reports whether a project has been created or loaded.
func (s *State) Open() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.record.Version != ""
}

func (s *State) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *State) Settings() config.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// SetSettings replaces the live settings. They are snapshotted into the
// record on the next save.
func (s *State) SetSettings(settings config.Settings) {
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
}

// Reset starts a new, unsaved project.
func (s *State) Reset(r Record) {
	s.mu.Lock()
	s.record = r.clone()
	s.path = ""
	s.mu.Unlock()
}

// Replace swaps in r wholesale, as loaded from path. Settings stored in the
// record are applied over the defaults; rejected keys are returned.
func (s *State) Replace(r Record, path string) []error {
	settings := config.DefaultSettings()
	errs := settings.ApplyMap(r.Settings)

	s.mu.Lock()
	s.record = r.clone()
	s.path = path
	s.settings = settings
	s.mu.Unlock()
	return errs
}

// draft returns a copy of the record changed by fn. The state is left
// alone until commit.
func (s *State) draft(fn func(r *Record, settings config.Settings)) Record {
	s.mu.RLock()
	r, settings := s.record.clone(), s.settings
	s.mu.RUnlock()
	fn(&r, settings)
	return r
}

// commit stores r and, when path is set, makes it the project's file.
func (s *State) commit(r Record, path string) {
	s.mu.Lock()
	s.record = r.clone()
	if path != "" {
		s.path = path
	}
	s.mu.Unlock()
}
