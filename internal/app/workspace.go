// Package app holds the Workspace, the one place the editing workflow is
// written down. Every front-end calls into it; none of them repeat it.
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/capability"
	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/grading"
	"github.com/droneedit/droneedit-agent/internal/host"
	"github.com/droneedit/droneedit-agent/internal/journal"
	"github.com/droneedit/droneedit-agent/internal/logging"
	"github.com/droneedit/droneedit-agent/internal/project"
)

var (
	// ErrNoSession is returned by host operations in console testing mode.
	ErrNoSession = errors.New("no host session")
	// ErrBusy means another operation holds the workspace.
	ErrBusy = errors.New("another operation is running")
	// ErrNoTimeline means the host has no current timeline.
	ErrNoTimeline = errors.New("no current timeline")
	// ErrNothingToDo covers empty inputs such as an empty media pool.
	ErrNothingToDo = errors.New("nothing to do")
)

// DefaultBin receives imported footage.
const DefaultBin = "Drone Footage"

// ColorPage is the host page LUTs are applied on.
const ColorPage = "color"

// IngestBin receives footage picked up by the folder watcher.
const IngestBin = "Ingest"

type Options struct {
	Session     *host.Session // nil in console testing mode
	Probe       *capability.Probe
	Analyzer    analysis.Analyzer
	Journal     journal.Repository
	Tracker     *journal.Tracker
	LUTs        *grading.Library
	Settings    config.Settings
	AutosaveDir string // used when the settings name none
	Logger      *slog.Logger
}

type Workspace struct {
	mu sync.Mutex // one operation at a time

	session  *host.Session
	probe    *capability.Probe
	delegate *editor.Delegate
	analyzer analysis.Analyzer
	store    *project.Store
	state    *project.State
	journal  journal.Repository
	tracker  *journal.Tracker
	luts     *grading.Library
	logger   *slog.Logger

	autosaveDir string

	view     sync.RWMutex // guards the fields below for Status
	clips    []editor.Clip
	segments []analysis.Segment
	timeline string
	lastErr  string
	busy     string
}

func New(opts Options) *Workspace {
	logger := logging.WithComponent(logging.OrDiscard(opts.Logger), "workspace")
	w := &Workspace{
		session:     opts.Session,
		probe:       opts.Probe,
		analyzer:    opts.Analyzer,
		state:       project.NewState(opts.Settings),
		journal:     opts.Journal,
		tracker:     opts.Tracker,
		luts:        opts.LUTs,
		logger:      logger,
		autosaveDir: opts.AutosaveDir,
	}
	if w.analyzer == nil {
		w.analyzer = analysis.NewSimulated(analysis.Options{Level: opts.Settings.AIProcessingLevel, Logger: opts.Logger})
	}
	if w.tracker == nil && w.journal != nil {
		w.tracker = journal.NewTracker(w.journal, opts.Logger)
	}
	if opts.Session != nil {
		if w.probe == nil {
			w.probe = capability.NewProbe(opts.Session.Version, opts.Logger)
		}
		w.delegate = editor.New(opts.Session, w.probe, opts.Logger)
		w.store = project.NewStore(w.delegate, opts.Logger)
	} else {
		w.store = project.NewStore(nil, opts.Logger)
	}
	return w
}

// Connected reports whether a host session is attached.
func (w *Workspace) Connected() bool { return w.delegate != nil }

func (w *Workspace) Probe() *capability.Probe { return w.probe }

func (w *Workspace) Session() *host.Session { return w.session }

func (w *Workspace) Delegate() *editor.Delegate { return w.delegate }

func (w *Workspace) Tracker() *journal.Tracker { return w.tracker }

func (w *Workspace) Settings() config.Settings { return w.state.Settings() }

// UpdateSettings applies m over the live settings. Unknown keys are
// ignored; rejected keys keep their value and are returned. A new
// ai_processing_level reaches the analyzer for the next operation.
func (w *Workspace) UpdateSettings(m map[string]any) []error {
	s := w.state.Settings()
	errs := s.ApplyMap(m)
	w.state.SetSettings(s)
	w.syncLevel()
	return errs
}

func (w *Workspace) syncLevel() {
	if ls, ok := w.analyzer.(analysis.LevelSetter); ok {
		ls.SetLevel(w.state.Settings().AIProcessingLevel)
	}
}

// Tasks lists recent journaled tasks.
func (w *Workspace) Tasks(ctx context.Context, limit int) ([]*journal.Task, error) {
	if w.journal == nil {
		return nil, nil
	}
	return w.journal.ListTasks(ctx, limit)
}

// RecentProjects lists recently saved or loaded projects.
func (w *Workspace) RecentProjects(ctx context.Context, limit int) ([]*journal.RecentProject, error) {
	if w.journal == nil {
		return nil, nil
	}
	return w.journal.ListRecentProjects(ctx, limit)
}

// Cancel stops the running task id.
func (w *Workspace) Cancel(id string) bool {
	if w.tracker == nil {
		return false
	}
	return w.tracker.Cancel(id)
}

// CancelAll stops every running task.
func (w *Workspace) CancelAll() {
	if w.tracker == nil {
		return
	}
	for _, id := range w.tracker.Active() {
		w.tracker.Cancel(id)
	}
}

// Status is a snapshot for front-ends. It never waits for a running
// operation.
type Status struct {
	Connected    bool      `json:"connected"`
	Product      string    `json:"product,omitempty"`
	HostVersion  string    `json:"host_version,omitempty"`
	ConnectedAt  time.Time `json:"connected_at,omitempty"`
	Analyzer     string    `json:"analyzer"`
	Project      string    `json:"project,omitempty"`
	ProjectPath  string    `json:"project_path,omitempty"`
	Timeline     string    `json:"timeline,omitempty"`
	Clips        int       `json:"clips"`
	Segments     int       `json:"segments"`
	Busy         string    `json:"busy,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LUTSelection string    `json:"lut_selection"`
	ActiveTasks  []string  `json:"active_tasks,omitempty"`
}

func (w *Workspace) Status() Status {
	rec := w.state.Record()
	st := Status{
		Connected:    w.Connected(),
		Analyzer:     w.analyzer.Name(),
		Project:      rec.Name,
		ProjectPath:  w.state.Path(),
		LUTSelection: w.state.Settings().LUTSelection,
	}
	if w.session != nil {
		st.Product = w.session.Product
		st.HostVersion = w.session.Version
		st.ConnectedAt = w.session.ConnectedAt
	}
	if w.tracker != nil {
		st.ActiveTasks = w.tracker.Active()
	}
	w.view.RLock()
	st.Timeline = w.timeline
	st.Clips = len(w.clips)
	st.Segments = len(w.segments)
	st.Busy = w.busy
	st.LastError = w.lastErr
	w.view.RUnlock()
	return st
}

// run holds the workspace for one journaled operation of kind. progress
// may be nil.
func (w *Workspace) run(ctx context.Context, kind string, progress analysis.ProgressFunc, fn func(ctx context.Context, progress analysis.ProgressFunc) error) error {
	if !w.mu.TryLock() {
		return ErrBusy
	}
	defer w.mu.Unlock()

	w.setView(func() { w.busy = kind })
	defer w.setView(func() { w.busy = "" })

	if w.tracker == nil {
		err := fn(ctx, progress)
		w.recordErr(err)
		return err
	}
	ctx, r := w.tracker.Start(ctx, kind)
	report := func(p int) {
		r.Progress(p)
		if progress != nil {
			progress(p)
		}
	}
	err := r.Finish(fn(ctx, report))
	w.recordErr(err)
	return err
}

func (w *Workspace) setView(fn func()) {
	w.view.Lock()
	fn()
	w.view.Unlock()
}

func (w *Workspace) recordErr(err error) {
	w.setView(func() {
		if err != nil {
			w.lastErr = err.Error()
		} else {
			w.lastErr = ""
		}
	})
}

func (w *Workspace) requireSession() error {
	if w.delegate == nil {
		return ErrNoSession
	}
	return nil
}

func (w *Workspace) currentTimeline(ctx context.Context) (*host.Object, error) {
	if err := w.requireSession(); err != nil {
		return nil, err
	}
	tl := w.delegate.CurrentTimeline(ctx)
	if tl == nil {
		return nil, ErrNoTimeline
	}
	name := w.delegate.TimelineName(ctx, tl)
	w.setView(func() { w.timeline = name })
	return tl, nil
}
