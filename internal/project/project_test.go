package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/editor"
	"github.com/droneedit/droneedit-agent/internal/host/hosttest"
)

var fixedNow = time.Date(2026, 10, 14, 9, 30, 5, 0, time.UTC)

func newTestStore(t *testing.T, fake *hosttest.Host) (*Store, *editor.Delegate) {
	t.Helper()
	var ed Editor
	var d *editor.Delegate
	if fake != nil {
		session, err := fake.Connect(context.Background())
		if err != nil {
			t.Fatalf("Connect error: %v", err)
		}
		d = editor.New(session, nil, nil)
		ed = d
	}
	s := NewStore(ed, nil)
	s.now = func() time.Time { return fixedNow }
	return s, d
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store, _ := newTestStore(t, nil)
	ctx := context.Background()

	settings := config.DefaultSettings()
	settings.LUTSelection = "Vintage"
	settings.DefaultTransitionDuration = 2.5
	st := NewState(settings)
	st.Reset(NewRecord("Lake Tahoe", "sunset flight", settings, fixedNow.Add(-time.Hour)))

	path := filepath.Join(t.TempDir(), "lake"+Extension)
	if err := store.Save(ctx, path, st); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	saved := st.Record()
	if saved.Modified != fixedNow.Unix() || saved.Created != fixedNow.Add(-time.Hour).Unix() {
		t.Errorf("timestamps = %d/%d", saved.Created, saved.Modified)
	}
	if st.Path() != path {
		t.Errorf("path = %q", st.Path())
	}

	loaded := NewState(config.DefaultSettings())
	report, err := store.Load(ctx, path, loaded)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if len(report.SettingsErrors) != 0 {
		t.Errorf("settings errors = %v", report.SettingsErrors)
	}
	got := loaded.Record()
	if got.Version != FormatVersion || got.Name != "Lake Tahoe" || got.Description != "sunset flight" {
		t.Errorf("record = %+v", got)
	}
	if got.Settings["lut_selection"] != "Vintage" || got.Settings["default_transition_duration"] != 2.5 {
		t.Errorf("settings = %v", got.Settings)
	}
	if s := loaded.Settings(); s != settings {
		t.Errorf("live settings = %+v, want %+v", s, settings)
	}
}

func TestLoad_Errors(t *testing.T) {
	store, _ := newTestStore(t, nil)
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"missing file", filepath.Join(dir, "nope.droneproj"), ErrIO},
		{"bad json", write("bad.droneproj", "{not json"), ErrDecode},
		{"no version", write("nov.droneproj", `{"name":"x"}`), ErrSchema},
		{"numeric version", write("numv.droneproj", `{"version":1}`), ErrSchema},
		{"bad field type", write("badf.droneproj", `{"version":"1.0","created":"yesterday"}`), ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState(config.DefaultSettings())
			_, err := store.Load(context.Background(), tt.path, st)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
			if st.Open() {
				t.Error("state replaced after failed load")
			}
		})
	}
}

func TestLoad_IgnoresUnknownAndRejectsMistypedSettings(t *testing.T) {
	store, _ := newTestStore(t, nil)
	path := filepath.Join(t.TempDir(), "p.droneproj")
	body := `{"version":"1.0","name":"P","settings":{"auto_volume":"yes","brand_new":1,"lut_selection":"Cinematic"}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	st := NewState(config.DefaultSettings())
	report, err := store.Load(context.Background(), path, st)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.SettingsErrors) != 1 {
		t.Fatalf("settings errors = %v, want 1", report.SettingsErrors)
	}
	var te *config.TypeError
	if !errors.As(report.SettingsErrors[0], &te) || te.Key != "auto_volume" {
		t.Errorf("error = %v", report.SettingsErrors[0])
	}
	if s := st.Settings(); s.LUTSelection != "Cinematic" || !s.AutoVolume {
		t.Errorf("settings = %+v", s)
	}
}

func TestSave_DerivesFromHost(t *testing.T) {
	fake := hosttest.New()
	store, d := newTestStore(t, fake)
	ctx := context.Background()

	clips := d.ImportFiles(ctx, []string{"/footage/a.mp4", "/footage/b.mp4"}, "")
	d.CreateTimeline(ctx, "Cut 1", []editor.Placement{
		{Clip: clips[0].Item, Start: 0, End: 4},
		{Clip: clips[1].Item, Start: 2, End: 5},
	})

	st := NewState(config.DefaultSettings())
	st.Reset(NewRecord("Flight", "", config.DefaultSettings(), fixedNow))
	path := filepath.Join(t.TempDir(), "flight.droneproj")
	if err := store.Save(ctx, path, st); err != nil {
		t.Fatal(err)
	}

	rec := st.Record()
	if rec.Timeline.Name != "Cut 1" || rec.Timeline.FPS != 30 || rec.Timeline.Resolution.Width != 3840 {
		t.Errorf("timeline = %+v", rec.Timeline)
	}
	want := []ClipData{
		{Index: 0, Name: "a.mp4", StartFrame: 0, EndFrame: 120, FilePath: "/footage/a.mp4"},
		{Index: 1, Name: "b.mp4", StartFrame: 120, EndFrame: 210, FilePath: "/footage/b.mp4"},
	}
	if len(rec.Clips) != len(want) {
		t.Fatalf("clips = %+v", rec.Clips)
	}
	for i := range want {
		if rec.Clips[i] != want[i] {
			t.Errorf("clip %d = %+v, want %+v", i, rec.Clips[i], want[i])
		}
	}

	data, _ := os.ReadFile(path)
	for _, key := range []string{`"timeline_data"`, `"clip_data"`, `"start_frame": 120`, `"version": "1.0"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("file missing %s", key)
		}
	}
}

func TestLoad_ReconcilesAgainstHost(t *testing.T) {
	fake := hosttest.New()
	fake.AddClip("/footage/a.mp4", 30.0)
	store, _ := newTestStore(t, fake)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "r.droneproj")
	body := `{
  "version": "1.0",
  "name": "Reconcile",
  "timeline_data": {"name": "Rebuilt", "fps": 30, "resolution": {"width": 1920, "height": 1080}},
  "clip_data": [
    {"index": 0, "name": "a.mp4", "start_frame": 0, "end_frame": 60, "file_path": "/footage/a.mp4"},
    {"index": 1, "name": "b.mp4", "start_frame": 60, "end_frame": 150, "file_path": "/footage/b.mp4"},
    {"index": 2, "name": "gone.mp4", "start_frame": 150, "end_frame": 200, "file_path": "/footage/gone.mp4"}
  ]
}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	fake.SetMissing("/footage/gone.mp4")

	report, err := store.Load(ctx, path, NewState(config.DefaultSettings()))
	if err != nil {
		t.Fatal(err)
	}
	if report.Resolved != 1 || report.Imported != 1 || len(report.Missing) != 1 || report.Missing[0] != "gone.mp4" {
		t.Errorf("report = %+v", report)
	}
	if !report.TimelineCreated || report.TimelineReused {
		t.Errorf("report = %+v, want timeline created", report)
	}
	info, ok := fake.Timeline("Rebuilt")
	if !ok || len(info.Items) != 2 {
		t.Fatalf("timeline = %+v, %v", info, ok)
	}
	if info.Items[1].Clip != "b.mp4" || info.Items[1].End-info.Items[1].Start != 90 {
		t.Errorf("items = %+v", info.Items)
	}

	// A second load finds the timeline and only switches to it.
	report, err = store.Load(ctx, path, NewState(config.DefaultSettings()))
	if err != nil {
		t.Fatal(err)
	}
	if report.TimelineCreated || !report.TimelineReused || report.Resolved != 2 {
		t.Errorf("second report = %+v", report)
	}
	if names := fake.TimelineNames(); len(names) != 1 {
		t.Errorf("timelines = %v", names)
	}
	if fake.CurrentTimelineName() != "Rebuilt" {
		t.Errorf("current = %q", fake.CurrentTimelineName())
	}
}

func TestAutosaveName(t *testing.T) {
	got := AutosaveName("Test/Proj", fixedNow)
	if got != "TestProj_20261014_093005_autosave.droneproj" {
		t.Errorf("AutosaveName = %q", got)
	}
	if got := AutosaveName(`My Big\Flight`, fixedNow); got != "My_BigFlight_20261014_093005_autosave.droneproj" {
		t.Errorf("AutosaveName = %q", got)
	}
	if got := AutosaveName("  ", fixedNow); !strings.HasPrefix(got, "Untitled_") {
		t.Errorf("AutosaveName(blank) = %q", got)
	}
}

func TestAutosave_KeepsProjectPath(t *testing.T) {
	store, _ := newTestStore(t, nil)
	dir := t.TempDir()
	st := NewState(config.DefaultSettings())
	st.Reset(NewRecord("Test/Proj", "", config.DefaultSettings(), fixedNow))

	main := filepath.Join(dir, "main.droneproj")
	if err := store.Save(context.Background(), main, st); err != nil {
		t.Fatal(err)
	}
	path, err := store.Autosave(context.Background(), filepath.Join(dir, "auto"), st)
	if err != nil {
		t.Fatalf("Autosave error: %v", err)
	}
	if filepath.Base(path) != "TestProj_20261014_093005_autosave.droneproj" {
		t.Errorf("autosave path = %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error(err)
	}
	if st.Path() != main {
		t.Errorf("project path = %q after autosave, want %q", st.Path(), main)
	}
}

func TestSave_FailedWriteLeavesState(t *testing.T) {
	store, _ := newTestStore(t, nil)
	created := fixedNow.Add(-time.Hour)
	st := NewState(config.DefaultSettings())
	st.Reset(NewRecord("Canyon", "", config.DefaultSettings(), created))

	settings := config.DefaultSettings()
	settings.LUTSelection = "Vintage"
	st.SetSettings(settings)

	// The target is a directory, so the write itself fails.
	err := store.Save(context.Background(), t.TempDir(), st)
	if !errors.Is(err, ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	rec := st.Record()
	if rec.Modified != created.Unix() {
		t.Errorf("modified = %d, want unchanged %d", rec.Modified, created.Unix())
	}
	if rec.Settings["lut_selection"] == "Vintage" {
		t.Errorf("settings snapshot taken by failed save: %v", rec.Settings)
	}
	if st.Path() != "" {
		t.Errorf("path = %q after failed save", st.Path())
	}
}
