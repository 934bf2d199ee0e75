package ui

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/droneedit/droneedit-agent/internal/api"
	"github.com/droneedit/droneedit-agent/internal/app"
)

func TestActions_UniqueNamesAndTitles(t *testing.T) {
	names := map[string]bool{}
	titles := map[string]bool{}
	for _, a := range Actions() {
		if a.Run == nil {
			t.Errorf("action %s has no Run", a.Name)
		}
		if names[a.Name] || titles[a.Title] {
			t.Errorf("duplicate action %s / %s", a.Name, a.Title)
		}
		names[a.Name] = true
		titles[a.Title] = true
		if got, ok := FindTitle(a.Title); !ok || got.Name != a.Name {
			t.Errorf("FindTitle(%q) = %v, %v", a.Title, got.Name, ok)
		}
	}
	if titles[QuitChoice] {
		t.Errorf("an action is titled %q", QuitChoice)
	}
}

func TestDispatch_UnknownAction(t *testing.T) {
	env := newTestEnv(t, false)
	err := Dispatch(context.Background(), env.ws, &recorder{}, "fly", nil)
	if !errors.Is(err, api.ErrUnknownAction) {
		t.Fatalf("err = %v, want ErrUnknownAction", err)
	}
}

func TestDispatch_FailureIsAlerted(t *testing.T) {
	env := newTestEnv(t, false)
	r := &recorder{}
	err := Dispatch(context.Background(), env.ws, r, "import", []string{"/footage/a.mp4"})
	if !errors.Is(err, app.ErrNoSession) {
		t.Fatalf("err = %v, want ErrNoSession", err)
	}
	if len(r.alerts) != 1 || !strings.HasPrefix(r.alerts[0], "Import Footage failed: ") {
		t.Errorf("alerts = %v", r.alerts)
	}
}

func TestDispatch_DismissedPromptIsQuiet(t *testing.T) {
	env := newTestEnv(t, false)
	r := &recorder{}
	if err := Dispatch(context.Background(), env.ws, r, "load", nil); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if len(r.alerts) != 0 {
		t.Errorf("alerts = %v, want none", r.alerts)
	}
	if len(r.prompts) != 1 || r.prompts[0] != PathOpen {
		t.Errorf("prompts = %v", r.prompts)
	}
}

func TestTrim_BadArguments(t *testing.T) {
	env := newTestEnv(t, true)
	for _, args := range [][]string{nil, {"1", "2"}, {"x", "0", "1"}, {"1", "a", "1"}, {"1", "0", "b"}} {
		if err := Dispatch(context.Background(), env.ws, &recorder{}, "trim", args); err == nil {
			t.Errorf("trim %v succeeded", args)
		}
	}
	if err := Dispatch(context.Background(), env.ws, &recorder{}, "apply_effect", nil); err == nil {
		t.Error("apply_effect without a tool succeeded")
	}
}

func TestExpandFootage(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.MOV", "a.mp4", "notes.txt", "a.lrv", ".hidden.mp4"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := expandFootage([]string{dir, "/elsewhere/c.mp4"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "b.MOV"), "/elsewhere/c.mp4"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expandFootage = %v, want %v", got, want)
	}

	if _, err := expandFootage([]string{t.TempDir()}); !errors.Is(err, app.ErrNothingToDo) {
		t.Errorf("empty folder err = %v, want ErrNothingToDo", err)
	}
}

func TestActions_EditFlowWithHost(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	r := &recorder{}

	steps := []struct {
		name string
		args []string
		want string
	}{
		{"new_project", []string{"Coast", "morning", "flight"}, "New Project: Project Coast created"},
		{"import", []string{"/footage/a.mp4", "/footage/b.mp4"}, "Import Footage: Imported 2 of 2 files"},
		{"detect_scenes", nil, "Detect Scenes: "},
		{"apply_lut", []string{"Default"}, "Apply LUT: Default grade: no LUT applied"},
		{"apply_effect", []string{"Glow"}, "Apply Effect: Glow added to "},
		{"trim", []string{"1", "0", "1.5"}, "Trim Clip: Item 1 trimmed to 0.00s-1.50s"},
		{"status", nil, "Status: Host: "},
	}
	for _, s := range steps {
		if err := Dispatch(ctx, env.ws, r, s.name, s.args); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
		last := r.alerts[len(r.alerts)-1]
		if !strings.HasPrefix(last, s.want) {
			t.Errorf("%s alert = %q, want prefix %q", s.name, last, s.want)
		}
	}
	if len(r.progress) == 0 || r.progress[len(r.progress)-1] != 100 {
		t.Errorf("progress = %v, want to end at 100", r.progress)
	}

	// Saving a project with no file prompts for one.
	path := filepath.Join(t.TempDir(), "coast")
	r.answers = []string{path}
	if err := Dispatch(ctx, env.ws, r, "save", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".droneproj"); err != nil {
		t.Errorf("project not written: %v", err)
	}
	if len(r.prompts) != 1 || r.prompts[0] != PathSave {
		t.Errorf("prompts = %v", r.prompts)
	}

	// The second save reuses the file.
	if err := Dispatch(ctx, env.ws, r, "save", nil); err != nil {
		t.Fatal(err)
	}
	if len(r.prompts) != 1 {
		t.Errorf("second save prompted again")
	}
}

func TestFormatStatus(t *testing.T) {
	got := FormatStatus(app.Status{
		Project:      "Lake",
		Clips:        3,
		LUTSelection: "Cinematic",
		Analyzer:     "simulated",
		Busy:         "detect_scenes",
	})
	for _, want := range []string{"Host: not connected", "Project: Lake", "Clips: 3", "LUT: Cinematic", "Running: detect_scenes"} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatStatus missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Last error") {
		t.Errorf("unexpected last error line:\n%s", got)
	}
}
