package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/api"
	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/project"
	"github.com/droneedit/droneedit-agent/internal/watcher"
)

// Action is one menu entry. Run returns the message shown on success.
// Args come from the console or the panel; when they are missing the
// action prompts through the Reporter.
type Action struct {
	Name  string
	Title string
	Usage string
	Run   func(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error)
}

var actions = []Action{
	{Name: "new_project", Title: "New Project", Usage: "new_project <name> [description]", Run: newProject},
	{Name: "import", Title: "Import Footage", Usage: "import <file or folder>...", Run: importFootage},
	{Name: "detect_scenes", Title: "Detect Scenes", Usage: "detect_scenes [timeline name]", Run: detectScenes},
	{Name: "highlights", Title: "Smart Highlights", Run: highlights},
	{Name: "apply_lut", Title: "Apply LUT", Usage: "apply_lut [selection]", Run: applyLUT},
	{Name: "auto_grade", Title: "Auto Color Grade", Run: autoGrade},
	{Name: "transitions", Title: "Add Transitions", Usage: "transitions [name]", Run: transitions},
	{Name: "apply_effect", Title: "Apply Effect", Usage: "apply_effect <tool>", Run: applyEffect},
	{Name: "trim", Title: "Trim Clip", Usage: "trim <item> <start> <end>", Run: trimItem},
	{Name: "enhance_audio", Title: "Enhance Audio", Run: enhanceAudio},
	{Name: "save", Title: "Save Project", Usage: "save [path]", Run: saveProject},
	{Name: "load", Title: "Open Project", Usage: "load <path>", Run: loadProject},
	{Name: "export_edl", Title: "Export EDL", Usage: "export_edl <dir>", Run: exportEDL},
	{Name: "render", Title: "Render", Usage: "render <dir>", Run: render},
	{Name: "status", Title: "Status", Run: status},
}

// Actions returns the menu in display order.
func Actions() []Action {
	return append([]Action(nil), actions...)
}

// Find looks an action up by name.
func Find(name string) (Action, bool) {
	for _, a := range actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}

// FindTitle looks an action up by its menu title.
func FindTitle(title string) (Action, bool) {
	for _, a := range actions {
		if a.Title == title {
			return a, true
		}
	}
	return Action{}, false
}

// Dispatch runs the named action and reports its outcome through r. A
// dismissed prompt is not a failure.
func Dispatch(ctx context.Context, ws *app.Workspace, r Reporter, name string, args []string) error {
	a, ok := Find(name)
	if !ok {
		return fmt.Errorf("%w: %q", api.ErrUnknownAction, name)
	}
	msg, err := a.Run(ctx, ws, r, args)
	switch {
	case errors.Is(err, ErrCancelled):
		return nil
	case err != nil:
		r.Alert(ctx, a.Title+" failed", err.Error())
		return err
	}
	if msg != "" {
		r.Alert(ctx, a.Title, msg)
	}
	return nil
}

func progressTo(ctx context.Context, r Reporter, title string) analysis.ProgressFunc {
	return func(p int) { r.Progress(ctx, title, p) }
}

// argOrPrompt joins args, or prompts when there are none.
func argOrPrompt(ctx context.Context, r Reporter, args []string, title string, kind PathKind) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return r.PromptPath(ctx, title, kind)
}

func newProject(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	var path, name, desc string
	if len(args) > 0 {
		name = args[0]
		desc = strings.Join(args[1:], " ")
	} else {
		p, err := r.PromptPath(ctx, "New Project", PathSave)
		if err != nil {
			return "", err
		}
		path = p
		name = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	if err := ws.NewProject(name, desc); err != nil {
		return "", err
	}
	if path != "" {
		saved, err := ws.Save(ctx, path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Project %s created at %s", name, saved), nil
	}
	return fmt.Sprintf("Project %s created", name), nil
}

func importFootage(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	if len(args) == 0 {
		p, err := r.PromptPath(ctx, "Import Footage", PathOpen)
		if err != nil {
			return "", err
		}
		args = []string{p}
	}
	paths, err := expandFootage(args)
	if err != nil {
		return "", err
	}
	clips, err := ws.Import(ctx, paths, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Imported %d of %d files", len(clips), len(paths)), nil
}

// expandFootage replaces folders with the video files directly inside them.
func expandFootage(args []string) ([]string, error) {
	var out []string
	for _, p := range args {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			out = append(out, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && watcher.IsVideoFile(e.Name()) {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("%w: no video files in %s", app.ErrNothingToDo, p)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func detectScenes(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	b, err := ws.DetectAndBuild(ctx, strings.Join(args, " "), progressTo(ctx, r, "Detect Scenes"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d scenes on %s, %d transitions", b.Segments, b.Timeline, b.Transitions), nil
}

func highlights(ctx context.Context, ws *app.Workspace, r Reporter, _ []string) (string, error) {
	hs, title, err := ws.Highlights(ctx, progressTo(ctx, r, "Smart Highlights"))
	if err != nil {
		return "", err
	}
	if len(hs) == 0 {
		return "No highlights found", nil
	}
	return fmt.Sprintf("%d highlights on %s, best score %.2f", len(hs), title, hs[0].Score), nil
}

func applyLUT(ctx context.Context, ws *app.Workspace, _ Reporter, args []string) (string, error) {
	sel := strings.Join(args, " ")
	if sel == "" {
		sel = ws.Settings().LUTSelection
	}
	n, err := ws.ApplyLUT(ctx, sel)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return sel + " grade: no LUT applied", nil
	}
	return fmt.Sprintf("%s LUT applied to %d items", sel, n), nil
}

func autoGrade(ctx context.Context, ws *app.Workspace, r Reporter, _ []string) (string, error) {
	grades, applied, err := ws.AutoGrade(ctx, progressTo(ctx, r, "Auto Color Grade"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Graded %d clips, %d items took a LUT", len(grades), applied), nil
}

func transitions(ctx context.Context, ws *app.Workspace, _ Reporter, args []string) (string, error) {
	n, err := ws.AddTransitions(ctx, strings.Join(args, " "), 0)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Added %d transitions", n), nil
}

func applyEffect(ctx context.Context, ws *app.Workspace, _ Reporter, args []string) (string, error) {
	tool := strings.Join(args, " ")
	if tool == "" {
		return "", errors.New("usage: apply_effect <tool>")
	}
	n, err := ws.ApplyEffect(ctx, tool)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s added to %d items", tool, n), nil
}

// trimItem takes the item number and the source range in seconds.
func trimItem(ctx context.Context, ws *app.Workspace, _ Reporter, args []string) (string, error) {
	if len(args) != 3 {
		return "", errors.New("usage: trim <item> <start> <end>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return "", fmt.Errorf("item number: %w", err)
	}
	start, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return "", fmt.Errorf("start: %w", err)
	}
	end, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return "", fmt.Errorf("end: %w", err)
	}
	if err := ws.Trim(ctx, index, start, end); err != nil {
		return "", err
	}
	return fmt.Sprintf("Item %d trimmed to %.2fs-%.2fs", index, start, end), nil
}

func enhanceAudio(ctx context.Context, ws *app.Workspace, _ Reporter, _ []string) (string, error) {
	rep, err := ws.EnhanceAudio(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d tracks: %d normalized, %d denoised", rep.Tracks, rep.Normalized, rep.Denoised), nil
}

func saveProject(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	path := strings.Join(args, " ")
	if path == "" && ws.Status().ProjectPath == "" {
		p, err := r.PromptPath(ctx, "Save Project", PathSave)
		if err != nil {
			return "", err
		}
		path = p
	}
	saved, err := ws.Save(ctx, path)
	if err != nil {
		return "", err
	}
	return "Saved " + saved, nil
}

func loadProject(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	path, err := argOrPrompt(ctx, r, args, "Open Project", PathOpen)
	if err != nil {
		return "", err
	}
	if filepath.Ext(path) == "" {
		path += project.Extension
	}
	rep, err := ws.Load(ctx, path)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("Loaded %s: %d clips found, %d re-imported", ws.Status().Project, rep.Resolved, rep.Imported)
	if len(rep.Missing) > 0 {
		msg += fmt.Sprintf(", missing: %s", strings.Join(rep.Missing, ", "))
	}
	if len(rep.SettingsErrors) > 0 {
		msg += fmt.Sprintf(" (%d settings ignored)", len(rep.SettingsErrors))
	}
	return msg, nil
}

func exportEDL(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	dir, err := argOrPrompt(ctx, r, args, "Export EDL", PathDir)
	if err != nil {
		return "", err
	}
	path, err := ws.ExportEDL(ctx, dir)
	if err != nil {
		return "", err
	}
	return "Wrote " + path, nil
}

func render(ctx context.Context, ws *app.Workspace, r Reporter, args []string) (string, error) {
	dir, err := argOrPrompt(ctx, r, args, "Render", PathDir)
	if err != nil {
		return "", err
	}
	job, err := ws.Render(ctx, dir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Render job %s started", job), nil
}

func status(_ context.Context, ws *app.Workspace, _ Reporter, _ []string) (string, error) {
	return FormatStatus(ws.Status()), nil
}

// FormatStatus renders a status snapshot as a few lines of text.
func FormatStatus(st app.Status) string {
	var b strings.Builder
	if st.Connected {
		fmt.Fprintf(&b, "Host: %s %s\n", st.Product, st.HostVersion)
	} else {
		b.WriteString("Host: not connected\n")
	}
	name := st.Project
	if name == "" {
		name = "(none)"
	}
	fmt.Fprintf(&b, "Project: %s\n", name)
	if st.ProjectPath != "" {
		fmt.Fprintf(&b, "File: %s\n", st.ProjectPath)
	}
	if st.Timeline != "" {
		fmt.Fprintf(&b, "Timeline: %s\n", st.Timeline)
	}
	fmt.Fprintf(&b, "Clips: %d  Scenes: %d  LUT: %s  Analysis: %s", st.Clips, st.Segments, st.LUTSelection, st.Analyzer)
	if st.Busy != "" {
		fmt.Fprintf(&b, "\nRunning: %s", st.Busy)
	}
	if st.LastError != "" {
		fmt.Fprintf(&b, "\nLast error: %s", st.LastError)
	}
	return b.String()
}
