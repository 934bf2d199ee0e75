// Package grading maps colour preset selections to LUT files on disk.
package grading

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/logging"
)

var (
	ErrUnknownPreset = errors.New("unknown lut preset")
	// ErrNoLUT is returned for the Default selection, which leaves clips ungraded.
	ErrNoLUT = errors.New("preset has no lut")
)

// DefaultPreset is the selection that applies no LUT.
const DefaultPreset = "Default"

// Preset describes one selection and where its file would live.
type Preset struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Present bool   `json:"present"`
}

// Info is the header of a .cube file.
type Info struct {
	Title string
	Size  int
	Is3D  bool
}

type Library struct {
	dir    string
	logger *slog.Logger
}

func NewLibrary(dir string, logger *slog.Logger) *Library {
	return &Library{dir: dir, logger: logging.WithComponent(logging.OrDiscard(logger), "grading")}
}

func (l *Library) Dir() string { return l.dir }

// FileName returns the .cube file name for a selection: lower case, spaces
// replaced by underscores.
func FileName(selection string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(selection)), " ", "_") + ".cube"
}

// Path resolves selection to an existing LUT file.
func (l *Library) Path(selection string) (string, error) {
	if !slices.Contains(config.LUTSelections, selection) {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, selection)
	}
	if selection == DefaultPreset {
		return "", ErrNoLUT
	}
	path := filepath.Join(l.dir, FileName(selection))
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("lut for %s: %w", selection, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("lut for %s: %s is a directory", selection, path)
	}
	if _, err := Inspect(path); err != nil {
		return "", err
	}
	l.logger.Debug("resolved lut", "preset", selection, "path", logging.SanitizePath(path))
	return path, nil
}

// Presets lists every selection and whether its file is installed.
func (l *Library) Presets() []Preset {
	out := make([]Preset, 0, len(config.LUTSelections))
	for _, name := range config.LUTSelections {
		p := Preset{Name: name}
		if name == DefaultPreset {
			p.Present = true
		} else {
			p.Path = filepath.Join(l.dir, FileName(name))
			_, err := os.Stat(p.Path)
			p.Present = err == nil
		}
		out = append(out, p)
	}
	return out
}

// Inspect reads the header keywords of a .cube file. A file with no
// LUT_1D_SIZE or LUT_3D_SIZE line is rejected.
func Inspect(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	var info Info
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, rest, _ := strings.Cut(line, " ")
		rest = strings.TrimSpace(rest)
		switch key {
		case "TITLE":
			info.Title = strings.Trim(rest, `"`)
		case "LUT_3D_SIZE", "LUT_1D_SIZE":
			n, err := strconv.Atoi(rest)
			if err != nil || n < 2 {
				return Info{}, fmt.Errorf("%s: bad %s %q", path, key, rest)
			}
			info.Size = n
			info.Is3D = key == "LUT_3D_SIZE"
			return info, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Info{}, err
	}
	return Info{}, fmt.Errorf("%s: not a cube lut", path)
}
