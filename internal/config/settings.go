package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recognized option values.
var (
	ProcessingLevels = []string{"Low", "Medium", "High"}
	LUTSelections    = []string{"Default", "Cinematic", "Vintage", "Drone Aerial"}
	LogLevels        = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}
)

// Settings is the fixed options schema. It is loaded from settings.yaml,
// snapshotted into every saved project, and restored on project load.
type Settings struct {
	LogLevel                  string  `yaml:"log_level"`
	AIProcessingLevel         string  `yaml:"ai_processing_level"`
	LUTSelection              string  `yaml:"lut_selection"`
	ExportFormat              string  `yaml:"export_format"`
	ExportResolution          string  `yaml:"export_resolution"`
	AutoVolume                bool    `yaml:"auto_volume"`
	NoiseGateEQ               bool    `yaml:"noise_gate_eq"`
	DefaultTransition         string  `yaml:"default_transition"`
	DefaultTransitionDuration float64 `yaml:"default_transition_duration"`
	AutosaveDir               string  `yaml:"autosave_dir"`
}

// DefaultSettings returns the schema defaults.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:                  "INFO",
		AIProcessingLevel:         "Medium",
		LUTSelection:              "Drone Aerial",
		ExportFormat:              "mp4",
		ExportResolution:          "3840x2160",
		AutoVolume:                true,
		NoiseGateEQ:               true,
		DefaultTransition:         "Cross Dissolve",
		DefaultTransitionDuration: 1.0,
	}
}

// TypeError reports a known settings key whose value has the wrong type or
// an unrecognized enum value. The setting keeps its previous value.
type TypeError struct {
	Key    string
	Want   string
	Got    any
	Reason string
}

func (e *TypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("setting %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("setting %q: want %s, got %T", e.Key, e.Want, e.Got)
}

// ToMap renders the settings as the flat string-keyed map stored in project
// files.
func (s Settings) ToMap() map[string]any {
	return map[string]any{
		"log_level":                   s.LogLevel,
		"ai_processing_level":         s.AIProcessingLevel,
		"lut_selection":               s.LUTSelection,
		"export_format":               s.ExportFormat,
		"export_resolution":           s.ExportResolution,
		"auto_volume":                 s.AutoVolume,
		"noise_gate_eq":               s.NoiseGateEQ,
		"default_transition":          s.DefaultTransition,
		"default_transition_duration": s.DefaultTransitionDuration,
		"autosave_dir":                s.AutosaveDir,
	}
}

// ApplyMap copies recognized keys from m into s. Unknown keys are ignored.
// Known keys with a mismatched type or invalid value are skipped and
// reported; every other key is still applied.
func (s *Settings) ApplyMap(m map[string]any) []error {
	var errs []error
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		v := m[key]
		var err error
		switch key {
		case "log_level":
			err = setEnum(&s.LogLevel, key, v, LogLevels, strings.ToUpper)
		case "ai_processing_level":
			err = setEnum(&s.AIProcessingLevel, key, v, ProcessingLevels, nil)
		case "lut_selection":
			err = setEnum(&s.LUTSelection, key, v, LUTSelections, nil)
		case "export_format":
			err = setString(&s.ExportFormat, key, v)
		case "export_resolution":
			err = setResolution(&s.ExportResolution, key, v)
		case "auto_volume":
			err = setBool(&s.AutoVolume, key, v)
		case "noise_gate_eq":
			err = setBool(&s.NoiseGateEQ, key, v)
		case "default_transition":
			err = setString(&s.DefaultTransition, key, v)
		case "default_transition_duration":
			err = setDuration(&s.DefaultTransitionDuration, key, v)
		case "autosave_dir":
			err = setString(&s.AutosaveDir, key, v)
		default:
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Validate checks enum options and numeric ranges.
func (s Settings) Validate() error {
	var problems []string
	if !slices.Contains(LogLevels, s.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level %q", s.LogLevel))
	}
	if !slices.Contains(ProcessingLevels, s.AIProcessingLevel) {
		problems = append(problems, fmt.Sprintf("ai_processing_level %q", s.AIProcessingLevel))
	}
	if !slices.Contains(LUTSelections, s.LUTSelection) {
		problems = append(problems, fmt.Sprintf("lut_selection %q", s.LUTSelection))
	}
	if s.DefaultTransitionDuration <= 0 {
		problems = append(problems, "default_transition_duration must be positive")
	}
	if _, _, err := ParseResolution(s.ExportResolution); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid settings: %s", strings.Join(problems, "; "))
	}
	return nil
}

// LoadSettings reads a YAML settings file over the defaults. A missing file
// yields the defaults. Values go through ApplyMap so the YAML file obeys the
// same type rules as a project file; the returned slice lists rejected keys.
func LoadSettings(path string) (Settings, []error, error) {
	s := DefaultSettings()
	if path == "" {
		return s, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil, nil
		}
		return s, nil, fmt.Errorf("failed to read settings: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return s, nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}
	errs := s.ApplyMap(raw)
	return s, errs, nil
}

// Save writes the settings as YAML.
func (s Settings) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseResolution splits "WIDTHxHEIGHT".
func ParseResolution(res string) (int, int, error) {
	var w, h int
	if _, err := fmt.Sscanf(strings.ToLower(strings.TrimSpace(res)), "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("export_resolution %q: want WIDTHxHEIGHT", res)
	}
	return w, h, nil
}

func setString(dst *string, key string, v any) error {
	s, ok := v.(string)
	if !ok {
		return &TypeError{Key: key, Want: "string", Got: v}
	}
	*dst = s
	return nil
}

func setBool(dst *bool, key string, v any) error {
	b, ok := v.(bool)
	if !ok {
		return &TypeError{Key: key, Want: "bool", Got: v}
	}
	*dst = b
	return nil
}

func setDuration(dst *float64, key string, v any) error {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return &TypeError{Key: key, Want: "number", Got: v}
	}
	if f <= 0 {
		return &TypeError{Key: key, Got: v, Reason: "must be positive"}
	}
	*dst = f
	return nil
}

func setEnum(dst *string, key string, v any, allowed []string, normalize func(string) string) error {
	s, ok := v.(string)
	if !ok {
		return &TypeError{Key: key, Want: "string", Got: v}
	}
	if normalize != nil {
		s = normalize(s)
	}
	if !slices.Contains(allowed, s) {
		return &TypeError{Key: key, Got: v, Reason: fmt.Sprintf("%q is not one of %s", s, strings.Join(allowed, ", "))}
	}
	*dst = s
	return nil
}

func setResolution(dst *string, key string, v any) error {
	s, ok := v.(string)
	if !ok {
		return &TypeError{Key: key, Want: "string", Got: v}
	}
	if _, _, err := ParseResolution(s); err != nil {
		return &TypeError{Key: key, Got: v, Reason: err.Error()}
	}
	*dst = s
	return nil
}
