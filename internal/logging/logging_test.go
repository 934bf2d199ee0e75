package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestLogger(level slog.Level) (*slog.Logger, *bytes.Buffer, *bytes.Buffer, *bytes.Buffer) {
	var file, stdout, stderr bytes.Buffer
	h := NewLineHandler(Sinks{File: &file, Stdout: &stdout, Stderr: &stderr}, level)
	return slog.New(h), &file, &stdout, &stderr
}

func TestLineHandler_Format(t *testing.T) {
	logger, file, _, _ := newTestLogger(slog.LevelDebug)
	logger.Info("timeline created", "name", "Drone Cut", "clips", 3)

	line := strings.TrimSpace(file.String())
	parts := strings.SplitN(line, " - ", 4)
	if len(parts) != 4 {
		t.Fatalf("line %q does not have 4 ' - ' separated fields", line)
	}
	if parts[1] != "INFO" {
		t.Errorf("level = %q, want INFO", parts[1])
	}
	if !strings.Contains(parts[2], "TestLineHandler_Format") {
		t.Errorf("caller = %q, want test function name", parts[2])
	}
	if parts[3] != `timeline created name="Drone Cut" clips=3` {
		t.Errorf("message = %q", parts[3])
	}
}

func TestLineHandler_ConsoleRouting(t *testing.T) {
	logger, _, stdout, stderr := newTestLogger(slog.LevelDebug)

	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")
	Critical(logger, "critical line")

	if !strings.Contains(stdout.String(), "info line") {
		t.Errorf("stdout missing info line: %q", stdout.String())
	}
	if strings.Contains(stdout.String(), "warn line") {
		t.Errorf("stdout should not contain warnings: %q", stdout.String())
	}
	for _, want := range []string{"WARNING - ", "warn line", "ERROR - ", "CRITICAL - ", "critical line"} {
		if !strings.Contains(stderr.String(), want) {
			t.Errorf("stderr missing %q: %q", want, stderr.String())
		}
	}
}

func TestLineHandler_DedupesConsecutive(t *testing.T) {
	logger, file, _, _ := newTestLogger(slog.LevelDebug)

	logger.Warn("host call failed", "method", "AddTransition")
	logger.Warn("host call failed", "method", "AddTransition")
	logger.Warn("host call failed", "method", "AddTransition")
	logger.Info("something else")
	logger.Warn("host call failed", "method", "AddTransition")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), file.String())
	}
}

func TestLineHandler_DedupeSharedAcrossWith(t *testing.T) {
	logger, file, _, _ := newTestLogger(slog.LevelDebug)
	child := logger.With("component", "editor")

	child.Info("ready")
	child.Info("ready")
	logger.Info("ready")

	lines := strings.Split(strings.TrimSpace(file.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), file.String())
	}
	if !strings.Contains(lines[0], "component=editor") {
		t.Errorf("first line missing component attr: %q", lines[0])
	}
}

func TestLineHandler_GroupsQualifyLaterAttrs(t *testing.T) {
	logger, file, _, _ := newTestLogger(slog.LevelDebug)
	logger.With("component", "panel").WithGroup("req").With("id", 7).Info("served", "status", 200)

	line := strings.TrimSpace(file.String())
	if !strings.HasSuffix(line, "served component=panel req.id=7 req.status=200") {
		t.Errorf("line = %q", line)
	}
}

func TestLineHandler_LevelFilter(t *testing.T) {
	logger, file, _, _ := newTestLogger(slog.LevelWarn)
	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")

	if strings.Contains(file.String(), "info") || !strings.Contains(file.String(), "warn") {
		t.Fatalf("unexpected output for WARN level: %q", file.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"CRITICAL", LevelCritical},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_AppendsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "droneedit.log")

	for i := 0; i < 2; i++ {
		logger, closer, err := New(Options{Level: "INFO", File: path})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		logger.Info("run", "n", i)
		closer.Close()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("log file has %d lines, want 2:\n%s", got, data)
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("short"); got != "****" {
		t.Errorf("SanitizeToken(short) = %q", got)
	}
	if got := SanitizeToken("abcdefghijkl"); got != "abcd...ijkl" {
		t.Errorf("SanitizeToken = %q", got)
	}
}
