package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

const maxStderrBytes = 8 * 1024 // tail of stderr kept for diagnostics

// RunResult is the outcome of one tool invocation.
type RunResult struct {
	ExitCode   int
	OutputPath string
	StderrTail string
	Duration   time.Duration
}

// IsSuccess returns true when the tool exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }

// ToolRunner runs the external analysis executable:
//
//	<exe> <op> --in <request.json> --out <response.json>
type ToolRunner struct {
	exe     string
	workDir string
	timeout time.Duration
	logger  *slog.Logger
}

// NewToolRunner resolves exe on PATH.
func NewToolRunner(exe, workDir string, timeout time.Duration, logger *slog.Logger) (*ToolRunner, error) {
	path, err := exec.LookPath(exe)
	if err != nil {
		return nil, fmt.Errorf("analysis tool %q not found: %w", exe, err)
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create analysis work dir: %w", err)
	}
	return &ToolRunner{exe: path, workDir: workDir, timeout: timeout, logger: logging.OrDiscard(logger)}, nil
}

// Run writes req, runs op and decodes the tool's output file into resp.
func (r *ToolRunner) Run(ctx context.Context, op string, req, resp any) (RunResult, error) {
	id := uuid.NewString()
	inPath := filepath.Join(r.workDir, op+"-"+id+".in.json")
	outPath := filepath.Join(r.workDir, op+"-"+id+".out.json")
	defer os.Remove(inPath)
	defer os.Remove(outPath)

	data, err := json.Marshal(req)
	if err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("marshal %s request: %w", op, err)
	}
	if err := os.WriteFile(inPath, data, 0644); err != nil {
		return RunResult{ExitCode: -1}, fmt.Errorf("write %s request: %w", op, err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	result := r.exec(ctx, outPath, op, "--in", inPath, "--out", outPath)
	if !result.IsSuccess() {
		return result, fmt.Errorf("%s exited %d: %s", op, result.ExitCode, truncate(result.StderrTail, 512))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return result, fmt.Errorf("cannot read %s output: %w", op, err)
	}
	if err := json.Unmarshal(out, resp); err != nil {
		return result, fmt.Errorf("cannot parse %s output: %w", op, err)
	}
	return result, nil
}

func (r *ToolRunner) exec(ctx context.Context, outPath string, args ...string) RunResult {
	start := time.Now()
	cmd := exec.CommandContext(ctx, r.exe, args...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdout = io.Discard

	r.logger.Info("executing analysis tool", "args", args)

	err := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			stderrBuf.WriteString(err.Error())
		}
	}

	stderrTail := stderrBuf.String()
	if exitCode != 0 {
		r.logger.Warn("analysis tool failed",
			"exit_code", exitCode,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderrTail, 512),
		)
	} else {
		r.logger.Info("analysis tool succeeded",
			"duration_ms", elapsed.Milliseconds(),
			"output", logging.SanitizePath(outPath),
		)
	}

	return RunResult{
		ExitCode:   exitCode,
		OutputPath: outPath,
		StderrTail: stderrTail,
		Duration:   elapsed,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}
