package ui

import (
	"context"
	"io"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/droneedit/droneedit-agent/internal/analysis"
	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/config"
	"github.com/droneedit/droneedit-agent/internal/db"
	"github.com/droneedit/droneedit-agent/internal/grading"
	"github.com/droneedit/droneedit-agent/internal/host/hosttest"
	"github.com/droneedit/droneedit-agent/internal/journal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	ws   *app.Workspace
	repo journal.Repository
	fake *hosttest.Host
}

func newTestEnv(t *testing.T, withHost bool) testEnv {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "journal.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	repo := journal.NewRepository(database.Conn())

	opts := app.Options{
		Analyzer: analysis.NewSimulated(analysis.Options{
			Level: "Low",
			Rand:  rand.New(rand.NewPCG(1, 2)),
			Sleep: func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		}),
		Journal:     repo,
		LUTs:        grading.NewLibrary(t.TempDir(), nil),
		Settings:    config.DefaultSettings(),
		AutosaveDir: t.TempDir(),
		Logger:      testLogger(),
	}
	env := testEnv{repo: repo}
	if withHost {
		env.fake = hosttest.New()
		session, err := env.fake.Connect(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		opts.Session = session
	}
	env.ws = app.New(opts)
	return env
}

// recorder is a Reporter that answers prompts from a queue.
type recorder struct {
	mu       sync.Mutex
	alerts   []string
	progress []int
	answers  []string
	prompts  []PathKind
}

func (r *recorder) Alert(_ context.Context, title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, title+": "+message)
}

func (r *recorder) Progress(_ context.Context, _ string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, percent)
}

func (r *recorder) PromptPath(_ context.Context, _ string, kind PathKind) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, kind)
	if len(r.answers) == 0 {
		return "", ErrCancelled
	}
	a := r.answers[0]
	r.answers = r.answers[1:]
	return a, nil
}
