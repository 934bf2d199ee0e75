package journal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

// Tracker journals long-running operations and keeps their cancel
// functions so a front-end can stop them.
type Tracker struct {
	repo   Repository
	logger *slog.Logger

	mu        sync.Mutex
	cancels   map[string]context.CancelFunc
	listeners []func(Task)
}

func NewTracker(repo Repository, logger *slog.Logger) *Tracker {
	return &Tracker{
		repo:    repo,
		logger:  logging.WithComponent(logging.OrDiscard(logger), "journal"),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Subscribe registers fn to receive every task change. fn must not block.
func (t *Tracker) Subscribe(fn func(Task)) {
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Run is one journaled task.
type Run struct {
	tracker *Tracker
	task    Task
	last    int
}

// Start records a running task of kind and derives a cancellable context
// for it. Journal write failures are logged and do not stop the work.
func (t *Tracker) Start(ctx context.Context, kind string) (context.Context, *Run) {
	ctx, cancel := context.WithCancel(ctx)
	now := time.Now()
	run := &Run{
		tracker: t,
		task: Task{
			ID:        NewID(),
			Kind:      kind,
			Status:    StatusRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
		last: -1,
	}
	if err := t.repo.CreateTask(context.WithoutCancel(ctx), &run.task); err != nil {
		t.logger.Warn("failed to journal task", "kind", kind, "error", err)
	}

	t.mu.Lock()
	t.cancels[run.task.ID] = cancel
	t.mu.Unlock()

	logging.WithTaskID(t.logger, run.task.ID).Info("task started", "kind", kind)
	t.notify(run.task)
	return ctx, run
}

// Cancel stops the running task id. It reports false for unknown or
// finished tasks.
func (t *Tracker) Cancel(id string) bool {
	t.mu.Lock()
	cancel, ok := t.cancels[id]
	t.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Active returns the ids of unfinished tasks.
func (t *Tracker) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.cancels))
	for id := range t.cancels {
		ids = append(ids, id)
	}
	return ids
}

func (t *Tracker) notify(task Task) {
	t.mu.Lock()
	ls := append([]func(Task){}, t.listeners...)
	t.mu.Unlock()
	for _, fn := range ls {
		fn(task)
	}
}

func (r *Run) ID() string { return r.task.ID }

// Progress records percent when it changed since the last call.
func (r *Run) Progress(percent int) {
	percent = max(0, min(100, percent))
	if percent == r.last {
		return
	}
	r.last = percent
	r.task.Progress = percent
	r.task.UpdatedAt = time.Now()
	if err := r.tracker.repo.UpdateTaskProgress(context.Background(), r.task.ID, percent); err != nil {
		r.tracker.logger.Debug("failed to journal progress", "task_id", r.task.ID, "error", err)
	}
	r.tracker.notify(r.task)
}

// Finish closes the task: completed when err is nil, cancelled when err
// wraps a context cancellation, failed otherwise. It returns err unchanged.
func (r *Run) Finish(err error) error {
	t := r.tracker
	t.mu.Lock()
	cancel := t.cancels[r.task.ID]
	delete(t.cancels, r.task.ID)
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	logger := logging.WithTaskID(t.logger, r.task.ID)
	switch {
	case err == nil:
		r.task.Status = StatusCompleted
		r.task.Progress = 100
		logger.Info("task completed", "kind", r.task.Kind)
	case errors.Is(err, context.Canceled):
		r.task.Status = StatusCancelled
		r.task.Error = err.Error()
		logger.Info("task cancelled", "kind", r.task.Kind)
	default:
		r.task.Status = StatusFailed
		r.task.Error = err.Error()
		logger.Error("task failed", "kind", r.task.Kind, "error", err)
	}
	r.task.UpdatedAt = time.Now()

	ctx := context.Background()
	if r.task.Status == StatusCompleted {
		if perr := t.repo.UpdateTaskProgress(ctx, r.task.ID, 100); perr != nil {
			logger.Debug("failed to journal progress", "error", perr)
		}
	}
	if serr := t.repo.UpdateTaskStatus(ctx, r.task.ID, r.task.Status, r.task.Error); serr != nil {
		logger.Warn("failed to journal task status", "error", serr)
	}
	t.notify(r.task)
	return err
}
