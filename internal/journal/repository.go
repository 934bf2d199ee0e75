package journal

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type Repository interface {
	CreateTask(ctx context.Context, task *Task) error
	GetTask(ctx context.Context, id string) (*Task, error)
	ListTasks(ctx context.Context, limit int) ([]*Task, error)
	UpdateTaskStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateTaskProgress(ctx context.Context, id string, progress int) error

	TouchRecentProject(ctx context.Context, p *RecentProject) error
	ListRecentProjects(ctx context.Context, limit int) ([]*RecentProject, error)

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

// timeLayout has a fixed width so stored stamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) stamp() string {
	return r.now().UTC().Format(timeLayout)
}

func (r *SQLiteRepository) CreateTask(ctx context.Context, t *Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, status, progress, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Kind, t.Status, t.Progress, nullString(t.Error),
		t.CreatedAt.UTC().Format(timeLayout), t.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) GetTask(ctx context.Context, id string) (*Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, kind, status, progress, error, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

func (r *SQLiteRepository) ListTasks(ctx context.Context, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, status, progress, error, created_at, updated_at
		FROM tasks ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var errMsg sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&t.ID, &t.Kind, &t.Status, &t.Progress, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Error = errMsg.String
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

func (r *SQLiteRepository) UpdateTaskStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), r.stamp(), id)
	return err
}

func (r *SQLiteRepository) UpdateTaskProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET progress = ?, updated_at = ? WHERE id = ?
	`, progress, r.stamp(), id)
	return err
}

func (r *SQLiteRepository) TouchRecentProject(ctx context.Context, p *RecentProject) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = r.now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recent_projects (path, name, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET name = excluded.name, saved_at = excluded.saved_at
	`, p.Path, p.Name, p.SavedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) ListRecentProjects(ctx context.Context, limit int) ([]*RecentProject, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT path, name, saved_at FROM recent_projects ORDER BY saved_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*RecentProject
	for rows.Next() {
		var p RecentProject
		var savedAt string
		if err := rows.Scan(&p.Path, &p.Name, &savedAt); err != nil {
			return nil, err
		}
		p.SavedAt = parseTime(savedAt)
		out = append(out, &p)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// parseTime accepts our RFC 3339 stamps and SQLite's datetime('now') form.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, _ := time.Parse("2006-01-02 15:04:05", s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
