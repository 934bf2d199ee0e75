package db

import (
	"path/filepath"
	"testing"
)

func openTemp(t *testing.T) (*DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	d, err := New(path, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return d, path
}

func TestNew_CreatesTables(t *testing.T) {
	database, _ := openTemp(t)
	defer database.Close()

	for _, table := range []string{"_migrations", "tasks", "recent_projects", "config"} {
		var name string
		err := database.Conn().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s not found: %v", table, err)
		}
	}
}

func TestNew_WALEnabled(t *testing.T) {
	database, _ := openTemp(t)
	defer database.Close()

	var journalMode string
	if err := database.Conn().QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode error = %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}
}

func TestNew_MigrationsIdempotent(t *testing.T) {
	db1, path := openTemp(t)
	db1.Close()

	db2, err := New(path, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var count int
	if err := db2.Conn().QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations error = %v", err)
	}
	if count != 2 {
		t.Errorf("migration count = %d, want 2", count)
	}
}

func TestNew_MarksInterruptedTasks(t *testing.T) {
	db1, path := openTemp(t)
	_, err := db1.Conn().Exec(`
		INSERT INTO tasks (id, kind, status, progress, created_at, updated_at)
		VALUES ('t1', 'detect', 'running', 50, datetime('now'), datetime('now')),
		       ('t2', 'save', 'completed', 100, datetime('now'), datetime('now'))
	`)
	if err != nil {
		t.Fatalf("insert task error = %v", err)
	}
	db1.Close()

	db2, err := New(path, nil)
	if err != nil {
		t.Fatalf("second New() error = %v", err)
	}
	defer db2.Close()

	var status, errMsg string
	if err := db2.Conn().QueryRow("SELECT status, error FROM tasks WHERE id = 't1'").Scan(&status, &errMsg); err != nil {
		t.Fatalf("query task error = %v", err)
	}
	if status != "failed" || errMsg != "interrupted by restart" {
		t.Errorf("t1 = %s/%s, want failed/interrupted by restart", status, errMsg)
	}

	if err := db2.Conn().QueryRow("SELECT status FROM tasks WHERE id = 't2'").Scan(&status); err != nil {
		t.Fatal(err)
	}
	if status != "completed" {
		t.Errorf("t2 status = %s, want completed", status)
	}
}
