// Package journal records what the agent did: long-running editing tasks,
// recently saved projects and small key/value settings such as the panel
// token. It is backed by the SQLite database from internal/db.
package journal

import (
	"time"

	"github.com/google/uuid"
)

const (
	TaskImport      = "import"
	TaskDetect      = "detect_scenes"
	TaskHighlights  = "highlights"
	TaskGrade       = "auto_grade"
	TaskLUT         = "apply_lut"
	TaskTransitions = "transitions"
	TaskEffect      = "apply_effect"
	TaskTrim        = "trim"
	TaskAudio       = "enhance_audio"
	TaskSave        = "save"
	TaskLoad        = "load"
	TaskExport      = "export_edl"
	TaskRender      = "render"

	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

type Task struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Done reports whether the task reached a final status.
func (t *Task) Done() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type RecentProject struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	SavedAt time.Time `json:"saved_at"`
}

// Config keys.
const (
	KeyPanelToken  = "panel_token"
	KeyLastProject = "last_project"
)

func NewID() string {
	return uuid.NewString()
}
