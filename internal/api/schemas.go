package api

import (
	"time"

	"github.com/droneedit/droneedit-agent/internal/journal"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	UptimeS   int64  `json:"uptime_s"`
	Connected bool   `json:"connected"`
}

type TaskResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type TasksResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

type RecentProjectResponse struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	SavedAt string `json:"saved_at"`
}

type RecentProjectsResponse struct {
	Projects []RecentProjectResponse `json:"projects"`
}

type ActionsResponse struct {
	Actions []ActionInfo `json:"actions"`
}

type ActionRequest struct {
	Args []string `json:"args,omitempty"`
}

type ActionResponse struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

type PromptAnswerRequest struct {
	Value string `json:"value"`
}

type SettingsResponse struct {
	Settings map[string]any `json:"settings"`
	Errors   []string       `json:"errors,omitempty"`
}

type ExportRequest struct {
	OutputDir string `json:"output_dir"`
}

type ExportResponse struct {
	Status     string `json:"status"`
	Format     string `json:"format"`
	OutputPath string `json:"output_path"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func TaskToResponse(t *journal.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Kind:      t.Kind,
		Status:    t.Status,
		Progress:  t.Progress,
		Error:     t.Error,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
		UpdatedAt: t.UpdatedAt.Format(time.RFC3339),
	}
}

func RecentProjectToResponse(p *journal.RecentProject) RecentProjectResponse {
	return RecentProjectResponse{
		Path:    p.Path,
		Name:    p.Name,
		SavedAt: p.SavedAt.Format(time.RFC3339),
	}
}
