package api

import (
	"embed"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

//go:embed static/index.html
var staticFS embed.FS

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoopbackGuard())
	r.Use(CORSAllowlist())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/", indexHandler())
	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Journal, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))
		r.Get("/tasks", listTasksHandler(cfg))
		r.Post("/tasks/{id}/cancel", cancelTaskHandler(cfg))
		r.Get("/projects/recent", recentProjectsHandler(cfg))
		r.Get("/actions", listActionsHandler(cfg))
		r.Post("/actions/{name}", startActionHandler(cfg))
		r.Post("/prompts/{id}", answerPromptHandler(cfg))
		r.Post("/export/edl", exportEDLHandler(cfg))
		if cfg.Hub != nil {
			r.Get("/events", cfg.Hub.ServeWS)
		}
	})

	return r
}

func indexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := staticFS.ReadFile("static/index.html")
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "panel page missing", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		}
		if cfg.Workspace != nil {
			resp.Connected = cfg.Workspace.Status().Connected
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Workspace.Status())
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, SettingsResponse{Settings: cfg.Workspace.Settings().ToMap()})
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var m map[string]any
		if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		resp := SettingsResponse{}
		for _, err := range cfg.Workspace.UpdateSettings(m) {
			resp.Errors = append(resp.Errors, err.Error())
		}
		resp.Settings = cfg.Workspace.Settings().ToMap()
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listTasksHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}
		tasks, err := cfg.Workspace.Tasks(r.Context(), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list tasks", "INTERNAL_ERROR")
			return
		}

		resp := TasksResponse{Tasks: make([]TaskResponse, len(tasks))}
		for i, t := range tasks {
			resp.Tasks[i] = TaskToResponse(t)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func cancelTaskHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !cfg.Workspace.Cancel(id) {
			WriteError(w, http.StatusNotFound, "task is not running", "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

func recentProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Workspace.RecentProjects(r.Context(), 10)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}
		resp := RecentProjectsResponse{Projects: make([]RecentProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = RecentProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func listActionsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ActionsResponse{Actions: []ActionInfo{}}
		if cfg.Actions != nil {
			resp.Actions = cfg.Actions.Actions()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func startActionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		var req ActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cfg.Actions == nil {
			WriteError(w, http.StatusServiceUnavailable, "actions unavailable", "UNAVAILABLE")
			return
		}
		if err := cfg.Actions.Start(name, req.Args); err != nil {
			if errors.Is(err, ErrUnknownAction) {
				WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
				return
			}
			WriteError(w, http.StatusConflict, err.Error(), "CONFLICT")
			return
		}
		WriteJSON(w, http.StatusAccepted, ActionResponse{Action: name, Status: "started"})
	}
}

func answerPromptHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PromptAnswerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if cfg.Hub == nil || !cfg.Hub.Answer(chi.URLParam(r, "id"), req.Value) {
			WriteError(w, http.StatusNotFound, "prompt not found", "NOT_FOUND")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
