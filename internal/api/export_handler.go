package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/droneedit/droneedit-agent/internal/app"
	"github.com/droneedit/droneedit-agent/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		path, err := cfg.Workspace.ExportEDL(r.Context(), req.OutputDir)
		switch {
		case errors.Is(err, app.ErrBusy):
			WriteError(w, http.StatusConflict, err.Error(), "BUSY")
			return
		case errors.Is(err, app.ErrNothingToDo):
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "NO_SEGMENTS")
			return
		case err != nil:
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExportResponse{
			Status:     "ok",
			Format:     "edl",
			OutputPath: path,
		})
	}
}
