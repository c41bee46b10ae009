package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/camden-git/sitephotosync/location"
	"github.com/camden-git/sitephotosync/repository"
	"github.com/camden-git/sitephotosync/traversal"
)

// StatusHandler serves read-only views of uploads, runs and the saved
// resume point.
type StatusHandler struct {
	Uploads     repository.UploadRepositoryInterface
	Runs        repository.RunRepositoryInterface
	Checkpoints traversal.CheckpointStore
	Log         *zap.Logger
}

func (h *StatusHandler) logger() *zap.Logger {
	if h.Log == nil {
		return zap.NewNop()
	}
	return h.Log
}

func (h *StatusHandler) ListUploads(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if _, err := location.ParseCode(code); err != nil {
		WriteAPIError(w, http.StatusBadRequest, codeInvalidLocationCode, err.Error())
		return
	}
	uploads, err := h.Uploads.ListByCode(code)
	if err != nil {
		h.logger().Error("failed to list uploads", zap.String("code", code), zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, codeInternal, "Failed to list uploads")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"code":    code,
		"count":   len(uploads),
		"uploads": uploads,
	})
}

func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := h.Runs.GetRun(runID)
	if err != nil {
		h.writeRunError(w, err, "Run not found: "+runID)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *StatusHandler) LatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.Runs.LatestRun()
	if err != nil {
		h.writeRunError(w, err, "No run recorded yet")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *StatusHandler) writeRunError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		WriteAPIError(w, http.StatusNotFound, codeRunNotFound, notFound)
		return
	}
	h.logger().Error("failed to load run", zap.Error(err))
	WriteAPIError(w, http.StatusInternalServerError, codeInternal, "Failed to load run")
}

type checkpointResponse struct {
	Saved    bool       `json:"saved"`
	RunID    string     `json:"run_id,omitempty"`
	LastCode string     `json:"last_code,omitempty"`
	Resume   string     `json:"resume"`
	SavedAt  *time.Time `json:"saved_at,omitempty"`
}

func (h *StatusHandler) GetCheckpoint(w http.ResponseWriter, r *http.Request) {
	saved, ok, err := h.Checkpoints.LoadCheckpoint(r.Context())
	if err != nil {
		h.logger().Error("failed to load checkpoint", zap.Error(err))
		WriteAPIError(w, http.StatusInternalServerError, codeInternal, "Failed to load checkpoint")
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, checkpointResponse{Resume: traversal.Checkpoint{}.String()})
		return
	}
	savedAt := saved.SavedAt
	writeJSON(w, http.StatusOK, checkpointResponse{
		Saved:    true,
		RunID:    saved.RunID,
		LastCode: saved.LastCode.String(),
		Resume:   saved.Checkpoint().String(),
		SavedAt:  &savedAt,
	})
}
