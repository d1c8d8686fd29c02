package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"imagejobs/internal/domain"
	"imagejobs/internal/infra"
	"imagejobs/internal/jobs"
	"imagejobs/internal/middleware"
)

// JobService is the orchestrator surface the handlers call.
type JobService interface {
	SubmitGenerate(ctx context.Context, ownerID, prompt string) (jobs.Result, error)
	SubmitEdit(ctx context.Context, ownerID, sourceRef, prompt string) (jobs.Result, error)
	ListJobs(ctx context.Context, ownerID string) ([]jobs.JobView, error)
	GetJob(ctx context.Context, ownerID, jobID string) (jobs.JobView, error)
	Stats(ctx context.Context, ownerID string) (domain.JobStats, error)
}

type App struct {
	Jobs   JobService
	Logger infra.Logger
	// Ready reports dependency health for /v1/healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewApp(svc JobService, logger infra.Logger) *App {
	return &App{Jobs: svc, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	JobID   string `json:"job_id,omitempty"`
}

func (a *App) error(w http.ResponseWriter, code int, errCode, msg string) {
	a.json(w, code, errorBody{Error: errCode, Message: msg})
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}
