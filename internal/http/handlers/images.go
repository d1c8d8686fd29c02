package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagejobs/internal/jobs"
)

const maxRequestBody = 64 << 10

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type editRequest struct {
	ImageURL string `json:"image_url"`
	Prompt   string `json:"prompt"`
}

type listResponse struct {
	Items []jobs.JobView `json:"items"`
}

func (a *App) ImagesGenerate(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	var req generateRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Jobs.SubmitGenerate(r.Context(), ownerID, req.Prompt)
	if err != nil {
		a.writeError(w, r, err, res.ID)
		return
	}
	a.json(w, http.StatusCreated, res)
}

func (a *App) ImagesEdit(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	var req editRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Jobs.SubmitEdit(r.Context(), ownerID, req.ImageURL, req.Prompt)
	if err != nil {
		a.writeError(w, r, err, res.ID)
		return
	}
	a.json(w, http.StatusCreated, res)
}

func (a *App) ImagesList(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	views, err := a.Jobs.ListJobs(r.Context(), ownerID)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, listResponse{Items: views})
}

func (a *App) ImagesGet(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	jobID := chi.URLParam(r, "id")
	view, err := a.Jobs.GetJob(r.Context(), ownerID, jobID)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, view)
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			a.error(w, http.StatusRequestEntityTooLarge, "bad_request", "payload too large")
			return false
		}
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}
