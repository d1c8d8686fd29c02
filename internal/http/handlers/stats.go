package handlers

import (
	"net/http"
)

func (a *App) StatsSummary(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing owner context")
		return
	}
	s, err := a.Jobs.Stats(r.Context(), ownerID)
	if err != nil {
		a.writeError(w, r, err, "")
		return
	}
	a.json(w, http.StatusOK, map[string]int64{
		"total":     s.Total,
		"pending":   s.Pending,
		"completed": s.Completed,
		"failed":    s.Failed,
	})
}
