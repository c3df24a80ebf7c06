package handler

import (
	"net/http"

	"worknest/internal/auth"
	"worknest/internal/jobs"
)

// MeHandler reports the authenticated operator and the job types this
// process can execute.
type MeHandler struct {
	JobTypes []jobs.Type
}

func (h *MeHandler) Me(w http.ResponseWriter, r *http.Request) {
	op, _ := auth.OperatorFromContext(r.Context())
	types := h.JobTypes
	if types == nil {
		types = []jobs.Type{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"operator":  op,
		"job_types": types,
	})
}
