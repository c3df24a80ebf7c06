package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"worknest/internal/jobs"
	"worknest/internal/logger"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type JobHandler struct {
	Engine *jobs.Engine
	Logger *slog.Logger
}

type jobDTO struct {
	ID         uuid.UUID   `json:"id"`
	Type       jobs.Type   `json:"type"`
	Status     jobs.Status `json:"status"`
	Payload    string      `json:"payload"`
	RetryCount int         `json:"retry_count"`
	Error      *string     `json:"error"`
	CreatedAt  time.Time   `json:"created_at"`
	ExecutedAt *time.Time  `json:"executed_at"`
}

func toDTO(j *jobs.Job) jobDTO {
	return jobDTO{
		ID:         j.ID,
		Type:       j.Type,
		Status:     j.Status,
		Payload:    j.Payload,
		RetryCount: j.RetryCount,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		ExecutedAt: j.ExecutedAt,
	}
}

type scheduleReq struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"` // JSON string is stored unquoted, any other value verbatim
}

func (h *JobHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	t := jobs.Type(strings.TrimSpace(strings.ToUpper(req.Type)))
	if !t.Valid() {
		http.Error(w, "invalid job type", http.StatusBadRequest)
		return
	}

	payload := string(req.Payload)
	var s string
	if err := json.Unmarshal(req.Payload, &s); err == nil {
		payload = s
	}

	j, err := h.Engine.ScheduleJob(r.Context(), t, payload)
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDTO(j))
}

func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []jobs.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := jobs.Status(strings.TrimSpace(strings.ToUpper(part)))
			if !s.Valid() {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			statuses = append(statuses, s)
		}
	}

	rows, err := h.Engine.ListJobs(r.Context(), statuses...)
	if err != nil {
		h.serverError(w, r, err)
		return
	}

	out := make([]jobDTO, 0, len(rows))
	for i := range rows {
		out = append(out, toDTO(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	j, err := h.Engine.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(j))
}

// Execute runs the job synchronously and returns its resulting state.
func (h *JobHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.Engine.ExecuteJob(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	j, err := h.Engine.GetJob(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(j))
}

func (h *JobHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	j, err := h.Engine.RetryJob(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDTO(j))
}

func (h *JobHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.RetryFailedJobs(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *JobHandler) Cleanup(w http.ResponseWriter, r *http.Request) {
	n, err := h.Engine.CleanupOldJobs(r.Context())
	if err != nil {
		h.serverError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": n})
}

func (h *JobHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, jobs.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, jobs.ErrConflict):
		http.Error(w, "job changed concurrently", http.StatusConflict)
	default:
		h.serverError(w, r, err)
	}
}

func (h *JobHandler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	l := h.Logger
	if l == nil {
		l = slog.Default()
	}
	l.ErrorContext(r.Context(), "job handler error",
		slog.String("path", r.URL.Path),
		logger.Error(err))
	http.Error(w, "server error", http.StatusInternalServerError)
}

func parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
