package handler

import (
	"net/http"

	"github.com/examguard/platform/internal/aggregate"
	"github.com/examguard/platform/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DashboardHandler serves the proctor-facing read endpoints.
type DashboardHandler struct {
	aggregator *aggregate.Service
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(aggregator *aggregate.Service) *DashboardHandler {
	return &DashboardHandler{aggregator: aggregator}
}

// GetExamDashboard handles GET /exams/{examID}/dashboard.
func (h *DashboardHandler) GetExamDashboard(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "examID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid exam id"))
		return
	}

	dash, err := h.aggregator.Dashboard(r.Context(), examID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, dash)
}

// GetStudentSummary handles GET /sessions/{sessionID}/summary.
func (h *DashboardHandler) GetStudentSummary(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	summary, err := h.aggregator.StudentSummary(r.Context(), sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, summary)
}
