package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/examguard/platform/internal/aggregate"
	"github.com/examguard/platform/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ExportHandler streams an exam's full violation log for offline review.
type ExportHandler struct {
	source aggregate.Source
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(source aggregate.Source) *ExportHandler {
	return &ExportHandler{source: source}
}

type exportResponse struct {
	ExamID      uuid.UUID               `json:"exam_id"`
	GeneratedAt time.Time               `json:"generated_at"`
	Events      []domain.ViolationEvent `json:"events"`
}

// ExportExam handles GET /exams/{examID}/export?format=csv|json.
// JSON is the default.
func (h *ExportHandler) ExportExam(w http.ResponseWriter, r *http.Request) {
	examID, err := uuid.Parse(chi.URLParam(r, "examID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid exam id"))
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		RespondError(w, domain.ErrValidation("format must be json or csv"))
		return
	}

	_, _, events, err := h.source.ExamSnapshot(r.Context(), examID)
	if err != nil {
		RespondError(w, err)
		return
	}

	if format == "json" {
		RespondJSON(w, http.StatusOK, exportResponse{
			ExamID:      examID,
			GeneratedAt: time.Now().UTC(),
			Events:      events,
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%s-violations.csv"`, examID))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"event_id", "session_id", "event_type", "severity", "description", "time_into_exam_s", "timestamp"})
	for _, e := range events {
		_ = cw.Write([]string{
			e.ID.String(),
			e.SessionID.String(),
			string(e.Type),
			string(e.Severity),
			e.Description,
			strconv.Itoa(e.TimeIntoExam),
			e.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	cw.Flush()
}
