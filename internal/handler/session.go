package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/examguard/platform/internal/auth"
	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/ingest"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SessionHandler handles session lifecycle and event ingestion endpoints.
type SessionHandler struct {
	gateway *ingest.Gateway
	jwtMgr  *auth.JWTManager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(gateway *ingest.Gateway, jwtMgr *auth.JWTManager) *SessionHandler {
	return &SessionHandler{gateway: gateway, jwtMgr: jwtMgr}
}

type startSessionRequest struct {
	ExamID    uuid.UUID  `json:"exam_id"`
	StudentID uuid.UUID  `json:"student_id"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

type startSessionResponse struct {
	Session *domain.Session `json:"session"`
	Token   string          `json:"token"`
}

// StartSession handles POST /sessions. It registers the attempt and mints a
// candidate token scoped to the new session.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}
	if req.ExamID == uuid.Nil || req.StudentID == uuid.Nil {
		RespondError(w, domain.ErrValidation("exam_id and student_id are required"))
		return
	}

	startedAt := time.Now()
	if req.StartedAt != nil {
		startedAt = *req.StartedAt
	}

	session, err := h.gateway.StartSession(r.Context(), req.ExamID, req.StudentID, startedAt)
	if err != nil {
		RespondError(w, err)
		return
	}

	token, err := h.jwtMgr.GenerateCandidateToken(session.StudentID, session.ID)
	if err != nil {
		RespondError(w, domain.ErrInternal("mint session token", err))
		return
	}

	RespondJSON(w, http.StatusCreated, startSessionResponse{Session: session, Token: token})
}

type ingestEventRequest struct {
	Type         domain.EventType `json:"event_type"`
	Severity     domain.Severity  `json:"severity"`
	Description  string           `json:"description"`
	Metadata     json.RawMessage  `json:"metadata,omitempty"`
	TimeIntoExam int              `json:"time_into_exam"`
	Timestamp    time.Time        `json:"timestamp"`
}

type ingestEventResponse struct {
	Terminated bool   `json:"terminated"`
	Reason     string `json:"reason,omitempty"`
}

// IngestEvent handles POST /sessions/{sessionID}/events. Scoring and the
// termination decision happen synchronously; the response tells the monitor
// whether the session survived this event.
func (h *SessionHandler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	var req ingestEventRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid request body"))
		return
	}

	decision, err := h.gateway.Ingest(r.Context(), sessionID, domain.ViolationEvent{
		Type:         req.Type,
		Severity:     req.Severity,
		Description:  req.Description,
		Metadata:     req.Metadata,
		TimeIntoExam: req.TimeIntoExam,
		Timestamp:    req.Timestamp,
	})
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, ingestEventResponse{
		Terminated: decision.Terminated,
		Reason:     decision.Reason,
	})
}

// EndSession handles POST /sessions/{sessionID}/end, the voluntary submit.
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid session id"))
		return
	}

	session, err := h.gateway.EndSession(r.Context(), sessionID)
	if err != nil {
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, session)
}
