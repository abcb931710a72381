package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates the lifecycle states of an exam session.
type SessionStatus string

const (
	SessionActive     SessionStatus = "active"
	SessionWarning    SessionStatus = "warning"
	SessionSubmitted  SessionStatus = "submitted"
	SessionTerminated SessionStatus = "terminated"
)

// Closed reports whether the session no longer accepts events.
func (s SessionStatus) Closed() bool {
	return s == SessionSubmitted || s == SessionTerminated
}

// Session is one candidate's single attempt at one exam. It is the unit of
// isolation for event logs and risk profiles.
type Session struct {
	ID        uuid.UUID     `json:"id"`
	ExamID    uuid.UUID     `json:"exam_id"`
	StudentID uuid.UUID     `json:"student_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// SessionRiskProfile is the derived aggregate owned by the scoring engine.
// RiskScore is always a pure function of the session's ordered event log
// plus elapsed duration; it is recomputed from scratch on every event.
type SessionRiskProfile struct {
	SessionID      uuid.UUID     `json:"session_id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	StudentID      uuid.UUID     `json:"student_id"`
	RiskScore      int           `json:"risk_score"`
	ViolationCount int           `json:"violation_count"`
	TabSwitchCount int           `json:"tab_switch_count"`
	CriticalCount  int           `json:"critical_count"`
	LastEventAt    time.Time     `json:"last_event_at"`
	Status         SessionStatus `json:"status"`
}

// TimelineBucket is a read-only projection: event count for one fixed-width
// window of an exam. Regenerated per query, never persisted.
type TimelineBucket struct {
	ExamID      uuid.UUID `json:"exam_id"`
	BucketStart time.Time `json:"bucket_start"`
	BucketEnd   time.Time `json:"bucket_end"`
	Count       int       `json:"count"`
}

// AnomalyType classifies anomaly records produced by the aggregator.
type AnomalyType string

const (
	AnomalyExcessiveViolations AnomalyType = "excessive_violations"
	AnomalyFrequentTabSwitch   AnomalyType = "frequent_tab_switching"
	AnomalyHighRisk            AnomalyType = "high_risk_score"
	AnomalyViolationSpike      AnomalyType = "violation_spike"
)

// AnomalyRecord is an ephemeral flag recomputed per dashboard refresh.
type AnomalyRecord struct {
	Type        AnomalyType `json:"type"`
	SubjectID   uuid.UUID   `json:"subject_id"`
	Description string      `json:"description"`
	Confidence  int         `json:"confidence"`
}
