package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewViolationRecordedEvent creates the standard integration event for an
// ingested violation.
func NewViolationRecordedEvent(e ViolationEvent) OutboxDraft {
	payload, _ := json.Marshal(e)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSession,
		AggregateID:   e.SessionID.String(),
		EventType:     OutboxViolationRecorded,
		PartitionKey:  e.SessionID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewSessionLifecycleEvent creates a session start/end event.
func NewSessionLifecycleEvent(s *Session, started bool) OutboxDraft {
	evtType := OutboxSessionStarted
	if !started {
		evtType = OutboxSessionEnded
	}
	payload, _ := json.Marshal(s)
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSession,
		AggregateID:   s.ID.String(),
		EventType:     evtType,
		PartitionKey:  s.ID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}

// NewSessionTerminatedEvent creates the forced-submit command delivered to
// the exam-taking surface through the notification transport.
func NewSessionTerminatedEvent(sessionID, examID uuid.UUID, riskScore, violationCount int, reason string) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"session_id":      sessionID.String(),
		"exam_id":         examID.String(),
		"risk_score":      riskScore,
		"violation_count": violationCount,
		"reason":          reason,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSession,
		AggregateID:   sessionID.String(),
		EventType:     OutboxSessionTerminated,
		PartitionKey:  sessionID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    time.Now(),
	}
}
