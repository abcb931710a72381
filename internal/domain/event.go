package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OutboxEventType enumerates all integration event types published through
// the outbox.
type OutboxEventType string

const (
	OutboxSessionStarted    OutboxEventType = "proctor.session.started"
	OutboxSessionEnded      OutboxEventType = "proctor.session.ended"
	OutboxSessionTerminated OutboxEventType = "proctor.session.terminated"
	OutboxViolationRecorded OutboxEventType = "proctor.violation.recorded"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateSession AggregateType = "session"
	AggregateExam    AggregateType = "exam"
)

// OutboxDraft is the payload written to the event_outbox table. The poller
// publishes drafts to Kafka in insertion order per partition key.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     OutboxEventType `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
