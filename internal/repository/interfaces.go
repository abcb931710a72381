package repository

import (
	"context"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// SessionRepository provides access to exam_sessions.
type SessionRepository interface {
	// Create inserts a new session row.
	Create(ctx context.Context, db DBTX, session *domain.Session) error

	// FindByID returns a session by ID, or nil if absent.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error)

	// ListByExam returns all sessions belonging to an exam.
	ListByExam(ctx context.Context, db DBTX, examID uuid.UUID) ([]domain.Session, error)

	// UpdateStatus transitions a session's lifecycle state. endedAt is set
	// for submitted/terminated transitions.
	UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.SessionStatus, endedAt *time.Time) error
}

// EventRepository provides access to the append-only violation_events log.
// Events are never updated or deleted.
type EventRepository interface {
	// Append inserts one event. Inserting a literal duplicate of
	// (session_id, event_type, timestamp) is a no-op.
	Append(ctx context.Context, db DBTX, event *domain.ViolationEvent) error

	// ListBySession returns a session's events in chronological order.
	ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) ([]domain.ViolationEvent, error)

	// ListByExam returns all events for an exam in chronological order.
	ListByExam(ctx context.Context, db DBTX, examID uuid.UUID) ([]domain.ViolationEvent, error)
}

// OutboxRepository provides access to event_outbox. The poller reads and
// marks rows directly; services only insert.
type OutboxRepository interface {
	// Insert writes an integration event for the poller to publish.
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error
}
