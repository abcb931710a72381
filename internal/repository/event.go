package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type eventRepo struct{}

// NewEventRepository returns a pgx-backed EventRepository.
func NewEventRepository() EventRepository {
	return &eventRepo{}
}

// Append inserts one event into the append-only log. The unique index on
// (session_id, event_type, timestamp) turns a duplicate delivery into a
// no-op insert instead of a second row.
func (r *eventRepo) Append(ctx context.Context, db DBTX, event *domain.ViolationEvent) error {
	meta := event.Metadata
	if meta == nil {
		meta = json.RawMessage(`{}`)
	}

	_, err := db.Exec(ctx, `
		INSERT INTO violation_events
		  (id, session_id, exam_id, event_type, severity, description, metadata, time_into_exam, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id, event_type, timestamp) DO NOTHING`,
		event.ID, event.SessionID, event.ExamID,
		string(event.Type), string(event.Severity), event.Description,
		meta, event.TimeIntoExam, event.Timestamp)
	if err != nil {
		return fmt.Errorf("append violation event: %w", err)
	}
	return nil
}

func (r *eventRepo) ListBySession(ctx context.Context, db DBTX, sessionID uuid.UUID) ([]domain.ViolationEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT id, session_id, exam_id, event_type, severity, description, metadata, time_into_exam, timestamp
		FROM violation_events
		WHERE session_id = $1
		ORDER BY timestamp ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func (r *eventRepo) ListByExam(ctx context.Context, db DBTX, examID uuid.UUID) ([]domain.ViolationEvent, error) {
	rows, err := db.Query(ctx, `
		SELECT id, session_id, exam_id, event_type, severity, description, metadata, time_into_exam, timestamp
		FROM violation_events
		WHERE exam_id = $1
		ORDER BY timestamp ASC, id ASC`, examID)
	if err != nil {
		return nil, fmt.Errorf("query exam events: %w", err)
	}
	defer rows.Close()

	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]domain.ViolationEvent, error) {
	var events []domain.ViolationEvent
	for rows.Next() {
		var e domain.ViolationEvent
		err := rows.Scan(&e.ID, &e.SessionID, &e.ExamID, &e.Type, &e.Severity,
			&e.Description, &e.Metadata, &e.TimeIntoExam, &e.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
