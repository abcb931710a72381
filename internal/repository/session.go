package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type sessionRepo struct{}

// NewSessionRepository returns a pgx-backed SessionRepository.
func NewSessionRepository() SessionRepository {
	return &sessionRepo{}
}

func (r *sessionRepo) Create(ctx context.Context, db DBTX, session *domain.Session) error {
	_, err := db.Exec(ctx, `
		INSERT INTO exam_sessions (id, exam_id, student_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.ExamID, session.StudentID, string(session.Status), session.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *sessionRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Session, error) {
	row := db.QueryRow(ctx, `
		SELECT id, exam_id, student_id, status, started_at, ended_at
		FROM exam_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (r *sessionRepo) ListByExam(ctx context.Context, db DBTX, examID uuid.UUID) ([]domain.Session, error) {
	rows, err := db.Query(ctx, `
		SELECT id, exam_id, student_id, status, started_at, ended_at
		FROM exam_sessions
		WHERE exam_id = $1
		ORDER BY started_at ASC`, examID)
	if err != nil {
		return nil, fmt.Errorf("query exam sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *sessionRepo) UpdateStatus(ctx context.Context, db DBTX, id uuid.UUID, status domain.SessionStatus, endedAt *time.Time) error {
	_, err := db.Exec(ctx, `
		UPDATE exam_sessions SET status = $2, ended_at = COALESCE($3, ended_at)
		WHERE id = $1`,
		id, string(status), endedAt)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	return &s, nil
}
