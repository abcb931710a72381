package aggregate

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
)

// BucketWidth is the fixed timeline bucket size.
const BucketWidth = 10 * time.Minute

// MaxTimelineBuckets caps the timeline at the most recent two hours.
const MaxTimelineBuckets = 12

// MaxAnomalies caps the anomaly list per dashboard refresh.
const MaxAnomalies = 10

// HighRiskThreshold marks a student as high risk on the exam overview.
const HighRiskThreshold = 60

// Source supplies eventually-consistent snapshots of pipeline state. The
// ingestion gateway implements it; snapshots never block in-flight writes.
type Source interface {
	ExamSnapshot(ctx context.Context, examID uuid.UUID) ([]domain.Session, []domain.SessionRiskProfile, []domain.ViolationEvent, error)
	Session(ctx context.Context, sessionID uuid.UUID) (domain.Session, error)
	Profile(ctx context.Context, sessionID uuid.UUID) (domain.SessionRiskProfile, error)
	SessionEvents(ctx context.Context, sessionID uuid.UUID) ([]domain.ViolationEvent, error)
}

// Overview is the per-exam headline block.
type Overview struct {
	ActiveStudents   int `json:"active_students"`
	TotalViolations  int `json:"total_violations"`
	HighRiskStudents int `json:"high_risk_students"`
	AvgRiskScore     int `json:"avg_risk_score"`
}

// ViolationBreakdown groups the exam's events by type and severity, with
// the bucketed timeline.
type ViolationBreakdown struct {
	ByType     map[domain.EventType]int `json:"by_type"`
	BySeverity map[domain.Severity]int  `json:"by_severity"`
	Timeline   []domain.TimelineBucket  `json:"timeline"`
}

// StudentRow is one session's line on the proctor dashboard.
type StudentRow struct {
	SessionID      uuid.UUID            `json:"session_id"`
	StudentID      uuid.UUID            `json:"student_id"`
	RiskScore      int                  `json:"risk_score"`
	ViolationCount int                  `json:"violation_count"`
	Status         domain.SessionStatus `json:"status"`
}

// Dashboard is the full per-exam view.
type Dashboard struct {
	Overview   Overview               `json:"overview"`
	Students   []StudentRow           `json:"students"`
	Violations ViolationBreakdown     `json:"violations"`
	Analytics  []domain.AnomalyRecord `json:"analytics"`
}

// StudentSummary is the per-session drill-down.
type StudentSummary struct {
	SessionID        uuid.UUID                `json:"session_id"`
	TotalViolations  int                      `json:"total_violations"`
	RiskScore        int                      `json:"risk_score"`
	Status           domain.SessionStatus     `json:"status"`
	ByType           map[domain.EventType]int `json:"violations_by_type"`
	BySeverity       map[domain.Severity]int  `json:"violations_by_severity"`
	Timeline         []domain.TimelineBucket  `json:"timeline"`
	FlaggedBehaviors []string                 `json:"flagged_behaviors"`
	Recommendations  []string                 `json:"recommendations"`
}

// Service builds exam dashboards and student summaries on demand. It holds
// no state of its own, so it is safe to call at arbitrary concurrent rates.
type Service struct {
	source Source
	now    func() time.Time
}

// NewService creates an aggregation service over the given source.
func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

// Dashboard assembles the per-exam overview, breakdowns, timeline, and
// anomaly flags from one snapshot.
func (s *Service) Dashboard(ctx context.Context, examID uuid.UUID) (*Dashboard, error) {
	sessions, profiles, events, err := s.source.ExamSnapshot(ctx, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dash := &Dashboard{
		Overview:   buildOverview(sessions, profiles),
		Students:   buildStudents(profiles),
		Violations: buildBreakdown(examID, sessions, events, now),
		Analytics:  detectAnomalies(profiles, events, now),
	}
	return dash, nil
}

// StudentSummary assembles the per-session drill-down.
func (s *Service) StudentSummary(ctx context.Context, sessionID uuid.UUID) (*StudentSummary, error) {
	session, err := s.source.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	profile, err := s.source.Profile(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	events, err := s.source.SessionEvents(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	byType, bySeverity := groupEvents(events)
	return &StudentSummary{
		SessionID:        sessionID,
		TotalViolations:  profile.ViolationCount,
		RiskScore:        profile.RiskScore,
		Status:           profile.Status,
		ByType:           byType,
		BySeverity:       bySeverity,
		Timeline:         Timeline(session.ExamID, events, session.StartedAt, s.now()),
		FlaggedBehaviors: flagBehaviors(profile, byType),
		Recommendations:  recommend(profile),
	}, nil
}

func buildOverview(sessions []domain.Session, profiles []domain.SessionRiskProfile) Overview {
	var o Overview
	for _, session := range sessions {
		if !session.Status.Closed() {
			o.ActiveStudents++
		}
	}
	var scoreSum int
	for _, p := range profiles {
		o.TotalViolations += p.ViolationCount
		if p.RiskScore >= HighRiskThreshold {
			o.HighRiskStudents++
		}
		scoreSum += p.RiskScore
	}
	if len(profiles) > 0 {
		o.AvgRiskScore = int(math.Round(float64(scoreSum) / float64(len(profiles))))
	}
	return o
}

func buildStudents(profiles []domain.SessionRiskProfile) []StudentRow {
	rows := make([]StudentRow, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, StudentRow{
			SessionID:      p.SessionID,
			StudentID:      p.StudentID,
			RiskScore:      p.RiskScore,
			ViolationCount: p.ViolationCount,
			Status:         p.Status,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].RiskScore > rows[j].RiskScore })
	return rows
}

func buildBreakdown(examID uuid.UUID, sessions []domain.Session, events []domain.ViolationEvent, now time.Time) ViolationBreakdown {
	byType, bySeverity := groupEvents(events)

	examStart := now
	for _, session := range sessions {
		if session.StartedAt.Before(examStart) {
			examStart = session.StartedAt
		}
	}

	return ViolationBreakdown{
		ByType:     byType,
		BySeverity: bySeverity,
		Timeline:   Timeline(examID, events, examStart, now),
	}
}

func groupEvents(events []domain.ViolationEvent) (map[domain.EventType]int, map[domain.Severity]int) {
	byType := make(map[domain.EventType]int)
	bySeverity := make(map[domain.Severity]int)
	for _, e := range events {
		byType[e.Type]++
		bySeverity[e.Severity]++
	}
	return byType, bySeverity
}

// Timeline partitions [start, now] into fixed 10-minute buckets, counts
// events per bucket, and returns only the most recent MaxTimelineBuckets.
// Derived on demand; never persisted.
func Timeline(examID uuid.UUID, events []domain.ViolationEvent, start, now time.Time) []domain.TimelineBucket {
	if now.Before(start) {
		return nil
	}

	bucketCount := int(now.Sub(start)/BucketWidth) + 1
	if bucketCount > MaxTimelineBuckets {
		bucketCount = MaxTimelineBuckets
	}

	// Buckets stay aligned to the exam start even when the window slides.
	firstIdx := int(now.Sub(start)/BucketWidth) + 1 - bucketCount

	buckets := make([]domain.TimelineBucket, bucketCount)
	for i := range buckets {
		bucketStart := start.Add(time.Duration(firstIdx+i) * BucketWidth)
		buckets[i] = domain.TimelineBucket{
			ExamID:      examID,
			BucketStart: bucketStart,
			BucketEnd:   bucketStart.Add(BucketWidth),
		}
	}

	for _, e := range events {
		idx := int(e.Timestamp.Sub(start)/BucketWidth) - firstIdx
		if idx >= 0 && idx < bucketCount && !e.Timestamp.Before(start) {
			buckets[idx].Count++
		}
	}
	return buckets
}
