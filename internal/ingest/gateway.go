package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/policy"
	"github.com/examguard/platform/internal/repository"
	"github.com/examguard/platform/internal/scoring"
	"github.com/google/uuid"
)

// sessionState owns one session's ordered event log and risk profile.
// Sessions never share mutable state; the lock is per-session so ingestion
// for one candidate cannot stall another.
type sessionState struct {
	mu      sync.Mutex
	session domain.Session
	events  []domain.ViolationEvent
	seen    map[domain.DedupKey]bool
	profile domain.SessionRiskProfile
}

// Notifier receives push notifications for freshly scored events. Calls
// must not block; the gateway invokes them on the ingestion path.
type Notifier interface {
	ViolationRecorded(event domain.ViolationEvent, profile domain.SessionRiskProfile)
	SessionTerminated(sessionID, examID uuid.UUID, reason string)
}

// Gateway receives violation events, persists them verbatim, recomputes the
// session risk profile from the full history, and evaluates the termination
// policy synchronously. It is the only writer of risk profiles.
type Gateway struct {
	sessions repository.SessionRepository
	events   repository.EventRepository
	outbox   repository.OutboxRepository
	db       repository.DBTX
	policy   policy.TerminationPolicy
	logger   *slog.Logger
	notifier Notifier

	mu     sync.RWMutex
	states map[uuid.UUID]*sessionState
}

// SetNotifier attaches a live-feed notifier. Call before serving traffic.
func (g *Gateway) SetNotifier(n Notifier) {
	g.notifier = n
}

// NewGateway creates a gateway over the given repositories. db may be nil
// when the repositories are memory-backed.
func NewGateway(
	sessions repository.SessionRepository,
	events repository.EventRepository,
	outbox repository.OutboxRepository,
	db repository.DBTX,
	terminationPolicy policy.TerminationPolicy,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		sessions: sessions,
		events:   events,
		outbox:   outbox,
		db:       db,
		policy:   terminationPolicy,
		logger:   logger,
		states:   make(map[uuid.UUID]*sessionState),
	}
}

// StartSession registers a new attempt and opens its event log.
func (g *Gateway) StartSession(ctx context.Context, examID, studentID uuid.UUID, startedAt time.Time) (*domain.Session, error) {
	session := domain.Session{
		ID:        uuid.New(),
		ExamID:    examID,
		StudentID: studentID,
		Status:    domain.SessionActive,
		StartedAt: startedAt,
	}
	if err := g.sessions.Create(ctx, g.db, &session); err != nil {
		return nil, err
	}
	if err := g.outbox.Insert(ctx, g.db, domain.NewSessionLifecycleEvent(&session, true)); err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.states[session.ID] = newState(session, nil)
	g.mu.Unlock()

	if g.logger != nil {
		g.logger.Info("session started", "session_id", session.ID, "exam_id", examID, "student_id", studentID)
	}
	return &session, nil
}

func newState(session domain.Session, events []domain.ViolationEvent) *sessionState {
	st := &sessionState{
		session: session,
		events:  events,
		seen:    make(map[domain.DedupKey]bool, len(events)),
	}
	for _, e := range events {
		st.seen[e.Key()] = true
	}
	now := session.StartedAt
	if len(events) > 0 {
		now = events[len(events)-1].Timestamp
	}
	st.recompute(now)
	return st
}

// state returns the in-memory owner of a session, lazily rebuilding it from
// the persisted log after a restart.
func (g *Gateway) state(ctx context.Context, sessionID uuid.UUID) (*sessionState, error) {
	g.mu.RLock()
	st, ok := g.states[sessionID]
	g.mu.RUnlock()
	if ok {
		return st, nil
	}

	session, err := g.sessions.FindByID(ctx, g.db, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrNotFound("session", sessionID.String())
	}
	log, err := g.events.ListBySession(ctx, g.db, sessionID)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if existing, ok := g.states[sessionID]; ok {
		return existing, nil
	}
	st = newState(*session, log)
	g.states[sessionID] = st
	return st, nil
}

// Ingest appends one event to the session's log, recomputes the risk
// profile from the full history, and returns the fresh termination
// decision. Duplicate delivery of the literal same event is a no-op.
func (g *Gateway) Ingest(ctx context.Context, sessionID uuid.UUID, event domain.ViolationEvent) (policy.TerminationDecision, error) {
	if err := domain.ValidateViolationEvent(event); err != nil {
		return policy.TerminationDecision{}, domain.ErrValidation(err.Error())
	}

	st, err := g.state(ctx, sessionID)
	if err != nil {
		return policy.TerminationDecision{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session.Status.Closed() {
		return policy.TerminationDecision{}, domain.ErrSessionClosed(sessionID.String())
	}

	event.SessionID = sessionID
	event.ExamID = st.session.ExamID
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	key := event.Key()
	if st.seen[key] {
		// Already scored; report the current decision without mutating.
		return policy.TerminationDecision{Terminated: st.session.Status == domain.SessionTerminated}, nil
	}

	if err := g.events.Append(ctx, g.db, &event); err != nil {
		return policy.TerminationDecision{}, domain.ErrInternal("append event", err)
	}
	if err := g.outbox.Insert(ctx, g.db, domain.NewViolationRecordedEvent(event)); err != nil {
		return policy.TerminationDecision{}, domain.ErrInternal("record outbox event", err)
	}
	st.seen[key] = true
	st.events = append(st.events, event)
	st.recompute(event.Timestamp)

	if g.notifier != nil {
		g.notifier.ViolationRecorded(event, st.profile)
	}

	decision := policy.EvaluateTermination(g.policy, st.profile.RiskScore, st.profile.ViolationCount, st.profile.CriticalCount)
	if decision.Terminated {
		if err := g.terminateLocked(ctx, st, decision.Reason); err != nil {
			return policy.TerminationDecision{}, err
		}
	}
	return decision, nil
}

// recompute rebuilds the profile as a pure function of the ordered log.
// now is the latest event timestamp so the result is reproducible from the
// log alone.
func (st *sessionState) recompute(now time.Time) {
	var tabSwitches, criticals int
	for _, e := range st.events {
		if e.Type == domain.EventTabSwitch {
			tabSwitches++
		}
		if e.Severity == domain.SeverityCritical {
			criticals++
		}
	}

	score := scoring.Score(st.events, st.session.StartedAt, now)
	st.profile = domain.SessionRiskProfile{
		SessionID:      st.session.ID,
		ExamID:         st.session.ExamID,
		StudentID:      st.session.StudentID,
		RiskScore:      score,
		ViolationCount: len(st.events),
		TabSwitchCount: tabSwitches,
		CriticalCount:  criticals,
		Status:         scoring.DeriveStatus(st.session.Status, score, len(st.events)),
	}
	if len(st.events) > 0 {
		st.profile.LastEventAt = st.events[len(st.events)-1].Timestamp
	}
}

// terminateLocked force-submits the session. Caller holds st.mu.
func (g *Gateway) terminateLocked(ctx context.Context, st *sessionState, reason string) error {
	now := time.Now()
	st.session.Status = domain.SessionTerminated
	st.session.EndedAt = &now
	st.profile.Status = domain.SessionTerminated

	if err := g.sessions.UpdateStatus(ctx, g.db, st.session.ID, domain.SessionTerminated, &now); err != nil {
		return domain.ErrInternal("terminate session", err)
	}
	draft := domain.NewSessionTerminatedEvent(st.session.ID, st.session.ExamID, st.profile.RiskScore, st.profile.ViolationCount, reason)
	if err := g.outbox.Insert(ctx, g.db, draft); err != nil {
		return domain.ErrInternal("record termination event", err)
	}
	if g.notifier != nil {
		g.notifier.SessionTerminated(st.session.ID, st.session.ExamID, reason)
	}
	if g.logger != nil {
		g.logger.Warn("session terminated", "session_id", st.session.ID, "risk_score", st.profile.RiskScore, "reason", reason)
	}
	return nil
}

// EndSession marks a voluntary submit. Further events are rejected.
func (g *Gateway) EndSession(ctx context.Context, sessionID uuid.UUID) (*domain.Session, error) {
	st, err := g.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if st.session.Status.Closed() {
		return nil, domain.ErrSessionClosed(sessionID.String())
	}

	now := time.Now()
	st.session.Status = domain.SessionSubmitted
	st.session.EndedAt = &now
	st.profile.Status = domain.SessionSubmitted

	if err := g.sessions.UpdateStatus(ctx, g.db, sessionID, domain.SessionSubmitted, &now); err != nil {
		return nil, domain.ErrInternal("end session", err)
	}
	if err := g.outbox.Insert(ctx, g.db, domain.NewSessionLifecycleEvent(&st.session, false)); err != nil {
		return nil, domain.ErrInternal("record session end", err)
	}

	session := st.session
	return &session, nil
}

// Profile returns a snapshot of the session's current risk profile.
func (g *Gateway) Profile(ctx context.Context, sessionID uuid.UUID) (domain.SessionRiskProfile, error) {
	st, err := g.state(ctx, sessionID)
	if err != nil {
		return domain.SessionRiskProfile{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.profile, nil
}

// SessionEvents returns a copy of the session's ordered event log.
func (g *Gateway) SessionEvents(ctx context.Context, sessionID uuid.UUID) ([]domain.ViolationEvent, error) {
	st, err := g.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]domain.ViolationEvent(nil), st.events...), nil
}

// Session returns a snapshot of the session row.
func (g *Gateway) Session(ctx context.Context, sessionID uuid.UUID) (domain.Session, error) {
	st, err := g.state(ctx, sessionID)
	if err != nil {
		return domain.Session{}, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.session, nil
}

// ExamSnapshot returns eventually-consistent copies of every session,
// profile, and event for an exam. Each session is locked only long enough
// to copy; in-flight ingestion on other sessions is never blocked.
func (g *Gateway) ExamSnapshot(ctx context.Context, examID uuid.UUID) ([]domain.Session, []domain.SessionRiskProfile, []domain.ViolationEvent, error) {
	rows, err := g.sessions.ListByExam(ctx, g.db, examID)
	if err != nil {
		return nil, nil, nil, err
	}

	sessions := make([]domain.Session, 0, len(rows))
	profiles := make([]domain.SessionRiskProfile, 0, len(rows))
	var events []domain.ViolationEvent

	for _, row := range rows {
		st, err := g.state(ctx, row.ID)
		if err != nil {
			return nil, nil, nil, err
		}
		st.mu.Lock()
		sessions = append(sessions, st.session)
		profiles = append(profiles, st.profile)
		events = append(events, st.events...)
		st.mu.Unlock()
	}
	return sessions, profiles, events, nil
}
