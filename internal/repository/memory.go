package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory implementation of the session,
// event, and outbox repositories, sharing one lock. Used by unit tests and
// as a no-database fallback; the DBTX argument is ignored throughout.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]domain.Session
	events   map[uuid.UUID][]domain.ViolationEvent // keyed by session ID
	dedup    map[domain.DedupKey]bool
	outbox   []domain.OutboxDraft

	Sessions SessionRepository
	Events   EventRepository
	Outbox   OutboxRepository
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		sessions: make(map[uuid.UUID]domain.Session),
		events:   make(map[uuid.UUID][]domain.ViolationEvent),
		dedup:    make(map[domain.DedupKey]bool),
	}
	m.Sessions = &memorySessions{m}
	m.Events = &memoryEvents{m}
	m.Outbox = &memoryOutbox{m}
	return m
}

// OutboxDrafts returns a snapshot of the accumulated integration events.
func (m *MemoryStore) OutboxDrafts() []domain.OutboxDraft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.OutboxDraft(nil), m.outbox...)
}

type memorySessions struct{ s *MemoryStore }

func (r *memorySessions) Create(_ context.Context, _ DBTX, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.sessions[session.ID]; exists {
		return domain.ErrConflict("session already exists")
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *memorySessions) FindByID(_ context.Context, _ DBTX, id uuid.UUID) (*domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if s, ok := r.s.sessions[id]; ok {
		return &s, nil
	}
	return nil, nil
}

func (r *memorySessions) ListByExam(_ context.Context, _ DBTX, examID uuid.UUID) ([]domain.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Session
	for _, s := range r.s.sessions {
		if s.ExamID == examID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

func (r *memorySessions) UpdateStatus(_ context.Context, _ DBTX, id uuid.UUID, status domain.SessionStatus, endedAt *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s, ok := r.s.sessions[id]
	if !ok {
		return domain.ErrNotFound("session", id.String())
	}
	s.Status = status
	if endedAt != nil {
		s.EndedAt = endedAt
	}
	r.s.sessions[id] = s
	return nil
}

type memoryEvents struct{ s *MemoryStore }

func (r *memoryEvents) Append(_ context.Context, _ DBTX, event *domain.ViolationEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := event.Key()
	if r.s.dedup[key] {
		return nil
	}
	r.s.dedup[key] = true
	r.s.events[event.SessionID] = append(r.s.events[event.SessionID], *event)
	return nil
}

func (r *memoryEvents) ListBySession(_ context.Context, _ DBTX, sessionID uuid.UUID) ([]domain.ViolationEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.ViolationEvent(nil), r.s.events[sessionID]...), nil
}

func (r *memoryEvents) ListByExam(_ context.Context, _ DBTX, examID uuid.UUID) ([]domain.ViolationEvent, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.ViolationEvent
	for _, log := range r.s.events {
		for _, e := range log {
			if e.ExamID == examID {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

type memoryOutbox struct{ s *MemoryStore }

func (r *memoryOutbox) Insert(_ context.Context, _ DBTX, draft domain.OutboxDraft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.outbox = append(r.s.outbox, draft)
	return nil
}
