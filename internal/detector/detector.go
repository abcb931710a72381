package detector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/signal"
	"github.com/google/uuid"
)

// Sink receives non-dropped violation events. Delivery retry is the
// gateway's concern, not the detector's.
type Sink interface {
	Record(ctx context.Context, event domain.ViolationEvent) error
}

// Config holds the detection thresholds.
type Config struct {
	// GazeOffsetPixels is the horizontal eye-to-nose offset that counts as
	// looking away. Pixel-based, so resolution dependent; calibrated for
	// the default capture size.
	GazeOffsetPixels float64

	// GazeHold is how long a continuous away-gaze must persist before an
	// event is emitted.
	GazeHold time.Duration

	// DescriptorDistanceMax is the Euclidean distance above which a face
	// no longer matches the enrolled reference (strict greater-than).
	DescriptorDistanceMax float64

	// SurpriseConfidenceMax flags the "surprised" expression above this
	// confidence (strict greater-than).
	SurpriseConfidenceMax float64

	// AudioEnergyMean gates the multiple-voices heuristic.
	AudioEnergyMean float64

	// Throttle is the global per-session minimum gap between emissions.
	Throttle time.Duration
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		GazeOffsetPixels:      20,
		GazeHold:              3 * time.Second,
		DescriptorDistanceMax: 0.6,
		SurpriseConfidenceMax: 0.8,
		AudioEnergyMean:       50,
		Throttle:              time.Second,
	}
}

// sessionState is the per-session detection state machine. All timing is
// driven by signal timestamps, never the wall clock, so replaying a signal
// stream reproduces the same emissions.
type sessionState struct {
	examID    uuid.UUID
	startedAt time.Time

	gazeAwaySince *time.Time
	reference     []float64
	lastEmittedAt time.Time
	tabSwitches   int
	mediaErrSent  bool
}

// Detector converts raw signals into typed, severity-tagged violation
// events. One Detector serves many sessions; each session's state is
// isolated and guarded.
type Detector struct {
	cfg    Config
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionState
}

// New creates a detector that emits events into sink.
func New(cfg Config, sink Sink, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:      cfg,
		sink:     sink,
		logger:   logger,
		sessions: make(map[uuid.UUID]*sessionState),
	}
}

// Start registers a session so its signals can be evaluated.
func (d *Detector) Start(sessionID, examID uuid.UUID, startedAt time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessions[sessionID] = &sessionState{examID: examID, startedAt: startedAt}
}

// Stop discards a session's detection state. Signals arriving afterwards
// are rejected.
func (d *Detector) Stop(sessionID uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// TabSwitches returns the running tab-switch count for a session.
func (d *Detector) TabSwitches(sessionID uuid.UUID) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if st, ok := d.sessions[sessionID]; ok {
		return st.tabSwitches
	}
	return 0
}

// Tick evaluates one signal against the session's state machine, emitting
// at most the non-throttled violations it implies.
func (d *Detector) Tick(ctx context.Context, sig signal.Signal) error {
	d.mu.Lock()
	st, ok := d.sessions[sig.SessionID]
	d.mu.Unlock()
	if !ok {
		return domain.ErrNotFound("session", sig.SessionID.String())
	}

	switch {
	case sig.Err != nil:
		return d.evalMediaError(ctx, sig, st)
	case sig.Frame != nil:
		return d.evalFrame(ctx, sig, st)
	case sig.Audio != nil:
		return d.evalAudio(ctx, sig, st)
	case sig.DOM != nil:
		return d.evalDOM(ctx, sig, st)
	}
	return nil
}

// Consume drains a signal stream until it closes or ctx is cancelled.
func (d *Detector) Consume(ctx context.Context, signals <-chan signal.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			if err := d.Tick(ctx, sig); err != nil {
				if d.logger != nil {
					d.logger.Error("signal evaluation failed", "session_id", sig.SessionID, "error", err)
				}
			}
		}
	}
}

// emit applies the global per-session throttle and forwards the event.
// Returns false when the emission was dropped.
func (d *Detector) emit(ctx context.Context, sig signal.Signal, st *sessionState, eventType domain.EventType, severity domain.Severity, description string) (bool, error) {
	if !st.lastEmittedAt.IsZero() && sig.At.Sub(st.lastEmittedAt) < d.cfg.Throttle {
		return false, nil
	}
	st.lastEmittedAt = sig.At

	event := domain.ViolationEvent{
		ID:           uuid.New(),
		SessionID:    sig.SessionID,
		ExamID:       st.examID,
		Type:         eventType,
		Severity:     severity,
		Description:  description,
		TimeIntoExam: int(sig.At.Sub(st.startedAt).Seconds()),
		Timestamp:    sig.At,
	}
	if err := d.sink.Record(ctx, event); err != nil {
		return true, err
	}
	return true, nil
}
