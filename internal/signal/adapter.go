package signal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultCadence is the capture interval for vision and audio capabilities.
// DOM signals are pushed as they happen, between ticks.
const DefaultCadence = 2 * time.Second

// Adapter multiplexes capability ticks and DOM callbacks onto a single
// ordered channel for one session. The detector consumes the channel
// sequentially, which preserves signal order without depending on the host
// environment's event-loop model.
type Adapter struct {
	sessionID uuid.UUID
	analyzer  FrameAnalyzer
	leveler   AudioLeveler
	cadence   time.Duration
	logger    *slog.Logger

	out chan Signal

	// Media acquisition failure is reported once; the stream stays open
	// for DOM signals afterwards.
	mediaFailed bool
}

// NewAdapter creates an adapter for one session. analyzer and leveler may
// be nil when the corresponding capability is unavailable.
func NewAdapter(sessionID uuid.UUID, analyzer FrameAnalyzer, leveler AudioLeveler, cadence time.Duration, logger *slog.Logger) *Adapter {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	return &Adapter{
		sessionID: sessionID,
		analyzer:  analyzer,
		leveler:   leveler,
		cadence:   cadence,
		logger:    logger,
		out:       make(chan Signal, 64),
	}
}

// Signals returns the ordered per-session signal stream.
func (a *Adapter) Signals() <-chan Signal {
	return a.out
}

// PushDOM forwards a browser event onto the stream. Safe to call from the
// host's event callbacks at any rate; the channel buffer absorbs bursts.
func (a *Adapter) PushDOM(sig DOMSignal, at time.Time) {
	a.out <- Signal{SessionID: a.sessionID, At: at, DOM: &sig}
}

// Run drives the capability tick loop until ctx is cancelled, then closes
// the stream. DOM pushes must stop before cancellation.
func (a *Adapter) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cadence)
	defer ticker.Stop()
	defer close(a.out)

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			a.tick(ctx, now)
		}
	}
}

func (a *Adapter) tick(ctx context.Context, now time.Time) {
	if a.analyzer != nil {
		frame, err := a.analyzer.AnalyzeFrame(ctx)
		if err != nil {
			a.reportMediaFailure(now, err)
		} else {
			a.out <- Signal{SessionID: a.sessionID, At: now, Frame: frame}
		}
	}

	if a.leveler != nil {
		sample, err := a.leveler.LevelSample(ctx)
		if err != nil {
			a.reportMediaFailure(now, err)
		} else {
			a.out <- Signal{SessionID: a.sessionID, At: now, Audio: sample}
		}
	}
}

// reportMediaFailure emits a single error signal for the session. Camera or
// microphone loss is a violation source, not a fatal error: the detector
// keeps working on DOM-only signals.
func (a *Adapter) reportMediaFailure(now time.Time, err error) {
	if a.mediaFailed {
		return
	}
	a.mediaFailed = true
	if a.logger != nil {
		a.logger.Warn("media capability failed", "session_id", a.sessionID, "error", err)
	}
	a.out <- Signal{SessionID: a.sessionID, At: now, Err: err}
}
