package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/signal"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures emitted events in order.
type recordingSink struct {
	events []domain.ViolationEvent
}

func (s *recordingSink) Record(_ context.Context, e domain.ViolationEvent) error {
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []domain.EventType {
	out := make([]domain.EventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Type)
	}
	return out
}

var sessionStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestDetector(t *testing.T) (*Detector, *recordingSink, uuid.UUID) {
	t.Helper()
	sink := &recordingSink{}
	det := New(DefaultConfig(), sink, nil)
	sessionID := uuid.New()
	det.Start(sessionID, uuid.New(), sessionStart)
	return det, sink, sessionID
}

func domSignal(sessionID uuid.UUID, kind signal.DOMKind, offset time.Duration) signal.Signal {
	return signal.Signal{
		SessionID: sessionID,
		At:        sessionStart.Add(offset),
		DOM:       &signal.DOMSignal{Kind: kind},
	}
}

func comboSignal(sessionID uuid.UUID, combo signal.KeyCombo, offset time.Duration) signal.Signal {
	return signal.Signal{
		SessionID: sessionID,
		At:        sessionStart.Add(offset),
		DOM:       &signal.DOMSignal{Kind: signal.DOMKeyCombo, Combo: combo},
	}
}

func frameSignal(sessionID uuid.UUID, offset time.Duration, faces ...signal.FaceDetection) signal.Signal {
	return signal.Signal{
		SessionID: sessionID,
		At:        sessionStart.Add(offset),
		Frame:     &signal.Frame{Faces: faces, CapturedAt: sessionStart.Add(offset)},
	}
}

// straightFace looks directly at the camera with the given descriptor.
func straightFace(descriptor ...float64) signal.FaceDetection {
	return signal.FaceDetection{
		Descriptor: descriptor,
		Landmarks: signal.Landmarks{
			LeftEye:  signal.Point{X: 90, Y: 50},
			RightEye: signal.Point{X: 110, Y: 50},
			Nose:     signal.Point{X: 100, Y: 80},
		},
	}
}

// awayFace has its eye center offset 30px from the nose.
func awayFace(descriptor ...float64) signal.FaceDetection {
	f := straightFace(descriptor...)
	f.Landmarks.Nose.X = 130
	return f
}

func TestDetector_UnknownSessionRejected(t *testing.T) {
	det, _, _ := newTestDetector(t)
	err := det.Tick(context.Background(), domSignal(uuid.New(), signal.DOMVisibilityHidden, 0))
	require.Error(t, err)
	var appErr *domain.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "NOT_FOUND", appErr.Code)
}

func TestDetector_ThrottleDropsRapidEmissions(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMVisibilityHidden, 0)))
	// 999ms later: dropped, regardless of type.
	require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMFullscreenExited, 999*time.Millisecond)))
	// Exactly 1000ms after the first emission: passes.
	require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMFullscreenExited, 1000*time.Millisecond)))

	assert.Equal(t, []domain.EventType{domain.EventTabSwitch, domain.EventFullscreenExit}, sink.types())
}

func TestDetector_DOMSignalMapping(t *testing.T) {
	tests := []struct {
		name     string
		sig      func(uuid.UUID) signal.Signal
		wantType domain.EventType
		wantSev  domain.Severity
	}{
		{"tab hidden", func(id uuid.UUID) signal.Signal { return domSignal(id, signal.DOMVisibilityHidden, 0) }, domain.EventTabSwitch, domain.SeverityCritical},
		{"window blur", func(id uuid.UUID) signal.Signal { return domSignal(id, signal.DOMWindowBlurred, 0) }, domain.EventWindowBlur, domain.SeverityWarning},
		{"fullscreen exit", func(id uuid.UUID) signal.Signal { return domSignal(id, signal.DOMFullscreenExited, 0) }, domain.EventFullscreenExit, domain.SeverityCritical},
		{"right click", func(id uuid.UUID) signal.Signal { return domSignal(id, signal.DOMContextMenu, 0) }, domain.EventRightClick, domain.SeverityInfo},
		{"copy combo", func(id uuid.UUID) signal.Signal { return comboSignal(id, signal.ComboCopy, 0) }, domain.EventCopyPaste, domain.SeverityWarning},
		{"paste combo", func(id uuid.UUID) signal.Signal { return comboSignal(id, signal.ComboPaste, 0) }, domain.EventCopyPaste, domain.SeverityWarning},
		{"devtools F12", func(id uuid.UUID) signal.Signal { return comboSignal(id, signal.ComboF12, 0) }, domain.EventDevToolsOpen, domain.SeverityCritical},
		{"devtools inspect", func(id uuid.UUID) signal.Signal { return comboSignal(id, signal.ComboInspect, 0) }, domain.EventDevToolsOpen, domain.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, sink, sessionID := newTestDetector(t)
			require.NoError(t, det.Tick(context.Background(), tt.sig(sessionID)))
			require.Len(t, sink.events, 1)
			assert.Equal(t, tt.wantType, sink.events[0].Type)
			assert.Equal(t, tt.wantSev, sink.events[0].Severity)
		})
	}
}

func TestDetector_TabSwitchCount(t *testing.T) {
	det, _, sessionID := newTestDetector(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMVisibilityHidden, time.Duration(i)*2*time.Second)))
	}
	// A throttled tab switch must not count.
	require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMVisibilityHidden, 4*time.Second+100*time.Millisecond)))

	assert.Equal(t, 3, det.TabSwitches(sessionID))
}

func TestDetector_NoFaceAndMultipleFaces(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 0)))
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 2*time.Second, straightFace(0.1), straightFace(0.9))))

	require.Len(t, sink.events, 2)
	assert.Equal(t, domain.EventNoFace, sink.events[0].Type)
	assert.Equal(t, domain.SeverityCritical, sink.events[0].Severity)
	assert.Equal(t, domain.EventMultipleFaces, sink.events[1].Type)
	assert.Equal(t, domain.SeverityCritical, sink.events[1].Severity)
}

func TestDetector_EnrollmentThenMismatchBoundary(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	// First single-face frame enrolls the reference descriptor.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 0, straightFace(0))))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled}, sink.types())
	assert.Equal(t, domain.SeverityInfo, sink.events[0].Severity)

	// Distance exactly 0.6 from the reference: no mismatch (strict >).
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 2*time.Second, straightFace(0.6))))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled}, sink.types())

	// Distance 0.601: mismatch.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 4*time.Second, straightFace(0.601))))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled, domain.EventFaceMismatch}, sink.types())
	assert.Equal(t, domain.SeverityCritical, sink.events[1].Severity)
}

func TestDetector_GazeAwayHold(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	// Enroll first so identity rules stay quiet, then clear the throttle.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 0, straightFace(0))))
	base := 10 * time.Second

	// Away ticks at +0ms and +2999ms: under the hold, nothing emitted.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base, awayFace(0))))
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+2999*time.Millisecond, awayFace(0))))
	assert.Equal(t, []domain.EventType{domain.EventFaceEnrolled}, sink.types())

	// 3001ms of continuous away-gaze: emitted.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+3001*time.Millisecond, awayFace(0))))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled, domain.EventGazeAway}, sink.types())

	// The timer re-armed: another sustained away-gaze emits a second event.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+6010*time.Millisecond, awayFace(0))))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled, domain.EventGazeAway, domain.EventGazeAway}, sink.types())
}

func TestDetector_GazeResetOnLookingBack(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 0, straightFace(0))))
	base := 10 * time.Second

	// 2s away, then back, then away again: the hold never completes.
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base, awayFace(0))))
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+2*time.Second, straightFace(0))))
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+4*time.Second, awayFace(0))))
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, base+6*time.Second, awayFace(0))))

	assert.Equal(t, []domain.EventType{domain.EventFaceEnrolled}, sink.types())
}

func TestDetector_SuspiciousExpression(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 0, straightFace(0))))

	calm := straightFace(0)
	calm.Expressions = map[string]float64{"surprised": 0.8}
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 2*time.Second, calm)))
	assert.Equal(t, []domain.EventType{domain.EventFaceEnrolled}, sink.types())

	startled := straightFace(0)
	startled.Expressions = map[string]float64{"surprised": 0.81}
	require.NoError(t, det.Tick(ctx, frameSignal(sessionID, 4*time.Second, startled)))
	require.Equal(t, []domain.EventType{domain.EventFaceEnrolled, domain.EventSuspiciousExpression}, sink.types())
	assert.Equal(t, domain.SeverityWarning, sink.events[1].Severity)
}

func audioSignal(sessionID uuid.UUID, offset time.Duration, bands []float64) signal.Signal {
	return signal.Signal{
		SessionID: sessionID,
		At:        sessionStart.Add(offset),
		Audio:     &signal.AudioSample{EnergyBands: bands},
	}
}

func TestDetector_MultipleVoicesHeuristic(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	// Loud across all bands: low 40, mid 60, high 70 with overall mean 56.7.
	loud := []float64{40, 40, 40, 60, 60, 60, 70, 70, 70}
	require.NoError(t, det.Tick(ctx, audioSignal(sessionID, 0, loud)))
	require.Equal(t, []domain.EventType{domain.EventMultipleVoices}, sink.types())
	assert.Equal(t, domain.SeverityCritical, sink.events[0].Severity)

	// Quiet window: overall mean below the gate, no emission.
	quiet := []float64{10, 10, 10, 20, 20, 20, 15, 15, 15}
	require.NoError(t, det.Tick(ctx, audioSignal(sessionID, 2*time.Second, quiet)))
	assert.Len(t, sink.events, 1)

	// Loud but concentrated in one band (single speaker): no emission.
	single := []float64{5, 5, 5, 150, 150, 150, 10, 10, 10}
	require.NoError(t, det.Tick(ctx, audioSignal(sessionID, 4*time.Second, single)))
	assert.Len(t, sink.events, 1)
}

func TestDetector_MediaErrorReportedOnce(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	ctx := context.Background()

	failure := signal.Signal{SessionID: sessionID, At: sessionStart, Err: errors.New("camera denied")}
	require.NoError(t, det.Tick(ctx, failure))

	failure.At = sessionStart.Add(2 * time.Second)
	require.NoError(t, det.Tick(ctx, failure))

	require.Equal(t, []domain.EventType{domain.EventSystemError}, sink.types())
	assert.Equal(t, domain.SeverityInfo, sink.events[0].Severity)

	// DOM-only operation continues after media loss.
	require.NoError(t, det.Tick(ctx, domSignal(sessionID, signal.DOMVisibilityHidden, 4*time.Second)))
	assert.Equal(t, []domain.EventType{domain.EventSystemError, domain.EventTabSwitch}, sink.types())
}

func TestDetector_StopRejectsLaterSignals(t *testing.T) {
	det, sink, sessionID := newTestDetector(t)
	det.Stop(sessionID)

	err := det.Tick(context.Background(), domSignal(sessionID, signal.DOMVisibilityHidden, time.Second))
	require.Error(t, err)
	assert.Empty(t, sink.events)
}
