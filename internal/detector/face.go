package detector

import (
	"context"
	"math"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/signal"
)

// evalFrame runs the vision rules: face count, identity, gaze, expression.
// Rule order matters: the first emission in a tick wins the throttle slot.
func (d *Detector) evalFrame(ctx context.Context, sig signal.Signal, st *sessionState) error {
	frame := sig.Frame

	switch len(frame.Faces) {
	case 0:
		st.gazeAwaySince = nil
		_, err := d.emit(ctx, sig, st, domain.EventNoFace, domain.SeverityCritical, "no face detected in frame")
		return err
	case 1:
		// fall through to the single-face rules below
	default:
		_, err := d.emit(ctx, sig, st, domain.EventMultipleFaces, domain.SeverityCritical, "multiple faces detected in frame")
		return err
	}

	face := frame.Faces[0]

	if st.reference == nil {
		// First-seen enrollment: the first single-face frame becomes the
		// identity reference. Known weak bootstrap; the enrollment event
		// makes the transition visible in the audit log.
		st.reference = append([]float64(nil), face.Descriptor...)
		if _, err := d.emit(ctx, sig, st, domain.EventFaceEnrolled, domain.SeverityInfo, "reference face descriptor enrolled"); err != nil {
			return err
		}
	} else if euclideanDistance(face.Descriptor, st.reference) > d.cfg.DescriptorDistanceMax {
		if _, err := d.emit(ctx, sig, st, domain.EventFaceMismatch, domain.SeverityCritical, "face does not match enrolled reference"); err != nil {
			return err
		}
	}

	if err := d.evalGaze(ctx, sig, st, face); err != nil {
		return err
	}

	if face.Expressions["surprised"] > d.cfg.SurpriseConfidenceMax {
		if _, err := d.emit(ctx, sig, st, domain.EventSuspiciousExpression, domain.SeverityWarning, "suspicious facial expression"); err != nil {
			return err
		}
	}

	return nil
}

// evalGaze tracks continuous away-gaze. The timer starts on the first away
// tick, fires strictly after the hold duration, and re-arms so a later
// sustained away-gaze triggers again. Looking back clears it.
func (d *Detector) evalGaze(ctx context.Context, sig signal.Signal, st *sessionState, face signal.FaceDetection) error {
	eyeCenterX := (face.Landmarks.LeftEye.X + face.Landmarks.RightEye.X) / 2
	away := math.Abs(eyeCenterX-face.Landmarks.Nose.X) > d.cfg.GazeOffsetPixels

	if !away {
		st.gazeAwaySince = nil
		return nil
	}

	if st.gazeAwaySince == nil {
		at := sig.At
		st.gazeAwaySince = &at
		return nil
	}

	if sig.At.Sub(*st.gazeAwaySince) > d.cfg.GazeHold {
		at := sig.At
		st.gazeAwaySince = &at
		if _, err := d.emit(ctx, sig, st, domain.EventGazeAway, domain.SeverityCritical, "look_away_extended"); err != nil {
			return err
		}
	}
	return nil
}

// euclideanDistance compares descriptor vectors over their common length.
func euclideanDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
