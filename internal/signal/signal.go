package signal

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Point is a pixel coordinate in the captured frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Landmarks holds the facial landmark coordinates used for gaze estimation.
type Landmarks struct {
	LeftEye  Point `json:"left_eye"`
	RightEye Point `json:"right_eye"`
	Nose     Point `json:"nose"`
}

// FaceDetection is one detected face as returned by the frame-analysis
// capability: a numeric descriptor vector, landmark coordinates, and an
// expression-confidence map.
type FaceDetection struct {
	Descriptor  []float64          `json:"descriptor"`
	Landmarks   Landmarks          `json:"landmarks"`
	Expressions map[string]float64 `json:"expressions"`
}

// Frame is the result of analyzing one video frame.
type Frame struct {
	Faces      []FaceDetection `json:"faces"`
	CapturedAt time.Time       `json:"captured_at"`
}

// AudioSample is frequency-band energy for a short audio window.
type AudioSample struct {
	EnergyBands []float64 `json:"energy_bands"`
	CapturedAt  time.Time `json:"captured_at"`
}

// DOMKind enumerates the browser signals forwarded by the host environment.
type DOMKind string

const (
	DOMVisibilityHidden DOMKind = "visibility_hidden"
	DOMWindowBlurred    DOMKind = "window_blurred"
	DOMFullscreenExited DOMKind = "fullscreen_exited"
	DOMKeyCombo         DOMKind = "key_combo"
	DOMContextMenu      DOMKind = "context_menu_attempted"
)

// KeyCombo identifies a monitored keyboard shortcut.
type KeyCombo string

const (
	ComboCopy    KeyCombo = "ctrl+c"
	ComboPaste   KeyCombo = "ctrl+v"
	ComboCut     KeyCombo = "ctrl+x"
	ComboSelect  KeyCombo = "ctrl+a"
	ComboF12     KeyCombo = "F12"
	ComboInspect KeyCombo = "ctrl+shift+I"
)

// DOMSignal is one discrete browser event.
type DOMSignal struct {
	Kind  DOMKind  `json:"kind"`
	Combo KeyCombo `json:"combo,omitempty"`
}

// Signal is one element of the uniform per-session signal stream. Exactly
// one of Frame, Audio, DOM, or Err is set.
type Signal struct {
	SessionID uuid.UUID
	At        time.Time
	Frame     *Frame
	Audio     *AudioSample
	DOM       *DOMSignal
	Err       error
}

// FrameAnalyzer is the external vision capability. Given a video frame it
// returns the detected faces; the model itself is out of scope.
type FrameAnalyzer interface {
	AnalyzeFrame(ctx context.Context) (*Frame, error)
}

// AudioLeveler is the external audio capability returning frequency-band
// energy for the current window.
type AudioLeveler interface {
	LevelSample(ctx context.Context) (*AudioSample, error)
}
