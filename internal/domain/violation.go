package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all violation event types emitted by the detector.
type EventType string

const (
	EventNoFace               EventType = "no_face"
	EventMultipleFaces        EventType = "multiple_faces"
	EventFaceMismatch         EventType = "face_mismatch"
	EventGazeAway             EventType = "gaze_away"
	EventTabSwitch            EventType = "tab_switch"
	EventWindowBlur           EventType = "window_blur"
	EventFullscreenExit       EventType = "fullscreen_exit"
	EventCopyPaste            EventType = "copy_paste"
	EventDevToolsOpen         EventType = "dev_tools_open"
	EventRightClick           EventType = "right_click"
	EventMultipleVoices       EventType = "multiple_voices"
	EventSuspiciousExpression EventType = "suspicious_expression"
	EventSuspiciousActivity   EventType = "suspicious_activity"
	EventKeyboardShortcut     EventType = "keyboard_shortcut"
	EventRapidAnswerChange    EventType = "rapid_answer_change"
	EventUnusualTyping        EventType = "unusual_typing_pattern"

	// Informational types. They carry default weight in scoring but mark
	// lifecycle transitions in the event log.
	EventSessionStart EventType = "session_start"
	EventSessionEnd   EventType = "session_end"
	EventFaceEnrolled EventType = "face_enrolled"
	EventSystemError  EventType = "system_error"
)

// Severity is the ordinal severity tag attached to every event.
// Ordering matters: info < warning < critical.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Ordinal returns the rank used for escalation comparison.
func (s Severity) Ordinal() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// ViolationEvent is an immutable fact appended to a session's ordered log.
// Events are never edited or deleted, only superseded by later events.
type ViolationEvent struct {
	ID          uuid.UUID       `json:"id"`
	SessionID   uuid.UUID       `json:"session_id"`
	ExamID      uuid.UUID       `json:"exam_id"`
	Type        EventType       `json:"event_type"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	// TimeIntoExam is seconds since session start, supplied by the caller.
	TimeIntoExam int       `json:"time_into_exam"`
	Timestamp    time.Time `json:"timestamp"`
}

// DedupKey identifies a literal duplicate delivery of the same event.
// The gateway treats a second ingest with an identical key as a no-op.
type DedupKey struct {
	SessionID uuid.UUID
	Type      EventType
	Timestamp time.Time
}

// Key returns the deduplication key for the event.
func (e ViolationEvent) Key() DedupKey {
	return DedupKey{SessionID: e.SessionID, Type: e.Type, Timestamp: e.Timestamp}
}
