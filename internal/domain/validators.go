package domain

import "fmt"

var knownEventTypes = map[EventType]bool{
	EventNoFace:               true,
	EventMultipleFaces:        true,
	EventFaceMismatch:         true,
	EventGazeAway:             true,
	EventTabSwitch:            true,
	EventWindowBlur:           true,
	EventFullscreenExit:       true,
	EventCopyPaste:            true,
	EventDevToolsOpen:         true,
	EventRightClick:           true,
	EventMultipleVoices:       true,
	EventSuspiciousExpression: true,
	EventSuspiciousActivity:   true,
	EventKeyboardShortcut:     true,
	EventRapidAnswerChange:    true,
	EventUnusualTyping:        true,
	EventSessionStart:         true,
	EventSessionEnd:           true,
	EventFaceEnrolled:         true,
	EventSystemError:          true,
}

// KnownEventType reports whether t is one of the enumerated event types.
// Unknown types are still accepted by the pipeline (they score with default
// weight), so this is informational, not a gate.
func KnownEventType(t EventType) bool {
	return knownEventTypes[t]
}

// ValidateViolationEvent checks the fields a caller must supply before the
// gateway will accept an event.
func ValidateViolationEvent(e ViolationEvent) error {
	if e.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if !e.Severity.Valid() {
		return fmt.Errorf("invalid severity: %q", e.Severity)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	if e.TimeIntoExam < 0 {
		return fmt.Errorf("time_into_exam must not be negative, got %d", e.TimeIntoExam)
	}
	return nil
}
