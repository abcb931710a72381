package scoring

import (
	"math"
	"time"

	"github.com/examguard/platform/internal/domain"
)

// Base weight per event type. Types not listed here score with
// defaultWeight, so unrecognized signals still contribute minimally
// instead of being dropped.
var baseWeights = map[domain.EventType]float64{
	domain.EventFaceMismatch:       25,
	domain.EventMultipleFaces:      20,
	domain.EventDevToolsOpen:       30,
	domain.EventSuspiciousActivity: 15,
	domain.EventNoFace:             10,
	domain.EventGazeAway:           8,
	domain.EventMultipleVoices:     12,
	domain.EventTabSwitch:          5,
	domain.EventWindowBlur:         3,
	domain.EventCopyPaste:          7,
	domain.EventRightClick:         2,
	domain.EventKeyboardShortcut:   4,
	domain.EventRapidAnswerChange:  6,
	domain.EventUnusualTyping:      5,
}

// Detector-side aliases for weighted types.
var weightAliases = map[domain.EventType]domain.EventType{
	"face_not_detected":  domain.EventNoFace,
	"look_away_extended": domain.EventGazeAway,
}

const defaultWeight = 1

// Severity multipliers applied on top of the base weight.
var severityMultipliers = map[domain.Severity]float64{
	domain.SeverityInfo:     0.5,
	domain.SeverityWarning:  1.0,
	domain.SeverityCritical: 2.0,
}

const (
	// More than one violation per two minutes is treated as a burst.
	frequencyThreshold  = 0.5
	frequencyMultiplier = 1.5

	// Any three consecutive events inside this window form a cluster.
	clusterWindow = 30 * time.Second
	clusterBonus  = 10

	// Each adjacent pair with strictly increasing severity.
	escalationBonus = 5

	maxScore = 100
)

// Weight returns the base weight for an event type.
func Weight(t domain.EventType) float64 {
	if canonical, ok := weightAliases[t]; ok {
		t = canonical
	}
	if w, ok := baseWeights[t]; ok {
		return w
	}
	return defaultWeight
}

// Score computes the session risk score as a pure function of the ordered
// event log plus elapsed duration. It is recomputed from the full history
// on every new event and carries no incremental state.
//
// Steps: weighted base sum, frequency penalty, temporal pattern bonuses,
// clamp to [0,100].
func Score(events []domain.ViolationEvent, sessionStart, now time.Time) int {
	if len(events) == 0 {
		return 0
	}

	var base float64
	for _, e := range events {
		mult, ok := severityMultipliers[e.Severity]
		if !ok {
			mult = 1.0
		}
		base += Weight(e.Type) * mult
	}

	// Frequency penalty. A single event is never a burst, regardless of
	// how early in the session it lands.
	if len(events) >= 2 {
		minutes := now.Sub(sessionStart).Minutes()
		if minutes < 1 {
			minutes = 1
		}
		if float64(len(events))/minutes > frequencyThreshold {
			base *= frequencyMultiplier
		}
	}

	base += patternBonus(events)

	score := int(math.Round(base))
	if score > maxScore {
		return maxScore
	}
	if score < 0 {
		return 0
	}
	return score
}

// patternBonus scans the chronological log for violation clusters and
// severity escalations.
func patternBonus(events []domain.ViolationEvent) float64 {
	var bonus float64

	// Sliding triple window: three consecutive events spanning under 30s.
	for i := 2; i < len(events); i++ {
		if events[i].Timestamp.Sub(events[i-2].Timestamp) < clusterWindow {
			bonus += clusterBonus
		}
	}

	// Adjacent pairs where severity strictly increases.
	for i := 1; i < len(events); i++ {
		if events[i].Severity.Ordinal() > events[i-1].Severity.Ordinal() {
			bonus += escalationBonus
		}
	}

	return bonus
}

// Status thresholds for profile derivation.
const (
	warningScoreThreshold = 70
	warningCountThreshold = 10
)

// DeriveStatus maps a recomputed score onto the profile status. A session
// independently marked terminated or submitted keeps that status.
func DeriveStatus(current domain.SessionStatus, riskScore, violationCount int) domain.SessionStatus {
	if current.Closed() {
		return current
	}
	if riskScore >= warningScoreThreshold || violationCount >= warningCountThreshold {
		return domain.SessionWarning
	}
	return domain.SessionActive
}
