package scoring

import (
	"testing"
	"time"

	"github.com/examguard/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func event(t domain.EventType, sev domain.Severity, offset time.Duration) domain.ViolationEvent {
	return domain.ViolationEvent{
		ID:        uuid.New(),
		SessionID: uuid.New(),
		Type:      t,
		Severity:  sev,
		Timestamp: testStart.Add(offset),
	}
}

func TestScore_EmptyLogIsZero(t *testing.T) {
	assert.Equal(t, 0, Score(nil, testStart, testStart.Add(time.Hour)))
	assert.Equal(t, 0, Score([]domain.ViolationEvent{}, testStart, testStart))
}

func TestScore_SingleTabSwitch(t *testing.T) {
	// weight 5 x critical multiplier 2.0 = 10; a lone event gets no
	// frequency or pattern bonus.
	events := []domain.ViolationEvent{
		event(domain.EventTabSwitch, domain.SeverityCritical, time.Minute),
	}
	assert.Equal(t, 10, Score(events, testStart, testStart.Add(5*time.Minute)))
}

func TestScore_TenGazeAwayClampsAt100(t *testing.T) {
	// 10 x 8 x 1.0 = 80 base; 10 events / 10 minutes = 1.0 > 0.5 so the
	// burst multiplier lifts it to 120, clamped to 100.
	events := make([]domain.ViolationEvent, 0, 10)
	for i := 0; i < 10; i++ {
		events = append(events, event(domain.EventGazeAway, domain.SeverityWarning, time.Duration(i)*time.Minute))
	}
	assert.Equal(t, 100, Score(events, testStart, testStart.Add(10*time.Minute)))
}

func TestScore_Deterministic(t *testing.T) {
	events := []domain.ViolationEvent{
		event(domain.EventTabSwitch, domain.SeverityCritical, 0),
		event(domain.EventCopyPaste, domain.SeverityWarning, 40*time.Second),
		event(domain.EventDevToolsOpen, domain.SeverityCritical, 3*time.Minute),
	}
	now := testStart.Add(20 * time.Minute)
	first := Score(events, testStart, now)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, Score(events, testStart, now))
	}
}

func TestScore_ClusterBonus(t *testing.T) {
	tests := []struct {
		name    string
		offsets []time.Duration
		bonus   float64
	}{
		{"three within 30s", []time.Duration{0, 10 * time.Second, 29 * time.Second}, 10},
		{"30s boundary is exclusive", []time.Duration{0, 15 * time.Second, 30 * time.Second}, 0},
		{"spread out", []time.Duration{0, 15 * time.Second, 31 * time.Second}, 0},
		{"two overlapping triples", []time.Duration{0, 5 * time.Second, 10 * time.Second, 15 * time.Second}, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make([]domain.ViolationEvent, 0, len(tt.offsets))
			for _, off := range tt.offsets {
				// Same severity throughout so no escalation bonus interferes.
				events = append(events, event(domain.EventRightClick, domain.SeverityWarning, off))
			}
			assert.InDelta(t, tt.bonus, patternBonus(events), 0.001)
		})
	}
}

func TestScore_EscalationBonus(t *testing.T) {
	tests := []struct {
		name       string
		severities []domain.Severity
		bonus      float64
	}{
		{"info to warning", []domain.Severity{domain.SeverityInfo, domain.SeverityWarning}, 5},
		{"critical to info", []domain.Severity{domain.SeverityCritical, domain.SeverityInfo}, 0},
		{"full escalation", []domain.Severity{domain.SeverityInfo, domain.SeverityWarning, domain.SeverityCritical}, 10},
		{"flat", []domain.Severity{domain.SeverityWarning, domain.SeverityWarning}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make([]domain.ViolationEvent, 0, len(tt.severities))
			for i, sev := range tt.severities {
				// One minute apart so no cluster bonus interferes.
				events = append(events, event(domain.EventRightClick, sev, time.Duration(i)*time.Minute))
			}
			assert.InDelta(t, tt.bonus, patternBonus(events), 0.001)
		})
	}
}

func TestScore_AlwaysInRange(t *testing.T) {
	// Pile up critical heavy hitters in a tight burst; the clamp holds.
	events := make([]domain.ViolationEvent, 0, 40)
	for i := 0; i < 40; i++ {
		events = append(events, event(domain.EventDevToolsOpen, domain.SeverityCritical, time.Duration(i)*time.Second))
	}
	got := Score(events, testStart, testStart.Add(time.Minute))
	assert.Equal(t, 100, got)
}

func TestWeight_UnknownTypeDefaultsToOne(t *testing.T) {
	assert.Equal(t, float64(1), Weight("telepathy_detected"))
	assert.Equal(t, float64(1), Weight(domain.EventFullscreenExit))
}

func TestWeight_Aliases(t *testing.T) {
	assert.Equal(t, float64(10), Weight("face_not_detected"))
	assert.Equal(t, float64(8), Weight("look_away_extended"))
}

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name    string
		current domain.SessionStatus
		score   int
		count   int
		want    domain.SessionStatus
	}{
		{"calm session stays active", domain.SessionActive, 30, 3, domain.SessionActive},
		{"score threshold", domain.SessionActive, 70, 3, domain.SessionWarning},
		{"count threshold", domain.SessionActive, 10, 10, domain.SessionWarning},
		{"terminated is sticky", domain.SessionTerminated, 0, 0, domain.SessionTerminated},
		{"submitted is sticky", domain.SessionSubmitted, 95, 30, domain.SessionSubmitted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.current, tt.score, tt.count))
		})
	}
}
