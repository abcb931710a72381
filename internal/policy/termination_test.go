package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateTermination_BelowAllThresholds(t *testing.T) {
	decision := EvaluateTermination(DefaultTerminationPolicy(), 84, 24, 4)
	assert.False(t, decision.Terminated)
	assert.Empty(t, decision.Reason)
}

func TestEvaluateTermination_RiskScoreThreshold(t *testing.T) {
	decision := EvaluateTermination(DefaultTerminationPolicy(), 85, 3, 0)
	assert.True(t, decision.Terminated)
	assert.Contains(t, decision.Reason, "risk score 85")
}

func TestEvaluateTermination_CriticalCeiling(t *testing.T) {
	decision := EvaluateTermination(DefaultTerminationPolicy(), 40, 8, 5)
	assert.True(t, decision.Terminated)
	assert.Contains(t, decision.Reason, "critical violation count")
}

func TestEvaluateTermination_ViolationCeiling(t *testing.T) {
	decision := EvaluateTermination(DefaultTerminationPolicy(), 40, 25, 2)
	assert.True(t, decision.Terminated)
	assert.Contains(t, decision.Reason, "violation count 25")
}

func TestEvaluateTermination_DisabledThresholdsNeverFire(t *testing.T) {
	decision := EvaluateTermination(TerminationPolicy{}, 100, 500, 50)
	assert.False(t, decision.Terminated)
}
