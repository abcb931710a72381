package policy

import "fmt"

// TerminationPolicy defines the cutoffs that force-submit a session.
type TerminationPolicy struct {
	RiskScoreMax      int `json:"risk_score_max"`      // terminate at or above
	CriticalCountMax  int `json:"critical_count_max"`  // hard ceiling on critical events
	ViolationCountMax int `json:"violation_count_max"` // hard ceiling on total events
}

// DefaultTerminationPolicy returns the production thresholds: risk score 85,
// five critical events, or twenty-five violations overall.
func DefaultTerminationPolicy() TerminationPolicy {
	return TerminationPolicy{
		RiskScoreMax:      85,
		CriticalCountMax:  5,
		ViolationCountMax: 25,
	}
}

// TerminationDecision holds the evaluated outcome.
type TerminationDecision struct {
	Terminated bool   `json:"terminated"`
	Reason     string `json:"reason,omitempty"`
}

// EvaluateTermination checks the freshly recomputed risk figures against the
// policy. Called synchronously after every ingested event.
func EvaluateTermination(policy TerminationPolicy, riskScore, violationCount, criticalCount int) TerminationDecision {
	if policy.RiskScoreMax > 0 && riskScore >= policy.RiskScoreMax {
		return TerminationDecision{
			Terminated: true,
			Reason:     fmt.Sprintf("risk score %d reached termination threshold %d", riskScore, policy.RiskScoreMax),
		}
	}
	if policy.CriticalCountMax > 0 && criticalCount >= policy.CriticalCountMax {
		return TerminationDecision{
			Terminated: true,
			Reason:     fmt.Sprintf("critical violation count %d reached ceiling %d", criticalCount, policy.CriticalCountMax),
		}
	}
	if policy.ViolationCountMax > 0 && violationCount >= policy.ViolationCountMax {
		return TerminationDecision{
			Terminated: true,
			Reason:     fmt.Sprintf("violation count %d reached ceiling %d", violationCount, policy.ViolationCountMax),
		}
	}
	return TerminationDecision{Terminated: false}
}
