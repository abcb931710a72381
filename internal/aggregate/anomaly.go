package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/examguard/platform/internal/domain"
)

const (
	excessiveViolationsMin = 15
	frequentTabSwitchMin   = 8
	highRiskScoreMin       = 80
	spikeWindow            = 10 * time.Minute
	spikeEventsMin         = 20
)

// detectAnomalies runs the per-student and exam-wide heuristics over one
// snapshot. Results are ordered by confidence descending and capped so a
// chaotic exam cannot flood the dashboard.
func detectAnomalies(profiles []domain.SessionRiskProfile, events []domain.ViolationEvent, now time.Time) []domain.AnomalyRecord {
	var out []domain.AnomalyRecord

	for _, p := range profiles {
		if p.ViolationCount > excessiveViolationsMin {
			out = append(out, domain.AnomalyRecord{
				Type:        domain.AnomalyExcessiveViolations,
				SubjectID:   p.StudentID,
				Description: fmt.Sprintf("%d violations recorded in a single session", p.ViolationCount),
				Confidence:  capConfidence(60+p.ViolationCount*2, 95),
			})
		}
		if p.TabSwitchCount > frequentTabSwitchMin {
			out = append(out, domain.AnomalyRecord{
				Type:        domain.AnomalyFrequentTabSwitch,
				SubjectID:   p.StudentID,
				Description: fmt.Sprintf("%d tab switches during the exam", p.TabSwitchCount),
				Confidence:  capConfidence(50+p.TabSwitchCount*3, 90),
			})
		}
		if p.RiskScore > highRiskScoreMin {
			out = append(out, domain.AnomalyRecord{
				Type:        domain.AnomalyHighRisk,
				SubjectID:   p.StudentID,
				Description: fmt.Sprintf("risk score %d exceeds the high-risk ceiling", p.RiskScore),
				Confidence:  p.RiskScore,
			})
		}
	}

	if spike := countRecent(events, now); spike > spikeEventsMin {
		out = append(out, domain.AnomalyRecord{
			Type:        domain.AnomalyViolationSpike,
			Description: fmt.Sprintf("%d violations across the exam in the last %s", spike, spikeWindow),
			Confidence:  capConfidence(50+spike, 95),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > MaxAnomalies {
		out = out[:MaxAnomalies]
	}
	return out
}

func countRecent(events []domain.ViolationEvent, now time.Time) int {
	cutoff := now.Add(-spikeWindow)
	n := 0
	for _, e := range events {
		if e.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

func capConfidence(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}

// flagBehaviors turns a session's counters into human-readable flags for
// the student summary.
func flagBehaviors(p domain.SessionRiskProfile, byType map[domain.EventType]int) []string {
	var flags []string
	if p.TabSwitchCount > 5 {
		flags = append(flags, fmt.Sprintf("frequent tab switching (%d times)", p.TabSwitchCount))
	}
	if byType[domain.EventFaceMismatch] > 0 {
		flags = append(flags, "possible identity mismatch detected by face verification")
	}
	if byType[domain.EventMultipleFaces] > 0 {
		flags = append(flags, "multiple people detected on camera")
	}
	if n := byType[domain.EventNoFace]; n > 2 {
		flags = append(flags, fmt.Sprintf("candidate repeatedly absent from camera (%d times)", n))
	}
	if byType[domain.EventDevToolsOpen] > 0 {
		flags = append(flags, "browser developer tools opened")
	}
	if n := byType[domain.EventCopyPaste]; n > 2 {
		flags = append(flags, fmt.Sprintf("repeated clipboard use (%d times)", n))
	}
	if byType[domain.EventMultipleVoices] > 0 {
		flags = append(flags, "multiple voices detected on microphone")
	}
	return flags
}

// recommend maps a risk profile to proctor follow-up actions.
func recommend(p domain.SessionRiskProfile) []string {
	var recs []string
	switch {
	case p.Status == domain.SessionTerminated:
		recs = append(recs, "session was terminated automatically; review the full violation log before any regrade")
	case p.RiskScore >= 80:
		recs = append(recs, "review the session recording and consider invalidating the attempt")
	case p.RiskScore >= HighRiskThreshold:
		recs = append(recs, "schedule a manual review of this session")
	case p.ViolationCount > 0:
		recs = append(recs, "no action required; violations are within normal range")
	default:
		recs = append(recs, "clean session; no violations recorded")
	}
	if p.CriticalCount > 0 && p.Status != domain.SessionTerminated {
		recs = append(recs, fmt.Sprintf("inspect the %d critical violations individually", p.CriticalCount))
	}
	return recs
}
