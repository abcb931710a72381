package detector

import (
	"context"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/signal"
)

// Band thresholds for the multiple-voices heuristic. Applied only when the
// overall mean energy clears Config.AudioEnergyMean.
const (
	lowBandMin  = 30
	midBandMin  = 40
	highBandMin = 20
)

// evalAudio applies the voice heuristic to one frequency-band window.
func (d *Detector) evalAudio(ctx context.Context, sig signal.Signal, st *sessionState) error {
	bands := sig.Audio.EnergyBands
	if len(bands) == 0 {
		return nil
	}

	if mean(bands) <= d.cfg.AudioEnergyMean {
		return nil
	}

	third := len(bands) / 3
	if third == 0 {
		return nil
	}
	low := mean(bands[:third])
	mid := mean(bands[third : 2*third])
	high := mean(bands[2*third:])

	if low > lowBandMin && mid > midBandMin && high > highBandMin {
		if _, err := d.emit(ctx, sig, st, domain.EventMultipleVoices, domain.SeverityCritical, "multiple voices detected"); err != nil {
			return err
		}
	}
	return nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// evalMediaError records the single informational system_error event for a
// failed camera or microphone acquisition. The session keeps running on
// DOM-only signals.
func (d *Detector) evalMediaError(ctx context.Context, sig signal.Signal, st *sessionState) error {
	if st.mediaErrSent {
		return nil
	}
	st.mediaErrSent = true
	_, err := d.emit(ctx, sig, st, domain.EventSystemError, domain.SeverityInfo, "media capability unavailable: "+sig.Err.Error())
	return err
}
