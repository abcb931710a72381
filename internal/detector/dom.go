package detector

import (
	"context"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/signal"
)

// evalDOM maps browser signals 1:1 onto violation types.
func (d *Detector) evalDOM(ctx context.Context, sig signal.Signal, st *sessionState) error {
	var (
		eventType   domain.EventType
		severity    domain.Severity
		description string
	)

	switch sig.DOM.Kind {
	case signal.DOMVisibilityHidden:
		eventType, severity, description = domain.EventTabSwitch, domain.SeverityCritical, "candidate switched away from the exam tab"
	case signal.DOMWindowBlurred:
		eventType, severity, description = domain.EventWindowBlur, domain.SeverityWarning, "exam window lost focus"
	case signal.DOMFullscreenExited:
		eventType, severity, description = domain.EventFullscreenExit, domain.SeverityCritical, "candidate exited fullscreen mode"
	case signal.DOMContextMenu:
		eventType, severity, description = domain.EventRightClick, domain.SeverityInfo, "context menu attempted"
	case signal.DOMKeyCombo:
		switch sig.DOM.Combo {
		case signal.ComboCopy, signal.ComboPaste, signal.ComboCut, signal.ComboSelect:
			eventType, severity, description = domain.EventCopyPaste, domain.SeverityWarning, "clipboard shortcut: "+string(sig.DOM.Combo)
		case signal.ComboF12, signal.ComboInspect:
			eventType, severity, description = domain.EventDevToolsOpen, domain.SeverityCritical, "developer tools shortcut: "+string(sig.DOM.Combo)
		default:
			return nil
		}
	default:
		return nil
	}

	emitted, err := d.emit(ctx, sig, st, eventType, severity, description)
	if err != nil {
		return err
	}
	if emitted && eventType == domain.EventTabSwitch {
		st.tabSwitches++
	}
	return nil
}
