package exam

import (
	"github.com/examgate/examgate-backend/internal/model"
)

// ViolationDecision is the outcome of evaluating one reported violation.
// The policy only reports; the caller decides whether to auto-submit, so
// escalation rules can change without touching detection bookkeeping.
type ViolationDecision struct {
	Accepted          bool
	ThresholdBreached bool
}

// EvaluateViolation classifies a violation against the config's security
// settings. tabSwitchCount must already include the event being evaluated.
// Only tab_switch events count toward MaxTabSwitches; everything else is
// recorded for audit and never breaches.
func EvaluateViolation(security model.SecuritySettings, vType model.ViolationType, tabSwitchCount int) ViolationDecision {
	if !model.ValidViolationType(vType) {
		return ViolationDecision{}
	}

	decision := ViolationDecision{Accepted: true}
	if vType != model.ViolationTabSwitch {
		return decision
	}

	if security.MaxTabSwitches != nil && tabSwitchCount >= *security.MaxTabSwitches {
		decision.ThresholdBreached = true
	}
	return decision
}
