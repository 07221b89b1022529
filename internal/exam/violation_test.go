package exam

import (
	"testing"

	"github.com/examgate/examgate-backend/internal/model"
)

func TestEvaluateViolation(t *testing.T) {
	three := 3

	tests := []struct {
		name         string
		max          *int
		vType        model.ViolationType
		count        int
		wantAccepted bool
		wantBreached bool
	}{
		{name: "second switch below threshold", max: &three, vType: model.ViolationTabSwitch, count: 2, wantAccepted: true},
		{name: "third switch breaches", max: &three, vType: model.ViolationTabSwitch, count: 3, wantAccepted: true, wantBreached: true},
		{name: "fourth switch still breached", max: &three, vType: model.ViolationTabSwitch, count: 4, wantAccepted: true, wantBreached: true},
		{name: "no limit configured", max: nil, vType: model.ViolationTabSwitch, count: 50, wantAccepted: true},
		{name: "copy attempt never breaches", max: &three, vType: model.ViolationCopyAttempt, count: 10, wantAccepted: true},
		{name: "fullscreen exit never breaches", max: &three, vType: model.ViolationFullscreenExit, count: 10, wantAccepted: true},
		{name: "unknown type rejected", max: &three, vType: model.ViolationType("screenshot"), count: 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateViolation(model.SecuritySettings{MaxTabSwitches: tc.max}, tc.vType, tc.count)
			if got.Accepted != tc.wantAccepted {
				t.Errorf("accepted = %v, want %v", got.Accepted, tc.wantAccepted)
			}
			if got.ThresholdBreached != tc.wantBreached {
				t.Errorf("threshold_breached = %v, want %v", got.ThresholdBreached, tc.wantBreached)
			}
		})
	}
}
