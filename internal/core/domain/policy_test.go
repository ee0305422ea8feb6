package domain

import "testing"

func TestDecideCallPrecedence(t *testing.T) {
	tests := []struct {
		name       string
		signals    CallSignals
		wantAllow  bool
		wantReason string
	}{
		{
			name:       "all clear",
			signals:    CallSignals{HasEvidence: true, BudgetAvailable: true},
			wantAllow:  true,
			wantReason: ReasonOK,
		},
		{
			name:       "insufficient evidence wins over everything",
			signals:    CallSignals{HasEvidence: true, EvidenceInsufficient: true, NoResponseReason: "timeout", BudgetAvailable: false},
			wantAllow:  false,
			wantReason: ReasonInsufficientEvidence,
		},
		{
			name:       "no-response wins over budget",
			signals:    CallSignals{HasEvidence: true, NoResponseReason: "upstream timeout", BudgetAvailable: false},
			wantAllow:  false,
			wantReason: "NO_RESPONSE: upstream timeout",
		},
		{
			name:       "budget wins over no evidence",
			signals:    CallSignals{HasEvidence: false, BudgetAvailable: false},
			wantAllow:  false,
			wantReason: ReasonBudgetExceeded,
		},
		{
			name:       "no evidence is the last deny",
			signals:    CallSignals{HasEvidence: false, BudgetAvailable: true},
			wantAllow:  false,
			wantReason: ReasonNoEvidence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideCall(tt.signals)
			if got.Allow != tt.wantAllow {
				t.Fatalf("allow = %v, want %v", got.Allow, tt.wantAllow)
			}
			if got.Reason != tt.wantReason {
				t.Fatalf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Allow && got.Degraded {
				t.Fatalf("allowed decision must not be degraded")
			}
			if !got.Allow && !got.Degraded {
				t.Fatalf("denied decision must be degraded")
			}
		})
	}
}
