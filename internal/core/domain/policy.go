package domain

// Call policy decision reasons. The NO_RESPONSE reason carries the upstream
// detail after the colon.
const (
	ReasonOK                   = "OK"
	ReasonInsufficientEvidence = "INSUFFICIENT_EVIDENCE"
	ReasonBudgetExceeded       = "BUDGET_EXCEEDED"
	ReasonNoEvidence           = "NO_EVIDENCE"
	reasonNoResponsePrefix     = "NO_RESPONSE: "
)

// CallSignals are the inputs to the paid-call policy decision.
type CallSignals struct {
	HasEvidence          bool
	EvidenceInsufficient bool
	NoResponseReason     string
	BudgetAvailable      bool
}

// CallDecision is the policy outcome. Degraded signals downstream stages to
// produce a best-effort non-model-backed result instead of failing the run.
type CallDecision struct {
	Allow    bool
	Reason   string
	Degraded bool
}

// DecideCall maps evidence and budget signals to an allow/deny decision.
// The precedence is fixed, first match wins:
//
//  1. evidence explicitly insufficient
//  2. upstream no-response reason present
//  3. budget unavailable
//  4. no evidence at all
//  5. allow
func DecideCall(s CallSignals) CallDecision {
	switch {
	case s.EvidenceInsufficient:
		return CallDecision{Allow: false, Reason: ReasonInsufficientEvidence, Degraded: true}
	case s.NoResponseReason != "":
		return CallDecision{Allow: false, Reason: reasonNoResponsePrefix + s.NoResponseReason, Degraded: true}
	case !s.BudgetAvailable:
		return CallDecision{Allow: false, Reason: ReasonBudgetExceeded, Degraded: true}
	case !s.HasEvidence:
		return CallDecision{Allow: false, Reason: ReasonNoEvidence, Degraded: true}
	default:
		return CallDecision{Allow: true, Reason: ReasonOK}
	}
}
