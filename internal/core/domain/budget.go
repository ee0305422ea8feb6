package domain

import "time"

// spendEpsilon absorbs float drift when comparing accumulated USD amounts
// against the ceiling.
const spendEpsilon = 1e-9

// CaseBudget is the cost-governance record for one case: a hard ceiling, a
// running spent total and the append-only entry history. Spent only moves
// through ledger entry recording; there is no direct mutation path.
type CaseBudget struct {
	CaseID     string        `json:"case_id"`
	CeilingUSD float64       `json:"ceiling_usd"`
	SpentUSD   float64       `json:"spent_usd"`
	Entries    []LedgerEntry `json:"entries"`
}

func (b CaseBudget) RemainingUSD() float64 {
	remaining := b.CeilingUSD - b.SpentUSD
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CanSpend reports whether spending amount more stays within the ceiling.
func (b CaseBudget) CanSpend(amountUSD float64) bool {
	return b.SpentUSD+amountUSD <= b.CeilingUSD+spendEpsilon
}

// LedgerEntry is one immutable record of actual cost incurred, tied to the
// pricing assumptions active at call time so historical entries stay
// reproducible after pricing updates.
type LedgerEntry struct {
	Phase              string    `json:"phase"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	InputTokens        int       `json:"input_tokens"`
	OutputTokens       int       `json:"output_tokens"`
	CostUSD            float64   `json:"cost_usd"`
	TraceID            string    `json:"trace_id"`
	PricingVersion     string    `json:"pricing_version"`
	PricingFingerprint string    `json:"pricing_fingerprint"`
	RecordedAt         time.Time `json:"recorded_at"`
}
