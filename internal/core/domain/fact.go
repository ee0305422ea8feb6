package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Fact is the deduplication unit for risk observations, persisted separately
// from the run state. Two observations of the same underlying event collapse
// onto one row via the fingerprint; confidence never decreases on collision
// and every contributing document stays attached as evidence.
type Fact struct {
	ID           string         `json:"id"`
	CaseID       string         `json:"case_id"`
	FactType     string         `json:"fact_type"`
	Date         string         `json:"date"`
	AmountEUR    float64        `json:"amount_eur"`
	Counterparty string         `json:"counterparty"`
	Confidence   float64        `json:"confidence"`
	Fingerprint  string         `json:"fingerprint"`
	Evidence     []FactEvidence `json:"evidence"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// FactFingerprint hashes the normalized identity tuple. Normalization keeps
// the fingerprint stable across source documents: case and whitespace folded,
// amount rounded to cents.
func FactFingerprint(caseID, factType, date string, amountEUR float64, counterparty string) string {
	parts := []string{
		normalizeFingerprintField(caseID),
		normalizeFingerprintField(factType),
		normalizeFingerprintField(date),
		strconv.FormatFloat(amountEUR, 'f', 2, 64),
		normalizeFingerprintField(counterparty),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func normalizeFingerprintField(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(v))), " ")
}

// Observation projects the fact into the run state.
func (f *Fact) Observation() FactObservation {
	return FactObservation{
		Fingerprint:  f.Fingerprint,
		FactType:     f.FactType,
		Date:         f.Date,
		AmountEUR:    f.AmountEUR,
		Counterparty: f.Counterparty,
		Confidence:   f.Confidence,
		Evidence:     append([]FactEvidence{}, f.Evidence...),
	}
}
