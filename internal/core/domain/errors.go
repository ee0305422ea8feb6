package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrTemporary    = errors.New("temporary failure")

	// State-contract violations. Always fatal to the run.
	ErrSchemaVersion = errors.New("schema version mismatch")
	ErrUnknownField  = errors.New("unknown field")
	ErrRequiredField = errors.New("required field missing")
	ErrFieldType     = errors.New("invalid field type")

	// FinOps violations.
	ErrBudgetExceeded  = errors.New("budget exceeded")
	ErrPricingTable    = errors.New("pricing table")
	ErrFinOpsBypass    = errors.New("finops bypass")
	ErrAccessViolation = errors.New("access violation")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError carries the stage, the offending field path and the exact
// reason for a state-contract violation. It is never downgraded to a warning.
type ValidationError struct {
	Stage  string
	Field  string
	Reason string
	Kind   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("state validation failed at %s: field %q: %s", e.Stage, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return ErrRequiredField
}

// BudgetExceededError is raised by the gate before any provider call when the
// estimated cost does not fit the remaining case budget.
type BudgetExceededError struct {
	CaseID       string
	Phase        string
	RequiredUSD  float64
	RemainingUSD float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf(
		"budget exceeded for case %s in phase %s: required %.6f USD, remaining %.6f USD",
		e.CaseID, e.Phase, e.RequiredUSD, e.RemainingUSD,
	)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// AccessViolationError signals cross-case data leakage caught by the
// defensive scope filter.
type AccessViolationError struct {
	RequestingCase string
	FoundCase      string
	Resource       string
}

func (e *AccessViolationError) Error() string {
	return fmt.Sprintf(
		"access violation: case %s received %s belonging to case %s",
		e.RequestingCase, e.Resource, e.FoundCase,
	)
}

func (e *AccessViolationError) Unwrap() error { return ErrAccessViolation }
