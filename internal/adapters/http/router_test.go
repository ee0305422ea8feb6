package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

type runsFake struct {
	run *domain.CaseRun
	err error
}

func (f runsFake) GetRun(context.Context, string) (*domain.CaseRun, error) {
	return f.run, f.err
}

func (f runsFake) LatestRun(context.Context, string) (*domain.CaseRun, error) {
	return f.run, f.err
}

type budgetsFake struct {
	budget domain.CaseBudget
	err    error
}

func (f budgetsFake) GetBudget(context.Context, string) (domain.CaseBudget, error) {
	return f.budget, f.err
}

func TestHealthz(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestGetAnalysisMapsNotFoundTo404(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{
		err: domain.WrapError(domain.ErrNotFound, "load run", errors.New("run missing")),
	}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetAnalysisMapsContractViolationTo422(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{
		err: &domain.ValidationError{Stage: "pre:load", Field: "schema_version", Reason: "got 1.0, want 2.1", Kind: domain.ErrSchemaVersion},
	}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/analyses/run-1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", res.Code)
	}
}

func TestGetBudgetMapsExhaustionTo402WithAmounts(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{}, budgetsFake{
		err: &domain.BudgetExceededError{CaseID: "case-1", Phase: "findings", RequiredUSD: 0.03, RemainingUSD: 0.01},
	}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/case-1/budget", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", res.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["required_usd"] != 0.03 || payload["remaining_usd"] != 0.01 {
		t.Fatalf("amounts missing from error payload: %+v", payload)
	}
}

func TestGetBudgetReturnsLedgerView(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{}, budgetsFake{budget: domain.CaseBudget{
		CaseID:     "case-1",
		CeilingUSD: 5.0,
		SpentUSD:   1.25,
		Entries:    []domain.LedgerEntry{{Phase: "findings", CostUSD: 1.25}},
	}}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/case-1/budget", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var budget domain.CaseBudget
	if err := json.Unmarshal(res.Body.Bytes(), &budget); err != nil {
		t.Fatalf("decode budget: %v", err)
	}
	if budget.SpentUSD != 1.25 || len(budget.Entries) != 1 {
		t.Fatalf("budget = %+v", budget)
	}
}

func TestGetReport404WithoutReport(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{run: &domain.CaseRun{
		ID: "run-1", CaseID: "case-1", Status: domain.RunRunning,
	}}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/case-1/report", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestGetReportReturnsLatestReport(t *testing.T) {
	st, err := domain.NewInitialState("case-1", domain.CaseContext{})
	if err != nil {
		t.Fatalf("NewInitialState: %v", err)
	}
	st.Report = &domain.Report{
		Title:       "Insolvency audit report: case case-1",
		Summary:     "summary",
		GeneratedAt: time.Now().UTC(),
	}

	handler := NewRouter(nil, nil, runsFake{run: &domain.CaseRun{
		ID: "run-1", CaseID: "case-1", Status: domain.RunCompleted, State: st,
	}}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/cases/case-1/report", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var report domain.Report
	if err := json.Unmarshal(res.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Summary != "summary" {
		t.Fatalf("report = %+v", report)
	}
}

func TestUploadWithoutFileIs400(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/cases/case-1/documents", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestRequestIDIsEchoedBack(t *testing.T) {
	handler := NewRouter(nil, nil, runsFake{}, budgetsFake{}, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "client-supplied-id")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if got := res.Header().Get("X-Request-Id"); got != "client-supplied-id" {
		t.Fatalf("request id not echoed: %q", got)
	}
}
