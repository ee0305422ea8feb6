package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/insolvia/case-audit/internal/core/domain"
	"github.com/insolvia/case-audit/internal/core/ports"
	"github.com/insolvia/case-audit/internal/core/usecase"
)

type Router struct {
	uploadUC *usecase.UploadDocumentUseCase
	startUC  *usecase.StartAnalysisUseCase
	runs     ports.RunReader
	budgets  ports.BudgetReader
	metrics  http.Handler
}

func NewRouter(
	uploadUC *usecase.UploadDocumentUseCase,
	startUC *usecase.StartAnalysisUseCase,
	runs ports.RunReader,
	budgets ports.BudgetReader,
	metricsHandler http.Handler,
) *Router {
	return &Router{
		uploadUC: uploadUC,
		startUC:  startUC,
		runs:     runs,
		budgets:  budgets,
		metrics:  metricsHandler,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/cases/{caseID}/documents", rt.uploadDocument)
	mux.HandleFunc("POST /v1/cases/{caseID}/analyses", rt.startAnalysis)
	mux.HandleFunc("GET /v1/cases/{caseID}/analyses/latest", rt.latestAnalysis)
	mux.HandleFunc("GET /v1/cases/{caseID}/report", rt.getReport)
	mux.HandleFunc("GET /v1/cases/{caseID}/budget", rt.getBudget)
	mux.HandleFunc("GET /v1/analyses/{runID}", rt.getAnalysis)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics)
	}
	return requestIDMiddleware(accessLogMiddleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	caseID := r.PathValue("caseID")

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	docType := strings.TrimSpace(r.FormValue("doc_type"))
	if docType == "" {
		docType = "other"
	}

	doc, err := rt.uploadUC.Upload(
		r.Context(),
		caseID,
		docType,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) startAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := rt.startUC.Start(r.Context(), r.PathValue("caseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := rt.runs.GetRun(r.Context(), r.PathValue("runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) latestAnalysis(w http.ResponseWriter, r *http.Request) {
	run, err := rt.runs.LatestRun(r.Context(), r.PathValue("caseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request) {
	run, err := rt.runs.LatestRun(r.Context(), r.PathValue("caseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if run.State == nil || run.State.Report == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no report available for this case yet"})
		return
	}
	writeJSON(w, http.StatusOK, run.State.Report)
}

func (rt *Router) getBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := rt.budgets.GetBudget(r.Context(), r.PathValue("caseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, budget)
}

func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	payload := map[string]any{"error": err.Error()}

	var budgetErr *domain.BudgetExceededError
	if errors.As(err, &budgetErr) {
		payload["required_usd"] = budgetErr.RequiredUSD
		payload["remaining_usd"] = budgetErr.RemainingUSD
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
