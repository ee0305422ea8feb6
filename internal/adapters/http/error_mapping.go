package httpadapter

import (
	"net/http"

	"github.com/insolvia/case-audit/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrSchemaVersion),
		domain.IsKind(err, domain.ErrUnknownField),
		domain.IsKind(err, domain.ErrRequiredField),
		domain.IsKind(err, domain.ErrFieldType):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrAccessViolation):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrBudgetExceeded):
		return http.StatusPaymentRequired
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
