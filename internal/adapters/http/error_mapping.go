package httpadapter

import (
	"net/http"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrDocumentNotFound),
		domain.IsKind(err, domain.ErrRuleNotFound),
		domain.IsKind(err, domain.ErrFieldNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidTransition),
		domain.IsKind(err, domain.ErrDocumentBusy),
		domain.IsKind(err, domain.ErrStaleRule),
		domain.IsKind(err, domain.ErrStatusChanged):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrRuleNotBound),
		domain.IsKind(err, domain.ErrNoFeedback),
		domain.IsKind(err, domain.ErrNoCorrections):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var messageKinds = []error{
	domain.ErrDocumentNotFound,
	domain.ErrRuleNotFound,
	domain.ErrFieldNotFound,
	domain.ErrInvalidTransition,
	domain.ErrDocumentBusy,
	domain.ErrStaleRule,
	domain.ErrStatusChanged,
	domain.ErrRuleNotBound,
	domain.ErrNoFeedback,
	domain.ErrNoCorrections,
	domain.ErrTemporary,
}

// errorMessage answers with the kind text for known failures and the full chain otherwise.
func errorMessage(err error, status int) string {
	if status == http.StatusBadRequest {
		return err.Error()
	}
	for _, kind := range messageKinds {
		if domain.IsKind(err, kind) {
			return kind.Error()
		}
	}
	return err.Error()
}
