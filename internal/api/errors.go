package api

import (
	"errors"
	"net/http"

	"gymaccess/internal/models"
)

var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrInputMissing, http.StatusBadRequest, "input_missing"},
	{models.ErrSelectionMissing, http.StatusBadRequest, "selection_missing"},
	{models.ErrNotEligible, http.StatusNotFound, "not_eligible"},
	{models.ErrAttemptNotFound, http.StatusNotFound, "attempt_not_found"},
	{models.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{models.ErrAttemptBusy, http.StatusConflict, "attempt_busy"},
	{models.ErrNotConfirmed, http.StatusConflict, "not_confirmed"},
	{models.ErrQuotaExceeded, http.StatusUnprocessableEntity, "quota_exceeded"},
	{models.ErrUnknownProvider, http.StatusUnprocessableEntity, "unknown_provider"},
	{models.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{models.ErrNotificationFailure, http.StatusBadGateway, "notification_failure"},
	{models.ErrLookupFailure, http.StatusBadGateway, "lookup_failure"},
	{models.ErrUnsupportedPeriod, http.StatusInternalServerError, "unsupported_period"},
	{models.ErrStoreFailure, http.StatusInternalServerError, "store_failure"},
}

// classifyError maps booking errors to an HTTP status and a stable code.
// The first matching sentinel wins.
func classifyError(err error) (int, string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status, e.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
