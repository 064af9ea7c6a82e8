package models

import (
	"errors"
	"fmt"
)

var (
	ErrInputMissing        = errors.New("member id is required")
	ErrNotEligible         = errors.New("member is not eligible for gym access")
	ErrQuotaExceeded       = errors.New("gym access limit reached")
	ErrLookupFailure       = errors.New("membership lookup failed")
	ErrStoreFailure        = errors.New("access log store failure")
	ErrNotificationFailure = errors.New("booking notification failed")
	ErrUnsupportedPeriod   = errors.New("unsupported access type")
	ErrInvalidTransition   = errors.New("invalid booking attempt transition")
	ErrAttemptNotFound     = errors.New("booking attempt not found")
	ErrUnknownProvider     = errors.New("provider not listed for state")
	ErrSelectionMissing    = errors.New("state and provider are required")
	ErrNotConfirmed        = errors.New("booking attempt is not confirmed")
	ErrAttemptBusy         = errors.New("booking attempt is already being confirmed")
	ErrRateLimited         = errors.New("too many booking attempts")
)

// QuotaExceededError restates the limit and period that was reached.
type QuotaExceededError struct {
	Limit  int
	Period PeriodKind
	Used   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("you have reached your maximum gym access limit of %d times per %s; please try again in the next %s period",
		e.Limit, e.Period, e.Period)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
