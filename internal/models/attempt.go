package models

import (
	"fmt"
	"strings"
	"time"
)

// AttemptStatus is the lifecycle stage of a booking attempt.
type AttemptStatus string

const (
	AttemptSelecting  AttemptStatus = "selecting"
	AttemptConfirming AttemptStatus = "confirming"
	AttemptValidating AttemptStatus = "validating"
	AttemptNotifying  AttemptStatus = "notifying"
	AttemptCommitting AttemptStatus = "committing"
	AttemptConfirmed  AttemptStatus = "confirmed"
	AttemptRejected   AttemptStatus = "rejected"
	AttemptFailed     AttemptStatus = "failed"
)

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptSelecting:  {AttemptConfirming},
	AttemptConfirming: {AttemptConfirming, AttemptValidating},
	AttemptValidating: {AttemptRejected, AttemptNotifying, AttemptFailed},
	AttemptNotifying:  {AttemptCommitting, AttemptFailed},
	AttemptCommitting: {AttemptConfirmed, AttemptFailed},
}

// Terminal reports whether no further transition is allowed.
func (s AttemptStatus) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptRejected || s == AttemptFailed
}

// CanTransition reports whether moving from s to next is part of the lifecycle.
func (s AttemptStatus) CanTransition(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BookingAttempt carries one booking interaction from provider selection to
// its terminal state. It is owned by a single interaction and never shared.
type BookingAttempt struct {
	ID          string        `json:"id"`
	Member      Member        `json:"member"`
	Status      AttemptStatus `json:"status"`
	State       string        `json:"state,omitempty"`
	Provider    string        `json:"provider,omitempty"`
	ReferenceID string        `json:"reference_id,omitempty"`
	BookedAt    time.Time     `json:"booked_at,omitempty"`
	UsedCount   int           `json:"used_count"`
	Notified    bool          `json:"notified"`
	FailReason  string        `json:"fail_reason,omitempty"`
	EntryID     int64         `json:"entry_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// Transition moves the attempt to next or returns ErrInvalidTransition.
func (a *BookingAttempt) Transition(next AttemptStatus, at time.Time) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = at
	return nil
}

// Select records the chosen state and provider. Re-selecting is allowed
// until the booking is triggered.
func (a *BookingAttempt) Select(state, provider string, at time.Time) error {
	state = strings.TrimSpace(state)
	provider = strings.TrimSpace(provider)
	if state == "" || provider == "" {
		return ErrSelectionMissing
	}
	if err := a.Transition(AttemptConfirming, at); err != nil {
		return err
	}
	a.State = state
	a.Provider = provider
	return nil
}

// Receipt is the durable proof of booking shown to the member.
type Receipt struct {
	AttemptID   string    `json:"attempt_id"`
	ReferenceID string    `json:"reference_id"`
	Provider    string    `json:"provider"`
	State       string    `json:"state"`
	BookedAt    time.Time `json:"booked_at"`
	BookedAtStr string    `json:"booked_at_formatted"`
}

// Receipt returns the booking receipt of a confirmed attempt.
func (a *BookingAttempt) Receipt() (*Receipt, bool) {
	if a.Status != AttemptConfirmed {
		return nil, false
	}
	return &Receipt{
		AttemptID:   a.ID,
		ReferenceID: a.ReferenceID,
		Provider:    a.Provider,
		State:       a.State,
		BookedAt:    a.BookedAt,
		BookedAtStr: a.BookedAt.Format(ReceiptTimeLayout),
	}, true
}
