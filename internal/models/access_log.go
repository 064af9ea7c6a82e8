package models

import "time"

// AccessLogEntry is one completed booking. Entries are append-only.
type AccessLogEntry struct {
	ID          int64     `json:"id"`
	MemberID    string    `json:"member_id"`
	MemberName  string    `json:"member_name"`
	AccessDate  time.Time `json:"access_date"`
	AccessCount int       `json:"access_count"`
	Gym         string    `json:"gym"`
	ReferenceID string    `json:"reference_id"`
}

// QuotaStatus is the result of evaluating a member's usage in the current period.
type QuotaStatus struct {
	Available   bool       `json:"available"`
	Used        int        `json:"used"`
	Limit       int        `json:"limit"`
	Period      PeriodKind `json:"period"`
	WindowStart time.Time  `json:"window_start"`
	WindowEnd   time.Time  `json:"window_end"`
}
