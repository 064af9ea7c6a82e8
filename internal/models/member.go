package models

import (
	"fmt"
	"strings"
)

// PeriodKind is the recurring window over which a member's access limit resets.
type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
)

// ParsePeriodKind normalizes the access type column of the membership view.
// Unknown values are rejected rather than defaulted.
func ParsePeriodKind(raw string) (PeriodKind, error) {
	switch PeriodKind(strings.ToLower(strings.TrimSpace(raw))) {
	case PeriodWeekly:
		return PeriodWeekly, nil
	case PeriodMonthly:
		return PeriodMonthly, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedPeriod, raw)
	}
}

// Member is an eligible plan enrollee as resolved from the membership view.
type Member struct {
	ID             string `json:"member_id" yaml:"member_no"`
	Name           string `json:"name" yaml:"name"`
	Email          string `json:"email" yaml:"email"`
	ClientName     string `json:"client_name" yaml:"client_name"`
	ClientPolicyID string `json:"client_policy_id" yaml:"client_policy_id"`
	PlanType       string `json:"plan_type" yaml:"plan_type"`
	GymAccess      string `json:"gym_access" yaml:"gym_access"`
	MemberType     string `json:"member_type" yaml:"member_type"`
	AccessLimit    int    `json:"access_limit" yaml:"access_limit"`
	AccessType     string `json:"access_type" yaml:"access_type"`
}

// Period returns the parsed access period of the member.
func (m *Member) Period() (PeriodKind, error) {
	return ParsePeriodKind(m.AccessType)
}
