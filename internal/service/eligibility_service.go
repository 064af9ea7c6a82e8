package service

import (
	"context"
	"fmt"
	"strings"

	"gymaccess/internal/domain"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// EligibilityService resolves a member id against the membership view.
type EligibilityService struct {
	members domain.MemberStore
	logger  *zerolog.Logger
}

func NewEligibilityService(members domain.MemberStore, logger *zerolog.Logger) *EligibilityService {
	return &EligibilityService{
		members: members,
		logger:  logger,
	}
}

// Lookup returns the member record or ErrInputMissing, ErrNotEligible or
// ErrLookupFailure. A failed query is never reported as ineligible.
func (s *EligibilityService) Lookup(ctx context.Context, memberID string) (*models.Member, error) {
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return nil, models.ErrInputMissing
	}

	member, err := s.members.FindMember(ctx, memberID)
	if err != nil {
		s.logger.Error().Err(err).Str("member_id", memberID).Msg("membership lookup failed")
		return nil, fmt.Errorf("%w: %w", models.ErrLookupFailure, err)
	}
	if member == nil {
		s.logger.Info().Str("member_id", memberID).Msg("member not eligible")
		return nil, fmt.Errorf("%w: %s", models.ErrNotEligible, memberID)
	}

	return member, nil
}
