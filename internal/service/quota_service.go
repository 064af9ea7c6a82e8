package service

import (
	"context"
	"fmt"
	"time"

	"gymaccess/internal/domain"
	"gymaccess/internal/metrics"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

// QuotaService counts a member's bookings in the current period.
type QuotaService struct {
	accessLog domain.AccessLogStore
	location  *time.Location
	now       func() time.Time
	logger    *zerolog.Logger
}

func NewQuotaService(accessLog domain.AccessLogStore, location *time.Location, logger *zerolog.Logger) *QuotaService {
	if location == nil {
		location = time.UTC
	}
	return &QuotaService{
		accessLog: accessLog,
		location:  location,
		now:       time.Now,
		logger:    logger,
	}
}

// PeriodWindow returns the half-open window [start, end) containing now in loc.
// Weekly windows start on Monday 00:00, monthly windows on the 1st at 00:00.
func PeriodWindow(now time.Time, period models.PeriodKind, loc *time.Location) (start, end time.Time, err error) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	switch period {
	case models.PeriodWeekly:
		// Monday = 0
		offset := (int(local.Weekday()) + 6) % 7
		start = midnight.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		end = start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %q", models.ErrUnsupportedPeriod, period)
	}
	return start, end, nil
}

// Evaluate reports whether the member may book once more in the current period.
// The period kind is matched case-insensitively.
func (s *QuotaService) Evaluate(ctx context.Context, memberID string, limit int, periodKind string) (*models.QuotaStatus, error) {
	period, err := models.ParsePeriodKind(periodKind)
	if err != nil {
		s.logger.Error().Err(err).Str("member_id", memberID).Msg("invalid access period configured")
		return nil, err
	}

	start, end, err := PeriodWindow(s.now(), period, s.location)
	if err != nil {
		return nil, err
	}

	used, err := s.accessLog.CountAccessesInWindow(ctx, memberID, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStoreFailure, err)
	}

	status := &models.QuotaStatus{
		Available:   used < limit,
		Used:        used,
		Limit:       limit,
		Period:      period,
		WindowStart: start,
		WindowEnd:   end,
	}
	metrics.IncQuotaCheck(string(period), status.Available)

	s.logger.Debug().
		Str("member_id", memberID).
		Str("period", string(period)).
		Int("used", used).
		Int("limit", limit).
		Bool("available", status.Available).
		Msg("quota evaluated")
	return status, nil
}

// EvaluateMember evaluates the quota configured on the member record.
func (s *QuotaService) EvaluateMember(ctx context.Context, member *models.Member) (*models.QuotaStatus, error) {
	return s.Evaluate(ctx, member.ID, member.AccessLimit, member.AccessType)
}
