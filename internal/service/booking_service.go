package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymaccess/internal/domain"
	"gymaccess/internal/events"
	"gymaccess/internal/metrics"
	"gymaccess/internal/models"
	"gymaccess/internal/notify"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingOptions configures the booking coordinator.
type BookingOptions struct {
	OperationsEmail   string
	SubjectPrefix     string
	Location          *time.Location
	AttemptRateLimit  int
	AttemptRateWindow time.Duration
	ConfirmLockTTL    time.Duration
}

// BookingService drives a BookingAttempt from selection to a terminal state:
// re-check quota, draw a reference id, notify operations, append to the access log.
type BookingService struct {
	eligibility *EligibilityService
	quota       *QuotaService
	directory   *DirectoryService
	references  *ReferenceGenerator
	accessLog   domain.AccessLogStore
	attempts    domain.AttemptRepository
	notifier    domain.Notifier
	eventBus    domain.EventPublisher
	opts        BookingOptions
	now         func() time.Time
	newID       func() string
	logger      *zerolog.Logger
}

func NewBookingService(
	eligibility *EligibilityService,
	quota *QuotaService,
	directory *DirectoryService,
	references *ReferenceGenerator,
	accessLog domain.AccessLogStore,
	attempts domain.AttemptRepository,
	notifier domain.Notifier,
	eventBus domain.EventPublisher,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.AttemptRateLimit <= 0 {
		opts.AttemptRateLimit = models.DefaultAttemptRateLimit
	}
	if opts.AttemptRateWindow <= 0 {
		opts.AttemptRateWindow = models.DefaultAttemptRateWindow * time.Second
	}
	if opts.ConfirmLockTTL <= 0 {
		opts.ConfirmLockTTL = models.DefaultConfirmLockTTL * time.Second
	}
	return &BookingService{
		eligibility: eligibility,
		quota:       quota,
		directory:   directory,
		references:  references,
		accessLog:   accessLog,
		attempts:    attempts,
		notifier:    notifier,
		eventBus:    eventBus,
		opts:        opts,
		now:         time.Now,
		newID:       func() string { return uuid.NewString() },
		logger:      logger,
	}
}

// CheckEligibility resolves the member and evaluates the current quota
// without opening an attempt.
func (s *BookingService) CheckEligibility(ctx context.Context, memberID string) (*models.Member, *models.QuotaStatus, error) {
	member, err := s.eligibility.Lookup(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	status, err := s.quota.EvaluateMember(ctx, member)
	if err != nil {
		return member, nil, err
	}
	return member, status, nil
}

// Begin opens an attempt in Selecting for an eligible member with quota left.
func (s *BookingService) Begin(ctx context.Context, memberID string) (*models.BookingAttempt, *models.QuotaStatus, error) {
	member, status, err := s.CheckEligibility(ctx, memberID)
	if err != nil {
		return nil, status, err
	}

	allowed, err := s.attempts.CheckRateLimit(ctx, "attempt:"+member.ID, s.opts.AttemptRateLimit, s.opts.AttemptRateWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("member_id", member.ID).Msg("attempt rate limit check failed")
	} else if !allowed {
		return nil, status, models.ErrRateLimited
	}

	if !status.Available {
		return nil, status, &models.QuotaExceededError{Limit: status.Limit, Period: status.Period, Used: status.Used}
	}

	now := s.now()
	attempt := &models.BookingAttempt{
		ID:        s.newID(),
		Member:    *member,
		Status:    models.AttemptSelecting,
		UsedCount: status.Used,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return nil, status, fmt.Errorf("save attempt: %w", err)
	}

	s.logger.Info().Str("attempt_id", attempt.ID).Str("member_id", member.ID).Int("used", status.Used).Msg("booking attempt opened")
	return attempt, status, nil
}

// Get returns an attempt by id.
func (s *BookingService) Get(ctx context.Context, attemptID string) (*models.BookingAttempt, error) {
	attempt, err := s.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("load attempt: %w", err)
	}
	if attempt == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrAttemptNotFound, attemptID)
	}
	return attempt, nil
}

// Select records the state and provider; allowed again until Confirm is called.
func (s *BookingService) Select(ctx context.Context, attemptID, state, provider string) (*models.BookingAttempt, error) {
	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if err := s.directory.ValidateSelection(ctx, state, provider); err != nil {
		return nil, err
	}
	if err := attempt.Select(state, provider, s.now()); err != nil {
		return nil, err
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("save attempt: %w", err)
	}
	return attempt, nil
}

// Receipt re-reads the receipt of a confirmed attempt. It never notifies or
// persists anything.
func (s *BookingService) Receipt(ctx context.Context, attemptID string) (*models.Receipt, error) {
	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	receipt, ok := attempt.Receipt()
	if !ok {
		return nil, fmt.Errorf("%w: status %s", models.ErrNotConfirmed, attempt.Status)
	}
	return receipt, nil
}

// Confirm runs the booking. A confirmed attempt returns its stored receipt;
// rejected or failed attempts cannot be retried. An attempt left in Notifying
// or Committing by an earlier call resumes with its reference id instead of
// drawing a new one.
func (s *BookingService) Confirm(ctx context.Context, attemptID string) (*models.Receipt, error) {
	lockKey := "confirm:" + attemptID
	locked, err := s.attempts.AcquireLock(ctx, lockKey, s.opts.ConfirmLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire confirm lock: %w", err)
	}
	if !locked {
		return nil, models.ErrAttemptBusy
	}
	defer func() {
		if err := s.attempts.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn().Err(err).Str("attempt_id", attemptID).Msg("release confirm lock failed")
		}
	}()

	attempt, err := s.Get(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if receipt, ok := attempt.Receipt(); ok {
		return receipt, nil
	}

	log := s.logger.With().Str("attempt_id", attempt.ID).Str("member_id", attempt.Member.ID).Logger()

	switch attempt.Status {
	case models.AttemptNotifying, models.AttemptCommitting:
		return s.resume(ctx, attempt, &log)
	}

	if err := attempt.Transition(models.AttemptValidating, s.now()); err != nil {
		return nil, err
	}

	status, err := s.quota.EvaluateMember(ctx, &attempt.Member)
	if err != nil {
		return nil, s.fail(ctx, attempt, err)
	}
	attempt.UsedCount = status.Used
	if !status.Available {
		return nil, s.reject(ctx, attempt, status)
	}

	if err := attempt.Transition(models.AttemptNotifying, s.now()); err != nil {
		return nil, err
	}

	ref, err := s.references.Generate(ctx)
	if err != nil {
		return nil, s.fail(ctx, attempt, fmt.Errorf("generate reference: %w", err))
	}
	attempt.ReferenceID = ref
	attempt.BookedAt = s.now().In(s.opts.Location)

	// the reference must be durable before anyone is told about it
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		return nil, s.fail(ctx, attempt, fmt.Errorf("%w: save notifying attempt: %w", models.ErrStoreFailure, err))
	}

	return s.notifyAndCommit(ctx, attempt, &log)
}

// resume finishes an attempt interrupted after its reference was drawn.
// The access log is the source of truth: an entry carrying the reference
// means the booking already happened.
func (s *BookingService) resume(ctx context.Context, attempt *models.BookingAttempt, log *zerolog.Logger) (*models.Receipt, error) {
	entry, err := s.accessLog.FindAccessLogByReference(ctx, attempt.ReferenceID)
	if err != nil {
		return nil, fmt.Errorf("%w: find entry %s: %w", models.ErrStoreFailure, attempt.ReferenceID, err)
	}

	log.Info().Str("reference_id", attempt.ReferenceID).Str("status", string(attempt.Status)).
		Bool("notified", attempt.Notified).Bool("entry_found", entry != nil).Msg("resuming booking attempt")

	switch {
	case entry != nil:
		return s.finish(ctx, attempt, entry, log)
	case !attempt.Notified:
		return s.notifyAndCommit(ctx, attempt, log)
	default:
		return s.commit(ctx, attempt, log)
	}
}

func (s *BookingService) notifyAndCommit(ctx context.Context, attempt *models.BookingAttempt, log *zerolog.Logger) (*models.Receipt, error) {
	msg, err := notify.Compose(s.opts.OperationsEmail, s.opts.SubjectPrefix, notify.BookingRequest{
		MemberID:    attempt.Member.ID,
		MemberName:  attempt.Member.Name,
		MemberEmail: attempt.Member.Email,
		ClientName:  attempt.Member.ClientName,
		State:       attempt.State,
		Provider:    attempt.Provider,
		ReferenceID: attempt.ReferenceID,
		BookedAt:    attempt.BookedAt.Format(models.ReceiptTimeLayout),
	})
	if err != nil {
		return nil, s.fail(ctx, attempt, fmt.Errorf("%w: %w", models.ErrNotificationFailure, err))
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		log.Error().Err(err).Str("reference_id", attempt.ReferenceID).Msg("booking notification failed")
		return nil, s.fail(ctx, attempt, fmt.Errorf("%w: %w", models.ErrNotificationFailure, err))
	}
	attempt.Notified = true

	return s.commit(ctx, attempt, log)
}

// commit appends the access log entry. Operations has been notified at this
// point, so the request context no longer governs the outcome.
func (s *BookingService) commit(ctx context.Context, attempt *models.BookingAttempt, log *zerolog.Logger) (*models.Receipt, error) {
	ctx = context.WithoutCancel(ctx)

	if attempt.Status != models.AttemptCommitting {
		if err := attempt.Transition(models.AttemptCommitting, s.now()); err != nil {
			return nil, err
		}
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		log.Warn().Err(err).Str("reference_id", attempt.ReferenceID).Msg("save committing attempt failed")
	}

	entry := &models.AccessLogEntry{
		MemberID:    attempt.Member.ID,
		MemberName:  attempt.Member.Name,
		AccessDate:  s.now(),
		Gym:         attempt.Provider,
		ReferenceID: attempt.ReferenceID,
	}
	if err := s.accessLog.AppendAccessLog(ctx, entry); err != nil {
		// The notification already went out; operations must reconcile by reference id.
		log.Error().Err(err).Str("reference_id", attempt.ReferenceID).Msg("access log append failed after notification")
		return nil, s.fail(ctx, attempt, fmt.Errorf("%w: %w", models.ErrStoreFailure, err))
	}

	return s.finish(ctx, attempt, entry, log)
}

// finish marks the attempt Confirmed once its entry exists. The receipt is
// only handed out after the Confirmed state is stored.
func (s *BookingService) finish(ctx context.Context, attempt *models.BookingAttempt, entry *models.AccessLogEntry, log *zerolog.Logger) (*models.Receipt, error) {
	ctx = context.WithoutCancel(ctx)

	if attempt.Status == models.AttemptNotifying {
		if err := attempt.Transition(models.AttemptCommitting, s.now()); err != nil {
			return nil, err
		}
	}
	attempt.Notified = true
	attempt.EntryID = entry.ID
	if err := attempt.Transition(models.AttemptConfirmed, s.now()); err != nil {
		return nil, err
	}
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		log.Error().Err(err).Str("reference_id", attempt.ReferenceID).Msg("save confirmed attempt failed")
		return nil, fmt.Errorf("%w: save confirmed attempt: %w", models.ErrStoreFailure, err)
	}

	metrics.IncBooking(string(models.AttemptConfirmed))
	s.publish(events.EventBookingConfirmed, attempt, entry.AccessCount, "")
	log.Info().Str("reference_id", attempt.ReferenceID).Int("access_count", entry.AccessCount).Str("provider", attempt.Provider).Msg("booking confirmed")

	receipt, _ := attempt.Receipt()
	return receipt, nil
}

func (s *BookingService) reject(ctx context.Context, attempt *models.BookingAttempt, status *models.QuotaStatus) error {
	cause := &models.QuotaExceededError{Limit: status.Limit, Period: status.Period, Used: status.Used}
	if err := attempt.Transition(models.AttemptRejected, s.now()); err != nil {
		return err
	}
	attempt.FailReason = cause.Error()
	if err := s.attempts.SaveAttempt(ctx, attempt); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", attempt.ID).Msg("save rejected attempt failed")
	}

	metrics.IncBooking(string(models.AttemptRejected))
	s.publish(events.EventBookingRejected, attempt, 0, cause.Error())
	s.logger.Info().Str("attempt_id", attempt.ID).Str("member_id", attempt.Member.ID).Int("used", status.Used).Msg("booking rejected: quota reached")
	return cause
}

func (s *BookingService) fail(ctx context.Context, attempt *models.BookingAttempt, cause error) error {
	if err := attempt.Transition(models.AttemptFailed, s.now()); err != nil {
		return errors.Join(cause, err)
	}
	attempt.FailReason = cause.Error()
	if err := s.attempts.SaveAttempt(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Error().Err(err).Str("attempt_id", attempt.ID).Msg("save failed attempt failed")
	}

	metrics.IncBooking(string(models.AttemptFailed))
	s.publish(events.EventBookingFailed, attempt, 0, cause.Error())
	return cause
}

func (s *BookingService) publish(eventType string, attempt *models.BookingAttempt, accessCount int, reason string) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		AttemptID:   attempt.ID,
		MemberID:    attempt.Member.ID,
		MemberName:  attempt.Member.Name,
		State:       attempt.State,
		Provider:    attempt.Provider,
		ReferenceID: attempt.ReferenceID,
		EntryID:     attempt.EntryID,
		AccessCount: accessCount,
		Status:      string(attempt.Status),
		Reason:      reason,
		OccurredAt:  attempt.UpdatedAt,
	}

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("attempt_id", attempt.ID).Msg("publish event error")
	}
}
