package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gymaccess/internal/domain"
	"gymaccess/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverAttemptRepository serves from the primary store and switches to the
// fallback on the first primary error, probing the primary again once a minute.
// A canceled or expired caller context is returned as is and never trips failover.
type FailoverAttemptRepository struct {
	primary   domain.AttemptRepository
	fallback  domain.AttemptRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverAttemptRepository(primary, fallback domain.AttemptRepository, logger *zerolog.Logger) *FailoverAttemptRepository {
	return &FailoverAttemptRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// callerGone reports errors caused by the caller's context rather than the store.
func callerGone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (r *FailoverAttemptRepository) markDown(err error) {
	r.logger.Error().Err(err).Msg("Primary attempt repository failed, falling back to memory")
	r.isDown.Store(true)
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}

// shouldProbe reports whether the primary is down long enough to be retried.
func (r *FailoverAttemptRepository) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

// usePrimary decides whether a call goes to the primary store.
func (r *FailoverAttemptRepository) usePrimary() bool {
	return !r.isDown.Load() || r.shouldProbe()
}

func (r *FailoverAttemptRepository) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("Primary attempt repository recovered")
	}
}

func (r *FailoverAttemptRepository) GetAttempt(ctx context.Context, id string) (*models.BookingAttempt, error) {
	if r.usePrimary() {
		attempt, err := r.primary.GetAttempt(ctx, id)
		if err == nil {
			r.recovered()
			return attempt, nil
		}
		if callerGone(err) {
			return nil, err
		}
		r.markDown(err)
	}

	return r.fallback.GetAttempt(ctx, id)
}

func (r *FailoverAttemptRepository) SaveAttempt(ctx context.Context, attempt *models.BookingAttempt) error {
	if r.usePrimary() {
		err := r.primary.SaveAttempt(ctx, attempt)
		if err == nil {
			r.recovered()
			return nil
		}
		if callerGone(err) {
			return err
		}
		r.markDown(err)
	}

	return r.fallback.SaveAttempt(ctx, attempt)
}

func (r *FailoverAttemptRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		if callerGone(err) {
			return false, err
		}
		r.markDown(err)
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverAttemptRepository) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if r.usePrimary() {
		ok, err := r.primary.AcquireLock(ctx, key, ttl)
		if err == nil {
			r.recovered()
			return ok, nil
		}
		if callerGone(err) {
			return false, err
		}
		r.markDown(err)
	}

	return r.fallback.AcquireLock(ctx, key, ttl)
}

func (r *FailoverAttemptRepository) ReleaseLock(ctx context.Context, key string) error {
	if r.usePrimary() {
		err := r.primary.ReleaseLock(ctx, key)
		if err == nil {
			r.recovered()
			return nil
		}
		if callerGone(err) {
			return err
		}
		r.markDown(err)
	}

	return r.fallback.ReleaseLock(ctx, key)
}
