package repository

import (
	"context"
	"sync"
	"time"

	"gymaccess/internal/models"
)

// MemoryAttemptRepository is the in-process fallback when Redis is unavailable.
type MemoryAttemptRepository struct {
	mu         sync.Mutex
	attempts   map[string]memoryAttempt
	rateLimits map[string]*rateLimitEntry
	locks      map[string]time.Time
	ttl        time.Duration
	now        func() time.Time
}

type memoryAttempt struct {
	attempt   models.BookingAttempt
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryAttemptRepository(ttl time.Duration) *MemoryAttemptRepository {
	return &MemoryAttemptRepository{
		attempts:   make(map[string]memoryAttempt),
		rateLimits: make(map[string]*rateLimitEntry),
		locks:      make(map[string]time.Time),
		ttl:        ttl,
		now:        time.Now,
	}
}

// GetAttempt returns a copy so callers never share state through the map.
func (r *MemoryAttemptRepository) GetAttempt(_ context.Context, id string) (*models.BookingAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.attempts[id]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(stored.expiresAt) {
		delete(r.attempts, id)
		return nil, nil
	}
	attempt := stored.attempt
	return &attempt, nil
}

func (r *MemoryAttemptRepository) SaveAttempt(_ context.Context, attempt *models.BookingAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts[attempt.ID] = memoryAttempt{
		attempt:   *attempt,
		expiresAt: r.now().Add(r.ttl),
	}
	return nil
}

func (r *MemoryAttemptRepository) CheckRateLimit(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[key]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
		r.rateLimits[key] = entry
	} else {
		entry.count++
	}

	return entry.count <= limit, nil
}

func (r *MemoryAttemptRepository) AcquireLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if expiresAt, held := r.locks[key]; held && now.Before(expiresAt) {
		return false, nil
	}
	r.locks[key] = now.Add(ttl)
	return true, nil
}

func (r *MemoryAttemptRepository) ReleaseLock(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.locks, key)
	return nil
}
