package domain

import (
	"context"
	"time"

	"gymaccess/internal/models"
)

// MemberStore reads the membership view.
type MemberStore interface {
	FindMember(ctx context.Context, memberNo string) (*models.Member, error)
}

// DirectoryStore reads the gym provider directory.
type DirectoryStore interface {
	GetStates(ctx context.Context) ([]string, error)
	GetProvidersByState(ctx context.Context, state string) ([]string, error)
	ProviderExists(ctx context.Context, state, provider string) (bool, error)
}

// AccessLogStore is the append-only record of completed bookings.
type AccessLogStore interface {
	CountAccessesInWindow(ctx context.Context, memberNo string, start, end time.Time) (int, error)
	CountAccesses(ctx context.Context, memberNo string) (int, error)
	ReferenceExists(ctx context.Context, refID string) (bool, error)
	FindAccessLogByReference(ctx context.Context, refID string) (*models.AccessLogEntry, error)
	AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error
	GetAccessLogByDateRange(ctx context.Context, start, end time.Time) ([]*models.AccessLogEntry, error)
}

// AttemptRepository keeps transient booking attempts between requests.
type AttemptRepository interface {
	GetAttempt(ctx context.Context, id string) (*models.BookingAttempt, error)
	SaveAttempt(ctx context.Context, attempt *models.BookingAttempt) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// Notifier delivers a booking request to the operations contact.
type Notifier interface {
	Send(ctx context.Context, msg *models.Notification) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// SheetsWriter mirrors the access log into a spreadsheet.
type SheetsWriter interface {
	AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error
}

type SyncWorker interface {
	EnqueueAccessLog(ctx context.Context, entry *models.AccessLogEntry) error
}
