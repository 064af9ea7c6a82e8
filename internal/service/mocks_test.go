package service

import (
	"context"
	"io"
	"sync"
	"time"

	"gymaccess/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type mockMemberStore struct {
	mock.Mock
}

func (m *mockMemberStore) FindMember(ctx context.Context, memberNo string) (*models.Member, error) {
	args := m.Called(ctx, memberNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Member), args.Error(1)
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) GetStates(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDirectory) GetProvidersByState(ctx context.Context, state string) ([]string, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockDirectory) ProviderExists(ctx context.Context, state, provider string) (bool, error) {
	args := m.Called(ctx, state, provider)
	return args.Bool(0), args.Error(1)
}

type mockAccessLog struct {
	mock.Mock
}

func (m *mockAccessLog) CountAccessesInWindow(ctx context.Context, memberNo string, start, end time.Time) (int, error) {
	args := m.Called(ctx, memberNo, start, end)
	return args.Int(0), args.Error(1)
}

func (m *mockAccessLog) CountAccesses(ctx context.Context, memberNo string) (int, error) {
	args := m.Called(ctx, memberNo)
	return args.Int(0), args.Error(1)
}

func (m *mockAccessLog) ReferenceExists(ctx context.Context, refID string) (bool, error) {
	args := m.Called(ctx, refID)
	return args.Bool(0), args.Error(1)
}

func (m *mockAccessLog) FindAccessLogByReference(ctx context.Context, refID string) (*models.AccessLogEntry, error) {
	args := m.Called(ctx, refID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AccessLogEntry), args.Error(1)
}

func (m *mockAccessLog) AppendAccessLog(ctx context.Context, entry *models.AccessLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAccessLog) GetAccessLogByDateRange(ctx context.Context, start, end time.Time) ([]*models.AccessLogEntry, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AccessLogEntry), args.Error(1)
}

// recordingNotifier captures every message and fails while err is set.
// afterSend runs once a message has been accepted.
type recordingNotifier struct {
	mu        sync.Mutex
	sent      []*models.Notification
	err       error
	afterSend func()
}

func (n *recordingNotifier) Send(_ context.Context, msg *models.Notification) error {
	n.mu.Lock()
	if n.err != nil {
		n.mu.Unlock()
		return n.err
	}
	n.sent = append(n.sent, msg)
	after := n.afterSend
	n.mu.Unlock()

	if after != nil {
		after()
	}
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) PublishJSON(eventType string, _ interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	return nil
}
