package service_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"travelmate/internal/domain"
	"travelmate/internal/presence"
	"travelmate/internal/store/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stores struct {
	messages      *sqlite.MessageRepo
	notifications *sqlite.NotificationRepo
}

func newStores(t *testing.T) stores {
	t.Helper()
	db, err := sqlite.Open(sqlite.DSN(filepath.Join(t.TempDir(), "svc.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, sqlite.Migrate(db))
	return stores{
		messages:      sqlite.NewMessageRepo(db),
		notifications: sqlite.NewNotificationRepo(db),
	}
}

// recorder is a connection handle that keeps everything it is sent.
type recorder struct {
	id string

	mu  sync.Mutex
	got []domain.Event
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(ev domain.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, ev)
	return true
}

func (r *recorder) events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.got...)
}

func (r *recorder) ofType(typ string) []domain.Event {
	var out []domain.Event
	for _, ev := range r.events() {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func connect(t *testing.T, reg *presence.Registry, userID, connID string) *recorder {
	t.Helper()
	c := &recorder{id: connID}
	reg.Register(userID, c)
	t.Cleanup(func() { reg.Unregister(userID, c) })
	return c
}

// MockMessageRepo mocks domain.MessageRepository
type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) GetByClientID(ctx context.Context, senderID, clientID string) (*domain.Message, error) {
	args := m.Called(ctx, senderID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) ListBetween(ctx context.Context, a, b string, page domain.Page) ([]*domain.Message, error) {
	args := m.Called(ctx, a, b, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) MarkConversationRead(ctx context.Context, readerID, otherUserID string, readAt time.Time) (int, error) {
	args := m.Called(ctx, readerID, otherUserID, readAt)
	return args.Int(0), args.Error(1)
}

func (m *MockMessageRepo) ListConversations(ctx context.Context, userID string) ([]*domain.ConversationSummary, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ConversationSummary), args.Error(1)
}

// MockNotificationRepo mocks domain.NotificationRepository
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepo) ListForRecipient(ctx context.Context, recipientID string, page domain.Page) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipientID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepo) MarkRead(ctx context.Context, recipientID, id string) error {
	args := m.Called(ctx, recipientID, id)
	return args.Error(0)
}

func (m *MockNotificationRepo) MarkAllRead(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationRepo) Delete(ctx context.Context, recipientID, id string) error {
	args := m.Called(ctx, recipientID, id)
	return args.Error(0)
}

func (m *MockNotificationRepo) DeleteAll(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

func (m *MockNotificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

type stubProfiles struct {
	profiles map[string]domain.Profile
	err      error
}

func (s stubProfiles) GetProfiles(_ context.Context, ids []string) (map[string]domain.Profile, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]domain.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type stubContacts map[string][]string

func (s stubContacts) ListContacts(_ context.Context, userID string) ([]string, error) {
	return s[userID], nil
}
