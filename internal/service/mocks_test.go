package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"realtime_go/internal/domain"
	"realtime_go/internal/presence"
)

// Repository mocks shared by the service tests.

type MockUserRepo struct {
	mock.Mock
}

func (m *MockUserRepo) Create(ctx context.Context, u *domain.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepo) ListActive(ctx context.Context, offset, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepo) UpdateLastSeen(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) Create(ctx context.Context, c *domain.Conversation, members []*domain.Membership) error {
	args := m.Called(ctx, c, members)
	return args.Error(0)
}

func (m *MockConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) FindDirect(ctx context.Context, userA, userB int64) (*domain.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Conversation, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Conversation), args.Error(1)
}

func (m *MockConversationRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockMembershipRepo struct {
	mock.Mock
}

func (m *MockMembershipRepo) Add(ctx context.Context, mem *domain.Membership) error {
	args := m.Called(ctx, mem)
	return args.Error(0)
}

func (m *MockMembershipRepo) Remove(ctx context.Context, conversationID, userID int64) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *MockMembershipRepo) Get(ctx context.Context, conversationID, userID int64) (*domain.Membership, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Membership), args.Error(1)
}

func (m *MockMembershipRepo) List(ctx context.Context, conversationID int64) ([]*domain.Membership, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Membership), args.Error(1)
}

func (m *MockMembershipRepo) SetRole(ctx context.Context, conversationID, userID int64, role domain.Role) error {
	args := m.Called(ctx, conversationID, userID, role)
	return args.Error(0)
}

type MockMessageRepo struct {
	mock.Mock
}

func (m *MockMessageRepo) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) UpdateContent(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepo) SoftDelete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMessageRepo) ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, conversationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockMessageRepo) ListUnreadIDs(ctx context.Context, conversationID, userID int64) ([]int64, error) {
	args := m.Called(ctx, conversationID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockReadMarkRepo struct {
	mock.Mock
}

func (m *MockReadMarkRepo) Get(ctx context.Context, messageID, userID int64) (*domain.ReadMark, error) {
	args := m.Called(ctx, messageID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReadMark), args.Error(1)
}

func (m *MockReadMarkRepo) Upsert(ctx context.Context, mark *domain.ReadMark) error {
	args := m.Called(ctx, mark)
	return args.Error(0)
}

func (m *MockReadMarkRepo) SetStarred(ctx context.Context, messageID, userID int64, starred bool) error {
	args := m.Called(ctx, messageID, userID, starred)
	return args.Error(0)
}

type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepo) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepo) ExistsRecent(ctx context.Context, typ domain.NotificationType, senderID, recipientID int64, relatedID *int64, since time.Time) (bool, error) {
	args := m.Called(ctx, typ, senderID, recipientID, relatedID, since)
	return args.Bool(0), args.Error(1)
}

func (m *MockNotificationRepo) ListForRecipient(ctx context.Context, recipientID int64, limit int) ([]*domain.Notification, error) {
	args := m.Called(ctx, recipientID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Notification), args.Error(1)
}

func (m *MockNotificationRepo) MarkRead(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationRepo) MarkAllRead(ctx context.Context, recipientID int64) error {
	args := m.Called(ctx, recipientID)
	return args.Error(0)
}

func (m *MockNotificationRepo) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationRepo) CountUnread(ctx context.Context, recipientID int64) (int, error) {
	args := m.Called(ctx, recipientID)
	return args.Int(0), args.Error(1)
}

// testRepos bundles fresh mocks for one test case.
type testRepos struct {
	users   *MockUserRepo
	convs   *MockConversationRepo
	members *MockMembershipRepo
	msgs    *MockMessageRepo
	marks   *MockReadMarkRepo
	notifs  *MockNotificationRepo
}

func newTestRepos() *testRepos {
	return &testRepos{
		users:   new(MockUserRepo),
		convs:   new(MockConversationRepo),
		members: new(MockMembershipRepo),
		msgs:    new(MockMessageRepo),
		marks:   new(MockReadMarkRepo),
		notifs:  new(MockNotificationRepo),
	}
}

func (r *testRepos) bundle() *domain.Repositories {
	return &domain.Repositories{
		Users:         r.users,
		Conversations: r.convs,
		Memberships:   r.members,
		Messages:      r.msgs,
		ReadMarks:     r.marks,
		Notifications: r.notifs,
	}
}

// recordingSink collects pushed events so tests can assert on fanout.
type recordingSink struct {
	mu     sync.Mutex
	events []any
}

func (s *recordingSink) Send(ctx context.Context, event any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) all() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]any, len(s.events))
	copy(out, s.events)
	return out
}

// connectUser attaches a recording sink for the user and returns it.
func connectUser(reg *presence.Registry, userID int64) *recordingSink {
	sink := &recordingSink{}
	reg.Connect(userID, sink)
	return sink
}
