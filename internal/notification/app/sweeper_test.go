package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// --- Mocks ---

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(ctx context.Context, body *domain.MessageBody, recipients []*domain.MessageRecipient) error {
	args := m.Called(ctx, body, recipients)
	return args.Error(0)
}

func (m *MockMessageRepository) FindPendingOlderThan(ctx context.Context, scene domain.Scene, cutoff time.Time) ([]*domain.MessageRecipient, error) {
	args := m.Called(ctx, scene, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.MessageRecipient), args.Error(1)
}

func (m *MockMessageRepository) MarkExpired(ctx context.Context, recipientID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, recipientID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) AppendExpiryNotice(ctx context.Context, bodyID int64, notice string) error {
	args := m.Called(ctx, bodyID, notice)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, recipientID, receiverID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) MarkResolved(ctx context.Context, recipientID, receiverID int64, at time.Time) (bool, error) {
	args := m.Called(ctx, recipientID, receiverID, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockMessageRepository) ListForUser(ctx context.Context, receiverID int64, onlyUnread bool, limit, offset int) ([]*domain.InboxEntry, error) {
	args := m.Called(ctx, receiverID, onlyUnread, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.InboxEntry), args.Error(1)
}

func newSweeper(repo domain.MessageRepository) *Sweeper {
	return NewSweeper(repo, testLogger(), SweeperConfig{Interval: time.Hour, TTL: 72 * time.Hour})
}

// --- Tests ---

func TestSweeper_FreshRowsUntouched(t *testing.T) {
	repo := new(MockMessageRepository)
	repo.On("FindPendingOlderThan", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.MessageRecipient{}, nil)

	expired, err := newSweeper(repo).SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, expired)
	repo.AssertNotCalled(t, "MarkExpired", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweeper_ExpiresOverdueInvitation(t *testing.T) {
	repo := new(MockMessageRepository)

	row := &domain.MessageRecipient{
		ID:            10,
		MessageBodyID: 100,
		ReceiverID:    42,
		SceneCode:     domain.SceneProjectMemberInvited,
		TriggerTime:   time.Now().UTC().Add(-4 * 24 * time.Hour),
	}
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberInvited, mock.Anything).
		Return([]*domain.MessageRecipient{row}, nil).Once()
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberApply, mock.Anything).
		Return([]*domain.MessageRecipient{}, nil)
	repo.On("MarkExpired", mock.Anything, int64(10), mock.Anything).Return(true, nil).Once()
	repo.On("AppendExpiryNotice", mock.Anything, int64(100), mock.MatchedBy(func(notice string) bool {
		return strings.Contains(notice, "invitation has expired")
	})).Return(nil).Once()

	s := newSweeper(repo)
	expired, err := s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	// A second run finds the row no longer pending: no duplicate suffix.
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberInvited, mock.Anything).
		Return([]*domain.MessageRecipient{}, nil)
	expired, err = s.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)

	repo.AssertNumberOfCalls(t, "AppendExpiryNotice", 1)
}

func TestSweeper_SkipsRowResolvedBetweenScanAndWrite(t *testing.T) {
	repo := new(MockMessageRepository)

	row := &domain.MessageRecipient{
		ID:            10,
		MessageBodyID: 100,
		SceneCode:     domain.SceneProjectMemberApply,
		TriggerTime:   time.Now().UTC().Add(-5 * 24 * time.Hour),
	}
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberInvited, mock.Anything).
		Return([]*domain.MessageRecipient{}, nil)
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberApply, mock.Anything).
		Return([]*domain.MessageRecipient{row}, nil)
	// The optimistic re-check lost: the user resolved it after the scan.
	repo.On("MarkExpired", mock.Anything, int64(10), mock.Anything).Return(false, nil)

	expired, err := newSweeper(repo).SweepOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, expired)
	repo.AssertNotCalled(t, "AppendExpiryNotice", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweeper_FailureMidBatchDoesNotStopTheRest(t *testing.T) {
	repo := new(MockMessageRepository)

	rows := []*domain.MessageRecipient{
		{ID: 1, MessageBodyID: 101, SceneCode: domain.SceneProjectMemberInvited},
		{ID: 2, MessageBodyID: 102, SceneCode: domain.SceneProjectMemberInvited},
	}
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberInvited, mock.Anything).
		Return(rows, nil)
	repo.On("FindPendingOlderThan", mock.Anything, domain.SceneProjectMemberApply, mock.Anything).
		Return([]*domain.MessageRecipient{}, nil)
	repo.On("MarkExpired", mock.Anything, int64(1), mock.Anything).Return(false, errors.New("connection reset"))
	repo.On("MarkExpired", mock.Anything, int64(2), mock.Anything).Return(true, nil)
	repo.On("AppendExpiryNotice", mock.Anything, int64(102), mock.Anything).Return(nil)

	expired, err := newSweeper(repo).SweepOnce(context.Background())

	assert.Error(t, err)
	assert.Equal(t, 1, expired, "rows after the failed one are still processed")
}

// --- Race property on a stateful fake ---

// fakeRecipientStore mimics the repository's guarded transitions in memory.
type fakeRecipientStore struct {
	mu  sync.Mutex
	row domain.MessageRecipient
}

func (s *fakeRecipientStore) markExpired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.row.ReadFlag || s.row.Expired {
		return false
	}
	now := time.Now().UTC()
	s.row.Expired = true
	s.row.ExpiredAt = &now
	return true
}

func (s *fakeRecipientStore) markResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.row.ReadFlag || s.row.Expired {
		return false
	}
	now := time.Now().UTC()
	s.row.ReadFlag = true
	s.row.ReadAt = &now
	return true
}

// Concurrent user resolution and sweeper expiry must converge on exactly
// one terminal state.
func TestRecipientTerminalStateRace(t *testing.T) {
	for i := 0; i < 200; i++ {
		store := &fakeRecipientStore{}

		var expiredWon, resolvedWon bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); expiredWon = store.markExpired() }()
		go func() { defer wg.Done(); resolvedWon = store.markResolved() }()
		wg.Wait()

		assert.NotEqual(t, expiredWon, resolvedWon, "exactly one writer must win")
		assert.False(t, store.row.ReadFlag && store.row.Expired, "both terminal markers set")
		assert.Equal(t, store.row.ReadFlag, store.row.ReadAt != nil)
		assert.Equal(t, store.row.Expired, store.row.ExpiredAt != nil)
	}
}
