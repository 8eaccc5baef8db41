package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// MockMemberRepository is a mock implementation of MemberRepository for testing
type MockMemberRepository struct {
	mock.Mock
}

func (m *MockMemberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) GetByName(ctx context.Context, name string) (*domain.Member, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Member), args.Error(1)
}

func (m *MockMemberRepository) Create(ctx context.Context, member *domain.Member) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Member), args.Error(1)
}

// MockAttemptRepository is a mock implementation of AttemptRepository for testing
type MockAttemptRepository struct {
	mock.Mock
}

func (m *MockAttemptRepository) Create(ctx context.Context, attempt *domain.Attempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockAttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) Resolve(ctx context.Context, id uuid.UUID, to domain.AttemptState, settled int64, resolvedAt time.Time) (bool, error) {
	args := m.Called(ctx, id, to, settled, resolvedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockAttemptRepository) ListOverduePending(ctx context.Context, now time.Time) ([]*domain.Attempt, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Attempt), args.Error(1)
}

func (m *MockAttemptRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*domain.Attempt, error) {
	args := m.Called(ctx, memberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Attempt), args.Error(1)
}

// MockLedgerRepository is a mock implementation of LedgerRepository for testing
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Balance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	args := m.Called(ctx, memberID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) Adjust(ctx context.Context, memberID uuid.UUID, delta int64, kind domain.TransactionKind) (int64, error) {
	args := m.Called(ctx, memberID, delta, kind)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SettleSucceeded(ctx context.Context, attempt *domain.Attempt, settled, floor int64) (bool, error) {
	args := m.Called(ctx, attempt, settled, floor)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) ListEntries(ctx context.Context, memberID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	args := m.Called(ctx, memberID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LedgerEntry), args.Error(1)
}

// MockDefenseRepository is a mock implementation of DefenseRepository for testing
type MockDefenseRepository struct {
	mock.Mock
}

func (m *MockDefenseRepository) ConsumeOne(ctx context.Context, memberID uuid.UUID, kind string) (bool, error) {
	args := m.Called(ctx, memberID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockDefenseRepository) Grant(ctx context.Context, memberID uuid.UUID, kind string, n int) error {
	args := m.Called(ctx, memberID, kind, n)
	return args.Error(0)
}

func (m *MockDefenseRepository) Count(ctx context.Context, memberID uuid.UUID, kind string) (int, error) {
	args := m.Called(ctx, memberID, kind)
	return args.Int(0), args.Error(1)
}

func TestMemberOverview(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	attemptRepo := new(MockAttemptRepository)
	ledger := new(MockLedgerRepository)
	defense := new(MockDefenseRepository)
	service := NewService(memberRepo, attemptRepo, ledger, defense)
	ctx := context.Background()

	memberID := uuid.New()
	member := &domain.Member{ID: memberID, Name: "Ana", Balance: 17, CreatedAt: time.Now().UTC()}
	entries := []*domain.LedgerEntry{{ID: uuid.New(), MemberID: memberID, Amount: 5, Type: domain.EntryTypeCredit}}
	attempts := []*domain.Attempt{{ID: uuid.New(), AttackerID: memberID, VictimID: uuid.New(), RequestedAmount: 5, State: domain.AttemptStatePending}}

	memberRepo.On("GetByID", ctx, memberID).Return(member, nil)
	defense.On("Count", ctx, memberID, domain.ShieldKind).Return(2, nil)
	ledger.On("ListEntries", ctx, memberID, recentEntries).Return(entries, nil)
	attemptRepo.On("ListByMember", ctx, memberID, recentAttempts).Return(attempts, nil)

	overview, err := service.MemberOverview(ctx, memberID)

	assert.NoError(t, err)
	assert.Equal(t, member, overview.Member)
	assert.Equal(t, 2, overview.Shields)
	assert.Equal(t, entries, overview.RecentEntries)
	assert.Equal(t, attempts, overview.RecentAttempts)
}

func TestMemberOverview_UnknownMember(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	service := NewService(memberRepo, new(MockAttemptRepository), new(MockLedgerRepository), new(MockDefenseRepository))
	ctx := context.Background()
	memberID := uuid.New()

	memberRepo.On("GetByID", ctx, memberID).Return(nil, domain.ErrMemberNotFound)

	_, err := service.MemberOverview(ctx, memberID)

	assert.ErrorIs(t, err, domain.ErrMemberNotFound)
}
