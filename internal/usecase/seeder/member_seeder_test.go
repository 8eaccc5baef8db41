package seeder

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

func TestSeed_CreatesNewMembers(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	ledger := new(MockLedgerRepository)
	defense := new(MockDefenseRepository)
	s := NewMemberSeeder(memberRepo, ledger, defense, 20, 1)
	ctx := context.Background()

	for _, name := range []string{"Ana", "Bruno"} {
		memberRepo.On("GetByName", ctx, name).Return(nil, domain.ErrMemberNotFound)
	}
	memberRepo.On("Create", ctx, mock.MatchedBy(func(m *domain.Member) bool {
		return m.Balance == 0 && m.ID != uuid.Nil
	})).Return(nil).Twice()
	ledger.On("Adjust", ctx, mock.Anything, int64(20), domain.TransactionKindSeed).Return(int64(20), nil).Twice()
	defense.On("Grant", ctx, mock.Anything, domain.ShieldKind, 1).Return(nil).Twice()

	err := s.Seed(ctx, []string{"Ana", "Bruno"})

	assert.NoError(t, err)
	memberRepo.AssertExpectations(t)
	ledger.AssertExpectations(t)
	defense.AssertExpectations(t)
}

func TestSeed_SkipsExistingMembers(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	ledger := new(MockLedgerRepository)
	defense := new(MockDefenseRepository)
	s := NewMemberSeeder(memberRepo, ledger, defense, 20, 1)
	ctx := context.Background()

	existing := &domain.Member{ID: uuid.New(), Name: "Ana", Balance: 13, CreatedAt: time.Now().UTC()}
	memberRepo.On("GetByName", ctx, "Ana").Return(existing, nil)

	err := s.Seed(ctx, []string{"Ana"})

	assert.NoError(t, err)
	memberRepo.AssertNotCalled(t, "Create")
	ledger.AssertNotCalled(t, "Adjust")
	defense.AssertNotCalled(t, "Grant")
}

func TestSeed_IgnoresEmptyNames(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	s := NewMemberSeeder(memberRepo, new(MockLedgerRepository), new(MockDefenseRepository), 20, 1)

	err := s.Seed(context.Background(), []string{""})

	assert.NoError(t, err)
	memberRepo.AssertNotCalled(t, "GetByName")
}

func TestSeed_NoStartingBalanceSkipsLedger(t *testing.T) {
	memberRepo := new(MockMemberRepository)
	ledger := new(MockLedgerRepository)
	defense := new(MockDefenseRepository)
	s := NewMemberSeeder(memberRepo, ledger, defense, 0, 0)
	ctx := context.Background()

	memberRepo.On("GetByName", ctx, "Ana").Return(nil, domain.ErrMemberNotFound)
	memberRepo.On("Create", ctx, mock.Anything).Return(nil)

	err := s.Seed(ctx, []string{"Ana"})

	assert.NoError(t, err)
	ledger.AssertNotCalled(t, "Adjust")
	defense.AssertNotCalled(t, "Grant")
}
