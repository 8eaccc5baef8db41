package economy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// Service handles the ordinary coin movements of the party: awards from
// mini-games and spending at the bar. These run concurrently with raid
// settlements against the same balances, which is why both paths only ever
// mutate a balance through the ledger's guarded atomic operations.
type Service struct {
	MemberRepo domain.MemberRepository
	Ledger     domain.LedgerRepository
}

// NewService creates a new economy service instance
func NewService(memberRepo domain.MemberRepository, ledger domain.LedgerRepository) *Service {
	return &Service{
		MemberRepo: memberRepo,
		Ledger:     ledger,
	}
}

// Award credits a member with amount coins and returns the new balance.
func (s *Service) Award(ctx context.Context, memberID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrNonPositiveAmount
	}
	if _, err := s.MemberRepo.GetByID(ctx, memberID); err != nil {
		return 0, err
	}

	balance, err := s.Ledger.Adjust(ctx, memberID, amount, domain.TransactionKindAward)
	if err != nil {
		return 0, fmt.Errorf("award %d to %s: %w", amount, memberID, err)
	}
	return balance, nil
}

// Spend debits a member by amount coins and returns the new balance.
// Returns ErrInsufficientFunds instead of ever driving the balance negative.
func (s *Service) Spend(ctx context.Context, memberID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, domain.ErrNonPositiveAmount
	}
	if _, err := s.MemberRepo.GetByID(ctx, memberID); err != nil {
		return 0, err
	}

	balance, err := s.Ledger.Adjust(ctx, memberID, -amount, domain.TransactionKindSpend)
	if err != nil {
		return 0, err
	}
	return balance, nil
}
