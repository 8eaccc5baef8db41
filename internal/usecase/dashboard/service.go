package dashboard

import (
	"context"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

const (
	recentEntries  = 20
	recentAttempts = 20
)

// Overview is the read model behind a member's profile screen: balance,
// shields, recent coin movements and recent raids from either side.
type Overview struct {
	Member         *domain.Member
	Shields        int
	RecentEntries  []*domain.LedgerEntry
	RecentAttempts []*domain.Attempt
}

// Service provides read-only aggregated views for the UI layer.
type Service struct {
	MemberRepo  domain.MemberRepository
	AttemptRepo domain.AttemptRepository
	Ledger      domain.LedgerRepository
	Defense     domain.DefenseRepository
}

// NewService creates a new dashboard service instance
func NewService(
	memberRepo domain.MemberRepository,
	attemptRepo domain.AttemptRepository,
	ledger domain.LedgerRepository,
	defense domain.DefenseRepository,
) *Service {
	return &Service{
		MemberRepo:  memberRepo,
		AttemptRepo: attemptRepo,
		Ledger:      ledger,
		Defense:     defense,
	}
}

// MemberOverview aggregates everything the member's profile screen shows.
func (s *Service) MemberOverview(ctx context.Context, memberID uuid.UUID) (*Overview, error) {
	member, err := s.MemberRepo.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}

	shields, err := s.Defense.Count(ctx, memberID, domain.ShieldKind)
	if err != nil {
		return nil, err
	}

	entries, err := s.Ledger.ListEntries(ctx, memberID, recentEntries)
	if err != nil {
		return nil, err
	}

	attempts, err := s.AttemptRepo.ListByMember(ctx, memberID, recentAttempts)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Member:         member,
		Shields:        shields,
		RecentEntries:  entries,
		RecentAttempts: attempts,
	}, nil
}
