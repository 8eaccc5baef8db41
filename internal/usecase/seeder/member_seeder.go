package seeder

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// MemberSeeder bootstraps the party roster: one member per name, each with
// the configured starting balance and shields. Re-running it is safe; members
// that already exist are left untouched.
type MemberSeeder struct {
	MemberRepo domain.MemberRepository
	Ledger     domain.LedgerRepository
	Defense    domain.DefenseRepository

	StartingBalance  int64
	ShieldsPerMember int
}

// NewMemberSeeder creates a new MemberSeeder instance
func NewMemberSeeder(
	memberRepo domain.MemberRepository,
	ledger domain.LedgerRepository,
	defense domain.DefenseRepository,
	startingBalance int64,
	shieldsPerMember int,
) *MemberSeeder {
	return &MemberSeeder{
		MemberRepo:       memberRepo,
		Ledger:           ledger,
		Defense:          defense,
		StartingBalance:  startingBalance,
		ShieldsPerMember: shieldsPerMember,
	}
}

// Seed ensures a member exists for every name, crediting the starting balance
// through the ledger (SEED transaction) so the grant shows up in the audit
// trail like any other movement.
func (s *MemberSeeder) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}

		_, err := s.MemberRepo.GetByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrMemberNotFound) {
			return err
		}

		member := &domain.Member{
			ID:        uuid.New(),
			Name:      name,
			Balance:   0,
			CreatedAt: time.Now().UTC(),
		}
		if err := member.Validate(); err != nil {
			return err
		}
		if err := s.MemberRepo.Create(ctx, member); err != nil {
			return err
		}

		if s.StartingBalance > 0 {
			if _, err := s.Ledger.Adjust(ctx, member.ID, s.StartingBalance, domain.TransactionKindSeed); err != nil {
				return err
			}
		}
		if s.ShieldsPerMember > 0 {
			if err := s.Defense.Grant(ctx, member.ID, domain.ShieldKind, s.ShieldsPerMember); err != nil {
				return err
			}
		}
	}
	return nil
}
