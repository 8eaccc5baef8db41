package raid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// settleRetries bounds in-line recomputation when the victim's balance moves
// mid-settlement. Past that the attempt stays PENDING and the recovery sweep
// picks it up again.
const settleRetries = 3

// ResolutionClock arms and cancels the per-attempt server-side deadline.
// Implemented by usecase/scheduler; the engine never waits on it.
type ResolutionClock interface {
	Schedule(attemptID uuid.UUID, expiresAt time.Time)
	Cancel(attemptID uuid.UUID)
}

// Config carries the engine's tunables.
type Config struct {
	// Window is how long the victim has to dodge before the attack settles.
	Window time.Duration
	// BalanceFloor is the minimum balance a settlement must leave the victim
	// with. With the default of 1 a member can never be robbed down to zero.
	BalanceFloor int64
}

// InitiateResult is the synchronous outcome of Initiate.
type InitiateResult struct {
	AttemptID uuid.UUID
	Blocked   bool
	ExpiresAt time.Time // zero when Blocked
}

// Service is the contested transfer engine. It owns the attempt lifecycle and
// enforces exactly-once resolution; balances and shields are only ever touched
// through their repositories' atomic operations.
type Service struct {
	MemberRepo  domain.MemberRepository
	AttemptRepo domain.AttemptRepository
	Ledger      domain.LedgerRepository
	Defense     domain.DefenseRepository
	Notifier    domain.Notifier
	Clock       ResolutionClock

	cfg Config
}

// NewService creates a new raid engine instance
func NewService(
	memberRepo domain.MemberRepository,
	attemptRepo domain.AttemptRepository,
	ledger domain.LedgerRepository,
	defense domain.DefenseRepository,
	notifier domain.Notifier,
	clock ResolutionClock,
	cfg Config,
) *Service {
	return &Service{
		MemberRepo:  memberRepo,
		AttemptRepo: attemptRepo,
		Ledger:      ledger,
		Defense:     defense,
		Notifier:    notifier,
		Clock:       clock,
		cfg:         cfg,
	}
}

// Initiate starts a raid by attacker against victim for the given amount.
// Logic:
//  1. Reject invalid requests synchronously; nothing is created.
//  2. Atomically consume one shield from the victim. If one was consumed the
//     attempt is recorded already BLOCKED: no clock, no ledger touch, both
//     parties notified, Blocked returned synchronously.
//  3. Otherwise create a PENDING attempt, arm the resolution clock for
//     expires-at, and notify the victim so its client can render a countdown.
//
// Initiate never blocks waiting for the victim.
func (s *Service) Initiate(ctx context.Context, attackerID, victimID uuid.UUID, amount int64) (*InitiateResult, error) {
	if attackerID == victimID {
		return nil, domain.ErrSelfAttack
	}
	if amount <= 0 {
		return nil, domain.ErrNonPositiveAmount
	}
	if _, err := s.MemberRepo.GetByID(ctx, attackerID); err != nil {
		return nil, fmt.Errorf("attacker: %w", err)
	}
	if _, err := s.MemberRepo.GetByID(ctx, victimID); err != nil {
		return nil, fmt.Errorf("victim: %w", err)
	}

	now := time.Now().UTC()

	consumed, err := s.Defense.ConsumeOne(ctx, victimID, domain.ShieldKind)
	if err != nil {
		return nil, fmt.Errorf("consume shield: %w", err)
	}
	if consumed {
		resolvedAt := now
		attempt := &domain.Attempt{
			ID:              uuid.New(),
			AttackerID:      attackerID,
			VictimID:        victimID,
			RequestedAmount: amount,
			State:           domain.AttemptStateBlocked,
			CreatedAt:       now,
			ExpiresAt:       now,
			ResolvedAt:      &resolvedAt,
		}
		if err := attempt.Validate(); err != nil {
			return nil, err
		}
		if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
			return nil, err
		}

		s.Notifier.Notify(victimID, domain.EventAttackBlocked, domain.EventPayload{
			AttemptID:     attempt.ID,
			CounterpartID: attackerID,
			Amount:        amount,
		})
		s.Notifier.Notify(attackerID, domain.EventAttackBlocked, domain.EventPayload{
			AttemptID:     attempt.ID,
			CounterpartID: victimID,
			Amount:        amount,
		})
		return &InitiateResult{AttemptID: attempt.ID, Blocked: true}, nil
	}

	attempt := &domain.Attempt{
		ID:              uuid.New(),
		AttackerID:      attackerID,
		VictimID:        victimID,
		RequestedAmount: amount,
		State:           domain.AttemptStatePending,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.cfg.Window),
	}
	if err := attempt.Validate(); err != nil {
		return nil, err
	}
	if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
		return nil, err
	}

	s.Clock.Schedule(attempt.ID, attempt.ExpiresAt)

	expiresAt := attempt.ExpiresAt
	s.Notifier.Notify(victimID, domain.EventAttackIncoming, domain.EventPayload{
		AttemptID:     attempt.ID,
		CounterpartID: attackerID,
		Amount:        amount,
		ExpiresAt:     &expiresAt,
	})

	return &InitiateResult{AttemptID: attempt.ID, ExpiresAt: attempt.ExpiresAt}, nil
}

// Dodge lets the victim cancel a pending attempt before the clock fires.
// The conditional PENDING -> DODGED update in the store adjudicates the race
// against the clock: on loss the clock's ledger-mutating outcome stands and
// the caller gets ErrAlreadySettled.
func (s *Service) Dodge(ctx context.Context, attemptID, callerID uuid.UUID) error {
	attempt, err := s.AttemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.VictimID != callerID {
		return domain.ErrNotVictim
	}
	if attempt.State.Terminal() {
		return domain.ErrAlreadySettled
	}

	won, err := s.AttemptRepo.Resolve(ctx, attempt.ID, domain.AttemptStateDodged, 0, time.Now().UTC())
	if err != nil {
		return err
	}
	if !won {
		return domain.ErrAlreadySettled
	}

	s.Clock.Cancel(attempt.ID)

	s.Notifier.Notify(attempt.AttackerID, domain.EventAttackDodged, domain.EventPayload{
		AttemptID:     attempt.ID,
		CounterpartID: attempt.VictimID,
		Amount:        attempt.RequestedAmount,
	})
	s.Notifier.Notify(attempt.VictimID, domain.EventAttackDodged, domain.EventPayload{
		AttemptID:     attempt.ID,
		CounterpartID: attempt.AttackerID,
		Amount:        attempt.RequestedAmount,
	})
	return nil
}

// ResolveExpired is the clock-facing resolution path, invoked when an
// attempt's window elapses. It is safe to invoke more than once and safe to
// race against Dodge: the store's conditional updates pick a single winner.
//
// The settlement amount is capped against the victim's balance at resolution
// time. When the guarded debit loses against a concurrent balance mutation the
// attempt stays PENDING and the amount is recomputed with a fresh balance; a
// failed ledger write is never reported as SUCCEEDED.
func (s *Service) ResolveExpired(ctx context.Context, attemptID uuid.UUID) error {
	attempt, err := s.AttemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		return err
	}
	if attempt.State.Terminal() {
		// Dodged, or an earlier firing already settled it.
		return nil
	}

	for i := 0; i < settleRetries; i++ {
		balance, err := s.Ledger.Balance(ctx, attempt.VictimID)
		if err != nil {
			return fmt.Errorf("read victim balance: %w", err)
		}

		settled := domain.SettleAmount(attempt.RequestedAmount, balance, s.cfg.BalanceFloor)
		if settled == 0 {
			won, err := s.AttemptRepo.Resolve(ctx, attempt.ID, domain.AttemptStateVoidedNoFunds, 0, time.Now().UTC())
			if err != nil {
				return err
			}
			if won {
				// Too poor to rob. The victim is not told anything.
				s.Notifier.Notify(attempt.AttackerID, domain.EventAttackVoid, domain.EventPayload{
					AttemptID:     attempt.ID,
					CounterpartID: attempt.VictimID,
				})
			}
			return nil
		}

		won, err := s.Ledger.SettleSucceeded(ctx, attempt, settled, s.cfg.BalanceFloor)
		if errors.Is(err, domain.ErrBalanceChanged) {
			continue
		}
		if err != nil {
			// Attempt stays PENDING; the sweep retries later.
			return fmt.Errorf("settle attempt %s: %w", attempt.ID, err)
		}
		if won {
			// Ledger commit happens-before these sends, so a client that
			// queries its balance after the event sees the updated value.
			s.Notifier.Notify(attempt.AttackerID, domain.EventAttackSucceeded, domain.EventPayload{
				AttemptID:     attempt.ID,
				CounterpartID: attempt.VictimID,
				Amount:        settled,
			})
			s.Notifier.Notify(attempt.VictimID, domain.EventAttackSucceeded, domain.EventPayload{
				AttemptID:     attempt.ID,
				CounterpartID: attempt.AttackerID,
				Amount:        settled,
			})
		}
		return nil
	}

	return fmt.Errorf("attempt %s: %w", attempt.ID, domain.ErrBalanceChanged)
}

// ResolveAllOverdue resolves every PENDING attempt whose deadline has passed.
// Run at process start and periodically so attempts are never lost in PENDING
// across restarts or transient settlement failures.
func (s *Service) ResolveAllOverdue(ctx context.Context) (int, error) {
	overdue, err := s.AttemptRepo.ListOverduePending(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, attempt := range overdue {
		if err := s.ResolveExpired(ctx, attempt.ID); err != nil {
			log.Printf("raid: resolve overdue attempt %s: %v", attempt.ID, err)
			continue
		}
		resolved++
	}
	return resolved, nil
}
