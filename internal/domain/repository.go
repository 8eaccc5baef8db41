package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemberRepository defines the interface for member persistence operations
type MemberRepository interface {
	// GetByID retrieves a member by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Member, error)

	// GetByName retrieves a member by its unique display name
	GetByName(ctx context.Context, name string) (*Member, error)

	// Create creates a new member
	Create(ctx context.Context, member *Member) error

	// List retrieves all members ordered by creation time
	List(ctx context.Context) ([]*Member, error)
}

// AttemptRepository defines the interface for transfer attempt persistence
type AttemptRepository interface {
	// Create persists a new attempt (PENDING, or BLOCKED when a shield
	// short-circuited it at birth)
	Create(ctx context.Context, attempt *Attempt) error

	// GetByID retrieves an attempt by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*Attempt, error)

	// Resolve performs the conditional PENDING -> to transition and reports
	// whether this caller won it. This single conditional update is the
	// adjudicator of the dodge-vs-timeout race: for any attempt it returns
	// true exactly once.
	Resolve(ctx context.Context, id uuid.UUID, to AttemptState, settled int64, resolvedAt time.Time) (bool, error)

	// ListOverduePending returns every PENDING attempt whose deadline has
	// passed, for the recovery sweep
	ListOverduePending(ctx context.Context, now time.Time) ([]*Attempt, error)

	// ListByMember returns recent attempts where the member is attacker or
	// victim, newest first
	ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*Attempt, error)
}

// LedgerRepository defines the interface for balance and audit persistence.
// All balance mutations are atomic per member and never produce a negative
// balance.
type LedgerRepository interface {
	// Balance reads a member's current balance
	Balance(ctx context.Context, memberID uuid.UUID) (int64, error)

	// Adjust applies a single guarded delta and appends the matching audit
	// entry in one storage transaction. Returns the new balance, or
	// ErrInsufficientFunds when the delta would drive the balance negative.
	Adjust(ctx context.Context, memberID uuid.UUID, delta int64, kind TransactionKind) (int64, error)

	// SettleSucceeded atomically wins the PENDING -> SUCCEEDED transition and
	// moves settled coins from victim to attacker with two linked audit
	// entries, all in one storage transaction. Returns (false, nil) when the
	// dodge already won, and ErrBalanceChanged (nothing applied, attempt
	// still PENDING) when the victim's balance no longer covers the
	// settlement above the floor.
	SettleSucceeded(ctx context.Context, attempt *Attempt, settled, floor int64) (bool, error)

	// ListEntries returns a member's most recent audit entries, newest first
	ListEntries(ctx context.Context, memberID uuid.UUID, limit int) ([]*LedgerEntry, error)
}

// DefenseRepository defines the interface for single-use defensive items
type DefenseRepository interface {
	// ConsumeOne atomically removes one unit of the named item if present and
	// reports whether it did. Two simultaneous attacks against one shielded
	// victim must see exactly one true.
	ConsumeOne(ctx context.Context, memberID uuid.UUID, kind string) (bool, error)

	// Grant adds n units of the named item to a member
	Grant(ctx context.Context, memberID uuid.UUID, kind string, n int) error

	// Count returns how many units of the named item a member holds
	Count(ctx context.Context, memberID uuid.UUID, kind string) (int, error)
}
