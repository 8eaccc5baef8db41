package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// AttemptState represents the lifecycle state of a transfer attempt
type AttemptState string

const (
	AttemptStatePending       AttemptState = "PENDING"
	AttemptStateBlocked       AttemptState = "BLOCKED"
	AttemptStateDodged        AttemptState = "DODGED"
	AttemptStateSucceeded     AttemptState = "SUCCEEDED"
	AttemptStateVoidedNoFunds AttemptState = "VOIDED_NO_FUNDS"
)

// Terminal reports whether the state is final. Every state except PENDING is
// terminal and an attempt never leaves a terminal state.
func (s AttemptState) Terminal() bool {
	return s != AttemptStatePending
}

func validAttemptState(s AttemptState) bool {
	switch s {
	case AttemptStatePending, AttemptStateBlocked, AttemptStateDodged,
		AttemptStateSucceeded, AttemptStateVoidedNoFunds:
		return true
	}
	return false
}

// Attempt represents a contested timed transfer between two members.
// It is created PENDING (or BLOCKED when a shield short-circuits it) and is
// resolved exactly once by whichever of dodge/clock wins the race.
type Attempt struct {
	ID              uuid.UUID
	AttackerID      uuid.UUID
	VictimID        uuid.UUID
	RequestedAmount int64
	SettledAmount   int64 // 0 unless the attempt SUCCEEDED
	State           AttemptState
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ResolvedAt      *time.Time
}

// Validate ensures the attempt adheres to domain rules
func (a *Attempt) Validate() error {
	if a.AttackerID == a.VictimID {
		return ErrSelfAttack
	}
	if a.RequestedAmount <= 0 {
		return ErrNonPositiveAmount
	}
	if !validAttemptState(a.State) {
		return errors.New("unknown attempt state: " + string(a.State))
	}
	if a.State.Terminal() && a.ResolvedAt == nil {
		return errors.New("terminal attempt must carry a resolved-at timestamp")
	}
	if !a.State.Terminal() && a.ResolvedAt != nil {
		return errors.New("pending attempt cannot carry a resolved-at timestamp")
	}
	if a.State == AttemptStateSucceeded {
		if a.SettledAmount <= 0 {
			return errors.New("succeeded attempt must settle a positive amount")
		}
		if a.SettledAmount > a.RequestedAmount {
			return errors.New("settled amount cannot exceed requested amount")
		}
	} else if a.SettledAmount != 0 {
		return errors.New("settled amount must be zero unless the attempt succeeded")
	}
	return nil
}

// SettleAmount caps a settlement so the victim keeps at least floor coins.
// The cap is applied against the balance at resolution time, not initiation
// time, because the balance can change while the window runs.
func SettleAmount(requested, balance, floor int64) int64 {
	if floor < 0 {
		floor = 0
	}
	room := balance - floor
	if room <= 0 {
		return 0
	}
	if requested < room {
		return requested
	}
	return room
}
