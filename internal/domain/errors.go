package domain

import "errors"

// Sentinel errors shared across usecases and adapters. Transport layers map
// these onto their own status codes.
var (
	ErrSelfAttack        = errors.New("attacker and victim must be different members")
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrMemberNotFound    = errors.New("member not found")
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrNotVictim         = errors.New("only the victim can dodge an attempt")
	ErrAlreadySettled    = errors.New("attempt already settled")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceChanged reports that the victim's balance moved between the
	// settle-amount computation and the guarded debit. The attempt stays
	// pending and the caller recomputes with a fresh balance.
	ErrBalanceChanged = errors.New("balance changed during settlement")
)
