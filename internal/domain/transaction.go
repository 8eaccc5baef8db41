package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EntryType represents the type of ledger entry
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// TransactionKind classifies why coins moved
type TransactionKind string

const (
	// TransactionKindRaidSettlement is the debit+credit pair written when a
	// contested transfer succeeds. Always balanced: no coin creation.
	TransactionKindRaidSettlement TransactionKind = "RAID_SETTLEMENT"
	// TransactionKindAward credits a member from outside the economy
	// (winning a mini-game, admin grant).
	TransactionKindAward TransactionKind = "AWARD"
	// TransactionKindSpend debits a member (buying a drink, entry fees).
	TransactionKindSpend TransactionKind = "SPEND"
	// TransactionKindSeed is the starting balance granted at party setup.
	TransactionKindSeed TransactionKind = "SEED"
)

// Transaction groups the ledger entries of one logical coin movement.
type Transaction struct {
	ID        uuid.UUID
	Kind      TransactionKind
	CreatedAt time.Time
	Entries   []LedgerEntry
}

// LedgerEntry represents a single append-only audit record against a member.
type LedgerEntry struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	MemberID      uuid.UUID
	Amount        int64 // ABSOLUTE VALUE (Always Positive)
	Type          EntryType
	CreatedAt     time.Time
}

// Validate ensures the transaction adheres to domain rules.
// CRITICAL: a RAID_SETTLEMENT must be a balanced debit/credit pair between two
// different members, so a settlement can never create or destroy coins.
func (t *Transaction) Validate() error {
	if len(t.Entries) == 0 {
		return errors.New("transaction must have at least one entry")
	}

	for _, entry := range t.Entries {
		if entry.Amount <= 0 {
			return errors.New("entry amount must be positive (absolute value)")
		}
		if entry.Type != EntryTypeDebit && entry.Type != EntryTypeCredit {
			return errors.New("entry type must be DEBIT or CREDIT")
		}
	}

	switch t.Kind {
	case TransactionKindRaidSettlement:
		return validateSettlementPair(t.Entries)
	case TransactionKindAward, TransactionKindSeed:
		if len(t.Entries) != 1 || t.Entries[0].Type != EntryTypeCredit {
			return errors.New(string(t.Kind) + " transaction must be a single credit entry")
		}
	case TransactionKindSpend:
		if len(t.Entries) != 1 || t.Entries[0].Type != EntryTypeDebit {
			return errors.New("SPEND transaction must be a single debit entry")
		}
	default:
		return errors.New("unknown transaction kind: " + string(t.Kind))
	}

	return nil
}

// validateSettlementPair ensures a settlement is exactly one debit and one
// credit of the same amount against two different members.
func validateSettlementPair(entries []LedgerEntry) error {
	if len(entries) != 2 {
		return errors.New("settlement must consist of exactly two linked entries")
	}

	debit, credit := entries[0], entries[1]
	if debit.Type != EntryTypeDebit {
		debit, credit = credit, debit
	}
	if debit.Type != EntryTypeDebit || credit.Type != EntryTypeCredit {
		return errors.New("settlement must pair one debit with one credit")
	}
	if debit.Amount != credit.Amount {
		return errors.New("settlement debit must equal settlement credit")
	}
	if debit.MemberID == credit.MemberID {
		return errors.New("settlement entries must reference two different members")
	}
	return nil
}

// NewRaidSettlement builds the linked debit/credit pair for a settled raid:
// the victim is debited and the attacker credited by the same amount.
func NewRaidSettlement(attackerID, victimID uuid.UUID, amount int64, at time.Time) *Transaction {
	txID := uuid.New()
	return &Transaction{
		ID:        txID,
		Kind:      TransactionKindRaidSettlement,
		CreatedAt: at,
		Entries: []LedgerEntry{
			{
				ID:            uuid.New(),
				TransactionID: txID,
				MemberID:      victimID,
				Amount:        amount,
				Type:          EntryTypeDebit,
				CreatedAt:     at,
			},
			{
				ID:            uuid.New(),
				TransactionID: txID,
				MemberID:      attackerID,
				Amount:        amount,
				Type:          EntryTypeCredit,
				CreatedAt:     at,
			},
		},
	}
}

// NewAdjustment builds the single-entry transaction for an award, spend or
// seed. The delta's sign picks the entry type; the amount recorded is its
// absolute value.
func NewAdjustment(kind TransactionKind, memberID uuid.UUID, delta int64, at time.Time) *Transaction {
	txID := uuid.New()
	entryType := EntryTypeCredit
	amount := delta
	if delta < 0 {
		entryType = EntryTypeDebit
		amount = -delta
	}
	return &Transaction{
		ID:        txID,
		Kind:      kind,
		CreatedAt: at,
		Entries: []LedgerEntry{
			{
				ID:            uuid.New(),
				TransactionID: txID,
				MemberID:      memberID,
				Amount:        amount,
				Type:          entryType,
				CreatedAt:     at,
			},
		},
	}
}
