package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// ledgerRepository implements domain.LedgerRepository
type ledgerRepository struct {
	db *DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *DB) domain.LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Balance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	query := r.db.rebind(`SELECT balance FROM members WHERE id = %s`)
	var balance int64
	err := r.db.QueryRowContext(ctx, query, memberID.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrMemberNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Adjust applies a guarded single-member delta and the matching audit entry
// in one database transaction. The guard in the UPDATE keeps the balance
// non-negative without a read-then-write race.
func (r *ledgerRepository) Adjust(ctx context.Context, memberID uuid.UUID, delta int64, kind domain.TransactionKind) (int64, error) {
	if delta == 0 {
		return 0, domain.ErrNonPositiveAmount
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin adjust: %w", err)
	}
	defer tx.Rollback()

	update := r.db.rebind(`
		UPDATE members
		SET balance = balance + %s
		WHERE id = %s AND balance + %s >= 0
	`)
	res, err := tx.ExecContext(ctx, update, delta, memberID.String(), delta)
	if err != nil {
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("adjust balance rows: %w", err)
	}
	if rows == 0 {
		// Either the member is missing or the guard rejected the delta.
		exists := r.db.rebind(`SELECT 1 FROM members WHERE id = %s`)
		var one int
		err := tx.QueryRowContext(ctx, exists, memberID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrMemberNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("check member: %w", err)
		}
		return 0, domain.ErrInsufficientFunds
	}

	record := domain.NewAdjustment(kind, memberID, delta, time.Now().UTC())
	if err := record.Validate(); err != nil {
		return 0, err
	}
	if err := insertTransaction(ctx, r.db, tx, record); err != nil {
		return 0, err
	}

	var balance int64
	read := r.db.rebind(`SELECT balance FROM members WHERE id = %s`)
	if err := tx.QueryRowContext(ctx, read, memberID.String()).Scan(&balance); err != nil {
		return 0, fmt.Errorf("read adjusted balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit adjust: %w", err)
	}
	return balance, nil
}

// SettleSucceeded runs the whole success path in one database transaction:
// win the PENDING -> SUCCEEDED race, debit the victim behind a floor guard,
// credit the attacker, append the two linked audit entries. Any failure rolls
// the whole thing back, so a failed ledger write can never leave a phantom
// SUCCEEDED attempt.
func (r *ledgerRepository) SettleSucceeded(ctx context.Context, attempt *domain.Attempt, settled, floor int64) (bool, error) {
	if settled <= 0 {
		return false, domain.ErrNonPositiveAmount
	}
	if floor < 0 {
		floor = 0
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin settle: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	won, err := resolveAttempt(ctx, r.db, tx, attempt.ID, domain.AttemptStateSucceeded, settled, now)
	if err != nil {
		return false, err
	}
	if !won {
		// The dodge won; nothing to roll back.
		return false, nil
	}

	debit := r.db.rebind(`
		UPDATE members
		SET balance = balance - %s
		WHERE id = %s AND balance - %s >= %s
	`)
	res, err := tx.ExecContext(ctx, debit, settled, attempt.VictimID.String(), settled, floor)
	if err != nil {
		return false, fmt.Errorf("debit victim: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("debit victim rows: %w", err)
	}
	if rows == 0 {
		// The balance moved since the settle amount was computed. Roll back
		// the CAS too: the attempt stays PENDING and the caller recomputes.
		return false, domain.ErrBalanceChanged
	}

	credit := r.db.rebind(`
		UPDATE members
		SET balance = balance + %s
		WHERE id = %s
	`)
	res, err = tx.ExecContext(ctx, credit, settled, attempt.AttackerID.String())
	if err != nil {
		return false, fmt.Errorf("credit attacker: %w", err)
	}
	rows, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("credit attacker rows: %w", err)
	}
	if rows == 0 {
		return false, domain.ErrMemberNotFound
	}

	record := domain.NewRaidSettlement(attempt.AttackerID, attempt.VictimID, settled, now)
	if err := record.Validate(); err != nil {
		return false, err
	}
	if err := insertTransaction(ctx, r.db, tx, record); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit settle: %w", err)
	}
	return true, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, memberID uuid.UUID, limit int) ([]*domain.LedgerEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.rebind(`
		SELECT id, transaction_id, member_id, amount, type, created_at
		FROM ledger_entries
		WHERE member_id = %s
		ORDER BY created_at DESC, id
		LIMIT %s
	`)
	rows, err := r.db.QueryContext(ctx, query, memberID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.LedgerEntry
	for rows.Next() {
		var entry domain.LedgerEntry
		var id, txID, mID, entryType string
		if err := rows.Scan(&id, &txID, &mID, &entry.Amount, &entryType, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if entry.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse entry id %q: %w", id, err)
		}
		if entry.TransactionID, err = uuid.Parse(txID); err != nil {
			return nil, fmt.Errorf("parse entry transaction id %q: %w", txID, err)
		}
		if entry.MemberID, err = uuid.Parse(mID); err != nil {
			return nil, fmt.Errorf("parse entry member id %q: %w", mID, err)
		}
		entry.Type = domain.EntryType(entryType)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// insertTransaction appends a validated transaction header and its entries.
func insertTransaction(ctx context.Context, db *DB, tx *sql.Tx, record *domain.Transaction) error {
	header := db.rebind(`
		INSERT INTO transactions (id, kind, created_at)
		VALUES (%s, %s, %s)
	`)
	if _, err := tx.ExecContext(ctx, header, record.ID.String(), string(record.Kind), record.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	entry := db.rebind(`
		INSERT INTO ledger_entries (id, transaction_id, member_id, amount, type, created_at)
		VALUES (%s, %s, %s, %s, %s, %s)
	`)
	for _, e := range record.Entries {
		if _, err := tx.ExecContext(ctx, entry,
			e.ID.String(),
			e.TransactionID.String(),
			e.MemberID.String(),
			e.Amount,
			string(e.Type),
			e.CreatedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert ledger entry: %w", err)
		}
	}
	return nil
}
