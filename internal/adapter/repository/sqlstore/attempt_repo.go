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

// attemptRepository implements domain.AttemptRepository
type attemptRepository struct {
	db *DB
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db *DB) domain.AttemptRepository {
	return &attemptRepository{db: db}
}

func (r *attemptRepository) Create(ctx context.Context, attempt *domain.Attempt) error {
	query := r.db.rebind(`
		INSERT INTO attempts (id, attacker_id, victim_id, requested_amount, settled_amount, state, created_at, expires_at, resolved_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s)
	`)
	_, err := r.db.ExecContext(ctx, query,
		attempt.ID.String(),
		attempt.AttackerID.String(),
		attempt.VictimID.String(),
		attempt.RequestedAmount,
		attempt.SettledAmount,
		string(attempt.State),
		attempt.CreatedAt.UTC(),
		attempt.ExpiresAt.UTC(),
		nullableTime(attempt.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *attemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Attempt, error) {
	query := r.db.rebind(`
		SELECT id, attacker_id, victim_id, requested_amount, settled_amount, state, created_at, expires_at, resolved_at
		FROM attempts
		WHERE id = %s
	`)
	attempt, err := scanAttempt(r.db.QueryRowContext(ctx, query, id.String()).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, err
	}
	return attempt, nil
}

// Resolve is the race adjudicator: a single conditional update that only one
// caller can win for a given attempt.
func (r *attemptRepository) Resolve(ctx context.Context, id uuid.UUID, to domain.AttemptState, settled int64, resolvedAt time.Time) (bool, error) {
	return resolveAttempt(ctx, r.db, r.db.DB, id, to, settled, resolvedAt)
}

// execer covers *sql.DB and *sql.Tx so the settlement path can run the same
// conditional update inside its transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func resolveAttempt(ctx context.Context, db *DB, ex execer, id uuid.UUID, to domain.AttemptState, settled int64, resolvedAt time.Time) (bool, error) {
	if !to.Terminal() {
		return false, fmt.Errorf("cannot resolve attempt to non-terminal state %s", to)
	}
	query := db.rebind(`
		UPDATE attempts
		SET state = %s, settled_amount = %s, resolved_at = %s
		WHERE id = %s AND state = %s
	`)
	res, err := ex.ExecContext(ctx, query,
		string(to),
		settled,
		resolvedAt.UTC(),
		id.String(),
		string(domain.AttemptStatePending),
	)
	if err != nil {
		return false, fmt.Errorf("resolve attempt: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve attempt rows: %w", err)
	}
	return rows == 1, nil
}

// ListOverduePending fetches pending attempts and filters the deadline in Go:
// timestamp ordering in SQL is not portable across the two dialects' storage
// formats, and the pending set is small.
func (r *attemptRepository) ListOverduePending(ctx context.Context, now time.Time) ([]*domain.Attempt, error) {
	query := r.db.rebind(`
		SELECT id, attacker_id, victim_id, requested_amount, settled_amount, state, created_at, expires_at, resolved_at
		FROM attempts
		WHERE state = %s
	`)
	rows, err := r.db.QueryContext(ctx, query, string(domain.AttemptStatePending))
	if err != nil {
		return nil, fmt.Errorf("list pending attempts: %w", err)
	}
	defer rows.Close()

	var overdue []*domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		if !attempt.ExpiresAt.After(now) {
			overdue = append(overdue, attempt)
		}
	}
	return overdue, rows.Err()
}

func (r *attemptRepository) ListByMember(ctx context.Context, memberID uuid.UUID, limit int) ([]*domain.Attempt, error) {
	if limit <= 0 {
		limit = 20
	}
	query := r.db.rebind(`
		SELECT id, attacker_id, victim_id, requested_amount, settled_amount, state, created_at, expires_at, resolved_at
		FROM attempts
		WHERE attacker_id = %s OR victim_id = %s
		ORDER BY created_at DESC
		LIMIT %s
	`)
	rows, err := r.db.QueryContext(ctx, query, memberID.String(), memberID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list attempts by member: %w", err)
	}
	defer rows.Close()

	var attempts []*domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows.Scan)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

func scanAttempt(scan func(...any) error) (*domain.Attempt, error) {
	var attempt domain.Attempt
	var id, attackerID, victimID, state string
	var resolvedAt sql.NullTime
	if err := scan(
		&id,
		&attackerID,
		&victimID,
		&attempt.RequestedAmount,
		&attempt.SettledAmount,
		&state,
		&attempt.CreatedAt,
		&attempt.ExpiresAt,
		&resolvedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if attempt.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse attempt id %q: %w", id, err)
	}
	if attempt.AttackerID, err = uuid.Parse(attackerID); err != nil {
		return nil, fmt.Errorf("parse attacker id %q: %w", attackerID, err)
	}
	if attempt.VictimID, err = uuid.Parse(victimID); err != nil {
		return nil, fmt.Errorf("parse victim id %q: %w", victimID, err)
	}
	attempt.State = domain.AttemptState(state)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		attempt.ResolvedAt = &t
	}
	return &attempt, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
