package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// defenseRepository implements domain.DefenseRepository
type defenseRepository struct {
	db *DB
}

// NewDefenseRepository creates a new defense repository
func NewDefenseRepository(db *DB) domain.DefenseRepository {
	return &defenseRepository{db: db}
}

// ConsumeOne is a single conditional update: of two simultaneous attacks on a
// victim holding one shield, exactly one sees rows == 1.
func (r *defenseRepository) ConsumeOne(ctx context.Context, memberID uuid.UUID, kind string) (bool, error) {
	query := r.db.rebind(`
		UPDATE shields
		SET quantity = quantity - 1
		WHERE member_id = %s AND kind = %s AND quantity > 0
	`)
	res, err := r.db.ExecContext(ctx, query, memberID.String(), kind)
	if err != nil {
		return false, fmt.Errorf("consume %s: %w", kind, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume %s rows: %w", kind, err)
	}
	return rows == 1, nil
}

func (r *defenseRepository) Grant(ctx context.Context, memberID uuid.UUID, kind string, n int) error {
	if n <= 0 {
		return domain.ErrNonPositiveAmount
	}
	// Same upsert syntax on both dialects.
	query := r.db.rebind(`
		INSERT INTO shields (member_id, kind, quantity)
		VALUES (%s, %s, %s)
		ON CONFLICT (member_id, kind) DO UPDATE SET quantity = shields.quantity + excluded.quantity
	`)
	if _, err := r.db.ExecContext(ctx, query, memberID.String(), kind, n); err != nil {
		return fmt.Errorf("grant %s: %w", kind, err)
	}
	return nil
}

func (r *defenseRepository) Count(ctx context.Context, memberID uuid.UUID, kind string) (int, error) {
	query := r.db.rebind(`
		SELECT quantity FROM shields WHERE member_id = %s AND kind = %s
	`)
	var quantity int
	err := r.db.QueryRowContext(ctx, query, memberID.String(), kind).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return quantity, nil
}
