package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
)

// memberRepository implements domain.MemberRepository
type memberRepository struct {
	db *DB
}

// NewMemberRepository creates a new member repository
func NewMemberRepository(db *DB) domain.MemberRepository {
	return &memberRepository{db: db}
}

func (r *memberRepository) Create(ctx context.Context, member *domain.Member) error {
	query := r.db.rebind(`
		INSERT INTO members (id, name, balance, created_at)
		VALUES (%s, %s, %s, %s)
	`)
	_, err := r.db.ExecContext(ctx, query,
		member.ID.String(),
		member.Name,
		member.Balance,
		member.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (r *memberRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Member, error) {
	query := r.db.rebind(`
		SELECT id, name, balance, created_at
		FROM members
		WHERE id = %s
	`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id.String()))
}

func (r *memberRepository) GetByName(ctx context.Context, name string) (*domain.Member, error) {
	query := r.db.rebind(`
		SELECT id, name, balance, created_at
		FROM members
		WHERE name = %s
	`)
	return r.scanOne(r.db.QueryRowContext(ctx, query, name))
}

func (r *memberRepository) List(ctx context.Context) ([]*domain.Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, balance, created_at
		FROM members
		ORDER BY created_at, name
	`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []*domain.Member
	for rows.Next() {
		member, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		members = append(members, member)
	}
	return members, rows.Err()
}

func (r *memberRepository) scanOne(row *sql.Row) (*domain.Member, error) {
	member, err := scanMember(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return member, nil
}

func scanMember(scan func(...any) error) (*domain.Member, error) {
	var member domain.Member
	var id string
	if err := scan(&id, &member.Name, &member.Balance, &member.CreatedAt); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse member id %q: %w", id, err)
	}
	member.ID = parsed
	return &member, nil
}
