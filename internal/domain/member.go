package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ShieldKind is the single-use defensive item that auto-blocks an incoming
// raid. Other item kinds may be added later; the Defense Registry is keyed
// by (member, kind) so nothing here assumes shields are the only kind.
const ShieldKind = "shield"

// Member represents a party guest in the domain layer.
// The balance is owned by the ledger; the engine never caches its own copy.
type Member struct {
	ID        uuid.UUID
	Name      string
	Balance   int64 // coins, never negative
	CreatedAt time.Time
}

// Validate ensures the member adheres to domain rules
func (m *Member) Validate() error {
	if m.Name == "" {
		return errors.New("member name cannot be empty")
	}
	if m.Balance < 0 {
		return errors.New("member balance cannot be negative")
	}
	return nil
}
