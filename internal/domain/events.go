package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a notification pushed to a member's client sessions.
type EventKind string

const (
	EventAttackIncoming  EventKind = "attack_incoming"
	EventAttackBlocked   EventKind = "attack_blocked"
	EventAttackDodged    EventKind = "attack_dodged"
	EventAttackSucceeded EventKind = "attack_succeeded"
	EventAttackVoid      EventKind = "attack_void"
)

// EventPayload carries the plain data a client needs to render the event.
// ExpiresAt is only set on attack_incoming so the client can draw a countdown;
// the countdown is display only, the server clock decides the outcome.
type EventPayload struct {
	AttemptID     uuid.UUID  `json:"attempt_id"`
	CounterpartID uuid.UUID  `json:"counterpart_id"`
	Amount        int64      `json:"amount,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Notifier delivers events to a member's connected sessions. Delivery is
// best-effort and fire-and-forget: resolution correctness never depends on
// the client receiving anything.
type Notifier interface {
	Notify(memberID uuid.UUID, kind EventKind, payload EventPayload)
}
