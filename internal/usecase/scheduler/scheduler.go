package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// resolveTimeout bounds a single clock-fired resolution. A timed-out
// resolution leaves the attempt PENDING and the sweep retries it.
const resolveTimeout = 10 * time.Second

// Resolver is the engine-side surface the clock drives. Implemented by
// usecase/raid.Service.
type Resolver interface {
	// ResolveExpired settles one attempt whose window elapsed
	ResolveExpired(ctx context.Context, attemptID uuid.UUID) error

	// ResolveAllOverdue settles every pending attempt past its deadline
	ResolveAllOverdue(ctx context.Context) (int, error)
}

// Scheduler is the server-authoritative resolution clock: an in-memory
// deadline per pending attempt, plus a recovery sweep that re-resolves
// anything overdue. Deadlines survive restarts because expires-at is
// persisted with the attempt; the in-memory timer is only the fast path.
// Duplicate or late firings are harmless because the store's conditional
// update resolves each attempt at most once.
type Scheduler struct {
	sweepEvery time.Duration

	mu       sync.Mutex
	timers   map[uuid.UUID]*time.Timer
	resolver Resolver
}

// New creates a scheduler sweeping for overdue attempts every sweepEvery.
func New(sweepEvery time.Duration) *Scheduler {
	if sweepEvery <= 0 {
		sweepEvery = 5 * time.Second
	}
	return &Scheduler{
		sweepEvery: sweepEvery,
		timers:     make(map[uuid.UUID]*time.Timer),
	}
}

// SetResolver wires the engine in. Must be called before Schedule or Run;
// split from New because the engine and the scheduler reference each other.
func (s *Scheduler) SetResolver(r Resolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolver = r
}

// Schedule arms a deadline for the attempt. Re-arming an already armed
// attempt is a no-op.
func (s *Scheduler) Schedule(attemptID uuid.UUID, expiresAt time.Time) {
	delay := time.Until(expiresAt)
	if delay < 0 {
		delay = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[attemptID]; ok {
		return
	}
	s.timers[attemptID] = time.AfterFunc(delay, func() {
		s.fire(attemptID)
	})
}

// Cancel disarms the attempt's deadline. No-op if it already fired or was
// never armed.
func (s *Scheduler) Cancel(attemptID uuid.UUID) {
	s.mu.Lock()
	t, ok := s.timers[attemptID]
	delete(s.timers, attemptID)
	s.mu.Unlock()

	if ok {
		t.Stop()
	}
}

func (s *Scheduler) fire(attemptID uuid.UUID) {
	s.mu.Lock()
	delete(s.timers, attemptID)
	r := s.resolver
	s.mu.Unlock()

	if r == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()
	if err := r.ResolveExpired(ctx, attemptID); err != nil {
		// Still pending; the sweep retries it.
		log.Printf("scheduler: resolve attempt %s: %v", attemptID, err)
	}
}

// Run performs the startup recovery sweep and then sweeps periodically until
// the context is cancelled. The startup sweep is what resolves attempts whose
// deadline elapsed while the process was down.
func (s *Scheduler) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	s.mu.Lock()
	r := s.resolver
	s.mu.Unlock()
	if r == nil {
		return
	}

	n, err := r.ResolveAllOverdue(ctx)
	if err != nil {
		log.Printf("scheduler: overdue sweep: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: resolved %d overdue attempts", n)
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// Armed reports whether the attempt currently has an in-memory deadline.
// Intended for tests and diagnostics.
func (s *Scheduler) Armed(attemptID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[attemptID]
	return ok
}
