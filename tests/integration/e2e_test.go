package integration

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomasvalente/coinraid-backend/internal/adapter/repository/sqlstore"
	"github.com/tomasvalente/coinraid-backend/internal/domain"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/raid"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/scheduler"
	"github.com/tomasvalente/coinraid-backend/internal/usecase/seeder"
)

// recordingNotifier captures pushed events per member so tests can assert on
// who was told what.
type recordingNotifier struct {
	mu     sync.Mutex
	events map[uuid.UUID][]domain.EventKind
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{events: make(map[uuid.UUID][]domain.EventKind)}
}

func (n *recordingNotifier) Notify(memberID uuid.UUID, kind domain.EventKind, _ domain.EventPayload) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[memberID] = append(n.events[memberID], kind)
}

func (n *recordingNotifier) received(memberID uuid.UUID, kind domain.EventKind) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, got := range n.events[memberID] {
		if got == kind {
			return true
		}
	}
	return false
}

type stack struct {
	memberRepo  domain.MemberRepository
	attemptRepo domain.AttemptRepository
	ledger      domain.LedgerRepository
	defense     domain.DefenseRepository
	notifier    *recordingNotifier
	sched       *scheduler.Scheduler
	raid        *raid.Service
}

// newStack wires the whole engine against a throwaway sqlite file with a very
// short attack window so timeouts resolve within the test.
func newStack(t *testing.T, window time.Duration) *stack {
	t.Helper()
	db, err := sqlstore.Open(sqlstore.DialectSQLite, filepath.Join(t.TempDir(), "e2e.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := &stack{
		memberRepo:  sqlstore.NewMemberRepository(db),
		attemptRepo: sqlstore.NewAttemptRepository(db),
		ledger:      sqlstore.NewLedgerRepository(db),
		defense:     sqlstore.NewDefenseRepository(db),
		notifier:    newRecordingNotifier(),
		sched:       scheduler.New(50 * time.Millisecond),
	}
	s.raid = raid.NewService(s.memberRepo, s.attemptRepo, s.ledger, s.defense, s.notifier, s.sched, raid.Config{
		Window:       window,
		BalanceFloor: 1,
	})
	s.sched.SetResolver(s.raid)
	return s
}

func (s *stack) seed(t *testing.T, names []string, shields int) map[string]uuid.UUID {
	t.Helper()
	seed := seeder.NewMemberSeeder(s.memberRepo, s.ledger, s.defense, 20, shields)
	require.NoError(t, seed.Seed(context.Background(), names))

	ids := make(map[string]uuid.UUID, len(names))
	for _, name := range names {
		member, err := s.memberRepo.GetByName(context.Background(), name)
		require.NoError(t, err)
		ids[name] = member.ID
	}
	return ids
}

func (s *stack) waitTerminal(t *testing.T, attemptID uuid.UUID, timeout time.Duration) *domain.Attempt {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		attempt, err := s.attemptRepo.GetByID(context.Background(), attemptID)
		require.NoError(t, err)
		if attempt.State.Terminal() {
			return attempt
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("attempt %s did not reach a terminal state within %s", attemptID, timeout)
	return nil
}

func balance(t *testing.T, s *stack, id uuid.UUID) int64 {
	t.Helper()
	b, err := s.ledger.Balance(context.Background(), id)
	require.NoError(t, err)
	return b
}

// The full happy path: seed the party, raid, let the window elapse, watch the
// coins move and both parties get told.
func TestRaidTimesOutAndSettles(t *testing.T) {
	s := newStack(t, 150*time.Millisecond)
	ids := s.seed(t, []string{"Ana", "Bruno"}, 0)
	ana, bruno := ids["Ana"], ids["Bruno"]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	result, err := s.raid.Initiate(ctx, ana, bruno, 5)
	require.NoError(t, err)
	require.False(t, result.Blocked)
	assert.True(t, s.notifier.received(bruno, domain.EventAttackIncoming))

	final := s.waitTerminal(t, result.AttemptID, 3*time.Second)
	assert.Equal(t, domain.AttemptStateSucceeded, final.State)
	assert.Equal(t, int64(5), final.SettledAmount)

	assert.Equal(t, int64(25), balance(t, s, ana))
	assert.Equal(t, int64(15), balance(t, s, bruno))
	assert.True(t, s.notifier.received(ana, domain.EventAttackSucceeded))
	assert.True(t, s.notifier.received(bruno, domain.EventAttackSucceeded))
}

func TestDodgePreventsSettlement(t *testing.T) {
	s := newStack(t, 150*time.Millisecond)
	ids := s.seed(t, []string{"Ana", "Bruno"}, 0)
	ana, bruno := ids["Ana"], ids["Bruno"]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	result, err := s.raid.Initiate(ctx, ana, bruno, 5)
	require.NoError(t, err)
	require.NoError(t, s.raid.Dodge(ctx, result.AttemptID, bruno))

	// Wait out the window; the dodge must stick.
	time.Sleep(400 * time.Millisecond)

	final, err := s.attemptRepo.GetByID(ctx, result.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptStateDodged, final.State)
	assert.Equal(t, int64(20), balance(t, s, ana))
	assert.Equal(t, int64(20), balance(t, s, bruno))
	assert.True(t, s.notifier.received(ana, domain.EventAttackDodged))
}

func TestShieldBlocksRaid(t *testing.T) {
	s := newStack(t, 150*time.Millisecond)
	ids := s.seed(t, []string{"Ana", "Bruno"}, 1)
	ana, bruno := ids["Ana"], ids["Bruno"]

	result, err := s.raid.Initiate(context.Background(), ana, bruno, 5)
	require.NoError(t, err)
	assert.True(t, result.Blocked)

	// The shield is spent and balances never moved.
	count, err := s.defense.Count(context.Background(), bruno, domain.ShieldKind)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.Equal(t, int64(20), balance(t, s, ana))
	assert.Equal(t, int64(20), balance(t, s, bruno))

	// The next raid goes through as pending.
	result, err = s.raid.Initiate(context.Background(), ana, bruno, 5)
	require.NoError(t, err)
	assert.False(t, result.Blocked)
}

// A victim who goes broke mid-window voids the attempt instead of paying.
func TestRaidVoidsWhenVictimGoesBroke(t *testing.T) {
	s := newStack(t, 150*time.Millisecond)
	ids := s.seed(t, []string{"Ana", "Bruno"}, 0)
	ana, bruno := ids["Ana"], ids["Bruno"]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	result, err := s.raid.Initiate(ctx, ana, bruno, 5)
	require.NoError(t, err)

	// Bruno spends down to the floor before the window elapses.
	_, err = s.ledger.Adjust(ctx, bruno, -19, domain.TransactionKindSpend)
	require.NoError(t, err)

	final := s.waitTerminal(t, result.AttemptID, 3*time.Second)
	assert.Equal(t, domain.AttemptStateVoidedNoFunds, final.State)
	assert.Equal(t, int64(0), final.SettledAmount)
	assert.Equal(t, int64(20), balance(t, s, ana))
	assert.Equal(t, int64(1), balance(t, s, bruno))
	assert.True(t, s.notifier.received(ana, domain.EventAttackVoid))
	assert.False(t, s.notifier.received(bruno, domain.EventAttackVoid))
}

// Attempts whose deadline elapsed while no process was running are settled by
// the startup sweep.
func TestStartupSweepRecoversOverdueAttempts(t *testing.T) {
	s := newStack(t, 150*time.Millisecond)
	ids := s.seed(t, []string{"Ana", "Bruno"}, 0)
	ana, bruno := ids["Ana"], ids["Bruno"]

	// Simulate an attempt left behind by a dead process: pending, overdue,
	// with no in-memory timer armed.
	attempt := &domain.Attempt{
		ID:              uuid.New(),
		AttackerID:      ana,
		VictimID:        bruno,
		RequestedAmount: 5,
		State:           domain.AttemptStatePending,
		CreatedAt:       time.Now().UTC().Add(-time.Minute),
		ExpiresAt:       time.Now().UTC().Add(-time.Minute),
	}
	require.NoError(t, s.attemptRepo.Create(context.Background(), attempt))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.sched.Run(ctx)

	final := s.waitTerminal(t, attempt.ID, 3*time.Second)
	assert.Equal(t, domain.AttemptStateSucceeded, final.State)
	assert.Equal(t, int64(25), balance(t, s, ana))
	assert.Equal(t, int64(15), balance(t, s, bruno))
}

func TestSeedIsIdempotent(t *testing.T) {
	s := newStack(t, time.Second)
	ids := s.seed(t, []string{"Ana"}, 1)

	// Second run leaves the existing member untouched.
	_, err := s.ledger.Adjust(context.Background(), ids["Ana"], -5, domain.TransactionKindSpend)
	require.NoError(t, err)
	s.seed(t, []string{"Ana"}, 1)

	assert.Equal(t, int64(15), balance(t, s, ids["Ana"]))
	count, err := s.defense.Count(context.Background(), ids["Ana"], domain.ShieldKind)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
