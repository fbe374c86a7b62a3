package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepchess/internal/apperr"
	"stepchess/internal/cost"
	"stepchess/internal/model"
	"stepchess/internal/storage"
)

func seedGame(t *testing.T, s storage.Store, status model.Status) *model.Game {
	t.Helper()
	p, _ := cost.NewRegistry(cost.DefaultPresets()...).Lookup("balanced")
	g := &model.Game{
		ID:       uuid.NewString(),
		WhiteID:  "alice",
		BlackID:  "bob",
		Board:    model.StartFEN,
		Moves:    []string{},
		Status:   status,
		Preset:   p,
		CostMode: cost.ModeBaseDistance,
	}
	ctx := context.Background()
	require.NoError(t, s.Atomically(ctx, func(tx storage.Tx) error { return tx.InsertGame(ctx, g) }))
	return g
}

func TestBalanceDefaultsToZero(t *testing.T) {
	l := New(storage.NewMemory(), Caps{}, nil)
	bal, err := l.Balance(context.Background(), uuid.NewString(), "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestEarnAndSpend(t *testing.T) {
	s := storage.NewMemory()
	g := seedGame(t, s, model.StatusActive)
	l := New(s, Caps{MaxStepsPerCall: 1000}, nil)
	ctx := context.Background()

	bal, err := l.Earn(ctx, "alice", g.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)

	bal, err = l.SpendIfSufficient(ctx, g.ID, "alice", 60)
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal)

	_, err = l.SpendIfSufficient(ctx, g.ID, "alice", 60)
	require.Error(t, err)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeInsufficientSteps, ae.Code)
	assert.Equal(t, "insufficient steps: need 60, have 40", ae.Message)
	assert.Equal(t, map[string]string{"need": "60", "have": "40"}, ae.Metadata)

	bal, err = l.Balance(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(40), bal)
}

func TestEarnValidation(t *testing.T) {
	s := storage.NewMemory()
	active := seedGame(t, s, model.StatusActive)
	waiting := seedGame(t, s, model.StatusWaiting)
	l := New(s, Caps{MaxStepsPerCall: 500}, nil)
	ctx := context.Background()

	cases := []struct {
		name   string
		caller string
		gameID string
		delta  int64
		code   apperr.Code
	}{
		{"zero delta", "alice", active.ID, 0, apperr.CodeInvalidDelta},
		{"negative delta", "alice", active.ID, -5, apperr.CodeInvalidDelta},
		{"over per-call cap", "alice", active.ID, 501, apperr.CodeDeltaExceedsCap},
		{"unknown game", "alice", uuid.NewString(), 10, apperr.CodeGameNotFound},
		{"not active", "alice", waiting.ID, 10, apperr.CodeGameNotActive},
		{"not a player", "mallory", active.ID, 10, apperr.CodeNotAPlayer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Earn(ctx, tc.caller, tc.gameID, tc.delta)
			assert.Equal(t, tc.code, apperr.CodeOf(err))
		})
	}

	bal, err := l.Balance(ctx, active.ID, "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestEarnHourlyCap(t *testing.T) {
	s := storage.NewMemory()
	g := seedGame(t, s, model.StatusActive)
	now := time.Date(2026, 3, 1, 10, 15, 0, 0, time.UTC)
	l := New(s, Caps{MaxStepsPerCall: 500, MaxStepsPerHour: 800}, nil).WithClock(func() time.Time { return now })
	ctx := context.Background()

	_, err := l.Earn(ctx, "alice", g.ID, 500)
	require.NoError(t, err)
	_, err = l.Earn(ctx, "alice", g.ID, 400)
	assert.Equal(t, apperr.CodeHourlyCapReached, apperr.CodeOf(err))

	now = now.Add(time.Hour)
	bal, err := l.Earn(ctx, "alice", g.ID, 400)
	require.NoError(t, err)
	assert.Equal(t, int64(900), bal)
}

func TestConcurrentEarnIsAtomic(t *testing.T) {
	s := storage.NewMemory()
	g := seedGame(t, s, model.StatusActive)
	l := New(s, Caps{MaxStepsPerCall: 10}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Earn(ctx, "bob", g.ID, 2)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	bal, err := l.Balance(ctx, g.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bal)
}

func TestConcurrentSpendNeverGoesNegative(t *testing.T) {
	s := storage.NewMemory()
	g := seedGame(t, s, model.StatusActive)
	l := New(s, Caps{}, nil)
	ctx := context.Background()
	_, err := l.Earn(ctx, "alice", g.ID, 100)
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.SpendIfSufficient(ctx, g.ID, "alice", 15); err == nil {
				ok.Add(1)
			} else {
				assert.Equal(t, apperr.CodeInsufficientSteps, apperr.CodeOf(err))
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(6), ok.Load())
	bal, err := l.Balance(ctx, g.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), bal)
}

func TestBalancesAreScopedPerGame(t *testing.T) {
	s := storage.NewMemory()
	g1 := seedGame(t, s, model.StatusActive)
	g2 := seedGame(t, s, model.StatusActive)
	l := New(s, Caps{}, nil)
	ctx := context.Background()

	_, err := l.Earn(ctx, "alice", g1.ID, 50)
	require.NoError(t, err)
	bal, err := l.Balance(ctx, g2.ID, "alice")
	require.NoError(t, err)
	assert.Zero(t, bal)
}
