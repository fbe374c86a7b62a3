package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepchess/internal/cost"
	"stepchess/internal/model"
)

// testStore runs the behaviour every Store implementation must share.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("RollbackOnError", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := newGame()
		boom := errors.New("boom")
		err := s.Atomically(ctx, func(tx Tx) error {
			if err := tx.InsertGame(ctx, g); err != nil {
				return err
			}
			if _, err := tx.AddBalance(ctx, g.ID, "alice", 10); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		_, err = s.Game(ctx, g.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		bal, err := s.Balance(ctx, g.ID, "alice")
		require.NoError(t, err)
		assert.Zero(t, bal)
	})

	t.Run("GameRoundTrip", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		g := newGame()
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error { return tx.InsertGame(ctx, g) }))
		assert.Equal(t, int64(1), g.Version)

		var updated *model.Game
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			locked, err := tx.GameForUpdate(ctx, g.ID)
			if err != nil {
				return err
			}
			locked.Moves = append(locked.Moves, "e2e4")
			locked.WhiteMoves++
			updated = locked
			return tx.UpdateGame(ctx, locked)
		}))
		assert.Equal(t, int64(2), updated.Version)

		got, err := s.Game(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.Version)
		assert.Equal(t, []string{"e2e4"}, got.Moves)
		assert.Equal(t, int64(1), got.WhiteMoves)
		assert.Equal(t, g.Preset, got.Preset)
		assert.Equal(t, cost.ModeBaseDistance, got.CostMode)
	})

	t.Run("ActiveGameClaim", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		first, second := uuid.NewString(), uuid.NewString()
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			if err := tx.ClaimActiveGame(ctx, "alice", first); err != nil {
				return err
			}
			return tx.ClaimActiveGame(ctx, "alice", first)
		}))
		err := s.Atomically(ctx, func(tx Tx) error { return tx.ClaimActiveGame(ctx, "alice", second) })
		assert.ErrorIs(t, err, ErrActiveGameExists)

		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			if err := tx.ReleaseActiveGame(ctx, "alice", second); err != nil {
				return err
			}
			id, ok, err := tx.ActiveGame(ctx, "alice")
			require.True(t, ok)
			assert.Equal(t, first, id)
			if err != nil {
				return err
			}
			return tx.ReleaseActiveGame(ctx, "alice", first)
		}))
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error { return tx.ClaimActiveGame(ctx, "alice", second) }))
	})

	t.Run("SpendNeverOverdraws", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID := uuid.NewString()
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			_, err := tx.AddBalance(ctx, gameID, "alice", 100)
			return err
		}))

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			accepted int
		)
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := s.Atomically(ctx, func(tx Tx) error {
					_, err := tx.SpendBalance(ctx, gameID, "alice", 30)
					return err
				})
				if err == nil {
					mu.Lock()
					accepted++
					mu.Unlock()
				} else {
					assert.ErrorIs(t, err, ErrInsufficientBalance)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 3, accepted)
		bal, err := s.Balance(ctx, gameID, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(10), bal)
	})

	t.Run("SpendInsufficientReportsBalance", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID := uuid.NewString()
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			if _, err := tx.AddBalance(ctx, gameID, "bob", 40); err != nil {
				return err
			}
			have, err := tx.SpendBalance(ctx, gameID, "bob", 60)
			assert.ErrorIs(t, err, ErrInsufficientBalance)
			assert.Equal(t, int64(40), have)
			left, err := tx.SpendBalance(ctx, gameID, "bob", 0)
			assert.Equal(t, int64(40), left)
			return err
		}))
	})

	t.Run("HourlyCap", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		window := HourWindow(time.Now())
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			total, err := tx.AddHourlyEarn(ctx, "alice", window, 600, 1000)
			assert.Equal(t, int64(600), total)
			return err
		}))
		err := s.Atomically(ctx, func(tx Tx) error {
			_, err := tx.AddHourlyEarn(ctx, "alice", window, 500, 1000)
			return err
		})
		assert.ErrorIs(t, err, ErrHourlyCapExceeded)
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			total, err := tx.AddHourlyEarn(ctx, "alice", window.Add(time.Hour), 500, 1000)
			assert.Equal(t, int64(500), total)
			return err
		}))
	})

	t.Run("QueueOrderAndIdempotentEnqueue", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			for i, p := range []string{"carol", "alice", "bob"} {
				e := model.QueueEntry{ID: uuid.NewString(), PlayerID: p, JoinedAt: base.Add(time.Duration(i) * time.Second)}
				if _, err := tx.EnqueuePlayer(ctx, e); err != nil {
					return err
				}
			}
			again, err := tx.EnqueuePlayer(ctx, model.QueueEntry{ID: uuid.NewString(), PlayerID: "carol", JoinedAt: base.Add(time.Hour)})
			assert.True(t, again.JoinedAt.Equal(base))
			return err
		}))
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			head, err := tx.ClaimQueueHead(ctx, 2)
			require.Len(t, head, 2)
			assert.Equal(t, "carol", head[0].PlayerID)
			assert.Equal(t, "alice", head[1].PlayerID)
			return err
		}))
	})

	t.Run("NotificationsAreReadOnce", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID := uuid.NewString()
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			return tx.PutNotification(ctx, model.MatchNotification{PlayerID: "alice", GameID: gameID, CreatedAt: time.Now().UTC()})
		}))
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			n, ok, err := tx.TakeNotification(ctx, "alice")
			assert.True(t, ok)
			assert.Equal(t, gameID, n.GameID)
			return err
		}))
		require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
			_, ok, err := tx.TakeNotification(ctx, "alice")
			assert.False(t, ok)
			return err
		}))
	})

	t.Run("ScoringLedger", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		gameID := uuid.NewString()
		for i := 0; i < 2; i++ {
			require.NoError(t, s.Atomically(ctx, func(tx Tx) error {
				fresh, err := tx.MarkScored(ctx, gameID, time.Now().UTC())
				if err != nil || !fresh {
					return err
				}
				return tx.IncrementLeaderboard(ctx, "alice", model.LeaderboardDelta{Wins: 1, StepsSpent: 30, MovesPlayed: 2})
			}))
		}
		rec, err := s.LeaderboardRecord(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, model.LeaderboardRecord{PlayerID: "alice", Wins: 1, StepsSpent: 30, MovesPlayed: 2}, rec)

		top, err := s.TopLeaderboard(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, top)
		assert.Equal(t, "alice", top[0].PlayerID)
	})
}

func newGame() *model.Game {
	now := time.Now().UTC().Truncate(time.Millisecond)
	p, _ := cost.NewRegistry(cost.DefaultPresets()...).Lookup("balanced")
	return &model.Game{
		ID:        uuid.NewString(),
		WhiteID:   "alice",
		Board:     model.StartFEN,
		Moves:     []string{},
		Status:    model.StatusWaiting,
		Preset:    p,
		CostMode:  cost.ModeBaseDistance,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
