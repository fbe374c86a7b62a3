// Package leaderboard accumulates per-player results of completed games.
package leaderboard

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"stepchess/internal/model"
	"stepchess/internal/storage"
)

const (
	defaultTop = 20
	maxTop     = 100
	sweepBatch = 100
)

// Accumulator owns leaderboard records. Each completed game is scored at
// most once, tracked by game id.
type Accumulator struct {
	store storage.Store
	log   *zap.Logger
	now   func() time.Time
}

// New creates an accumulator.
func New(store storage.Store, log *zap.Logger) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{store: store, log: log, now: time.Now}
}

// OnGameCompleted scores after when the transition from before is a fresh
// entry into the completed state. It is meant to be registered as a game
// completion listener.
func (a *Accumulator) OnGameCompleted(ctx context.Context, before, after *model.Game) {
	if after == nil || after.Status != model.StatusCompleted {
		return
	}
	if before != nil && before.Status == model.StatusCompleted {
		return
	}
	if _, err := a.Score(ctx, after); err != nil {
		a.log.Warn("scoring failed, sweep will retry", zap.String("game", after.ID), zap.Error(err))
	}
}

// Score applies the result of a completed game. It reports whether this call
// did the scoring; a game that was scored before is left alone.
func (a *Accumulator) Score(ctx context.Context, g *model.Game) (bool, error) {
	if g.Status != model.StatusCompleted {
		return false, nil
	}
	deltas := Deltas(g)
	var scored bool
	err := a.store.Atomically(ctx, func(tx storage.Tx) error {
		fresh, err := tx.MarkScored(ctx, g.ID, a.now().UTC())
		if err != nil || !fresh {
			return err
		}
		for player, d := range deltas {
			if err := tx.IncrementLeaderboard(ctx, player, d); err != nil {
				return err
			}
		}
		scored = true
		return nil
	})
	if err != nil {
		return false, storage.Unavailable(err)
	}
	if scored {
		a.log.Debug("game scored", zap.String("game", g.ID), zap.String("outcome", string(g.Outcome)))
	}
	return scored, nil
}

// Deltas computes what a completed game adds to each player's record. A game
// without a second player or an outcome contributes nothing.
func Deltas(g *model.Game) map[string]model.LeaderboardDelta {
	out := map[string]model.LeaderboardDelta{}
	if g.WhiteID == "" || g.BlackID == "" || g.Outcome == model.OutcomeNone {
		return out
	}
	white := model.LeaderboardDelta{StepsSpent: g.WhiteStepsSpent, MovesPlayed: g.WhiteMoves}
	black := model.LeaderboardDelta{StepsSpent: g.BlackStepsSpent, MovesPlayed: g.BlackMoves}
	switch g.Outcome {
	case model.OutcomeWin:
		switch g.WinnerID {
		case g.WhiteID:
			white.Wins, black.Losses = 1, 1
		case g.BlackID:
			black.Wins, white.Losses = 1, 1
		default:
			return out
		}
	case model.OutcomeDraw:
		white.Draws, black.Draws = 1, 1
	default:
		return out
	}
	if g.WhiteID == g.BlackID {
		// self-play only counts usage
		out[g.WhiteID] = model.LeaderboardDelta{
			StepsSpent:  white.StepsSpent + black.StepsSpent,
			MovesPlayed: white.MovesPlayed + black.MovesPlayed,
		}
		return out
	}
	out[g.WhiteID] = white
	out[g.BlackID] = black
	return out
}

// Record returns the lifetime counters of a player.
func (a *Accumulator) Record(ctx context.Context, playerID string) (model.LeaderboardRecord, error) {
	r, err := a.store.LeaderboardRecord(ctx, playerID)
	if err != nil {
		return model.LeaderboardRecord{}, storage.Unavailable(err)
	}
	return r, nil
}

// Top returns the best players by wins, then draws.
func (a *Accumulator) Top(ctx context.Context, limit int) ([]model.LeaderboardRecord, error) {
	if limit <= 0 {
		limit = defaultTop
	}
	limit = min(limit, maxTop)
	rs, err := a.store.TopLeaderboard(ctx, limit)
	if err != nil {
		return nil, storage.Unavailable(err)
	}
	return rs, nil
}

// Sweep scores completed games a dropped trigger left behind.
func (a *Accumulator) Sweep(ctx context.Context) (int, error) {
	games, err := a.store.UnscoredCompletedGames(ctx, sweepBatch)
	if err != nil {
		return 0, storage.Unavailable(err)
	}
	n := 0
	for _, g := range games {
		scored, err := a.Score(ctx, g)
		if err != nil {
			return n, err
		}
		if scored {
			n++
		}
	}
	return n, nil
}

// ScheduleSweep registers a periodic Sweep on s.
func (a *Accumulator) ScheduleSweep(ctx context.Context, s gocron.Scheduler, every time.Duration) error {
	_, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			n, err := a.Sweep(ctx)
			if err != nil {
				a.log.Warn("leaderboard sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				a.log.Info("leaderboard sweep scored games", zap.Int("games", n))
			}
		}),
		gocron.WithName("leaderboard-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
