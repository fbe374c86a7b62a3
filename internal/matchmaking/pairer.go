// Package matchmaking pairs queued players into games in strict arrival
// order.
package matchmaking

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"stepchess/internal/apperr"
	"stepchess/internal/model"
	"stepchess/internal/storage"
)

// maxDrain bounds a single drain so a sweep cannot run forever.
const maxDrain = 1000

// Matcher creates a game with both players seated inside tx.
type Matcher interface {
	StartMatch(ctx context.Context, tx storage.Tx, whiteID, blackID, presetName, modeName string) (*model.Game, error)
}

// Settings picks what auto-matched games are played with.
type Settings struct {
	Preset string
	Mode   string
}

// Pairer owns the queue and the match notifications.
type Pairer struct {
	store    storage.Store
	matcher  Matcher
	settings Settings
	log      *zap.Logger
	now      func() time.Time
	kick     chan struct{}
}

// New creates a pairer.
func New(store storage.Store, matcher Matcher, settings Settings, log *zap.Logger) *Pairer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pairer{
		store:    store,
		matcher:  matcher,
		settings: settings,
		log:      log,
		now:      time.Now,
		kick:     make(chan struct{}, 1),
	}
}

// WithClock replaces the clock used to stamp queue entries.
func (p *Pairer) WithClock(now func() time.Time) *Pairer {
	p.now = now
	return p
}

// EnterQueue adds playerID to the queue. Entering twice keeps the original
// position.
func (p *Pairer) EnterQueue(ctx context.Context, playerID string) (model.QueueEntry, error) {
	if playerID == "" {
		return model.QueueEntry{}, apperr.New(apperr.CodeMissingCaller, "caller id is required")
	}
	var entry model.QueueEntry
	err := p.store.Atomically(ctx, func(tx storage.Tx) error {
		var err error
		entry, err = tx.EnqueuePlayer(ctx, model.QueueEntry{
			ID:       uuid.NewString(),
			PlayerID: playerID,
			JoinedAt: p.now().UTC(),
		})
		return err
	})
	if err != nil {
		return model.QueueEntry{}, storage.Unavailable(err)
	}
	p.Trigger()
	return entry, nil
}

// LeaveQueue withdraws playerID. It reports whether an entry was removed.
func (p *Pairer) LeaveQueue(ctx context.Context, playerID string) (bool, error) {
	var removed bool
	err := p.store.Atomically(ctx, func(tx storage.Tx) error {
		var err error
		removed, err = tx.RemoveQueueEntry(ctx, playerID)
		return err
	})
	if err != nil {
		return false, storage.Unavailable(err)
	}
	return removed, nil
}

// TakeNotification consumes the pending match notification of playerID.
func (p *Pairer) TakeNotification(ctx context.Context, playerID string) (model.MatchNotification, error) {
	var (
		n  model.MatchNotification
		ok bool
	)
	err := p.store.Atomically(ctx, func(tx storage.Tx) error {
		var err error
		n, ok, err = tx.TakeNotification(ctx, playerID)
		return err
	})
	if err != nil {
		return model.MatchNotification{}, storage.Unavailable(err)
	}
	if !ok {
		return model.MatchNotification{}, apperr.New(apperr.CodeNoMatchYet, "no match yet")
	}
	return n, nil
}

// PairOnce pairs the two oldest queued players, if there are two. Queued
// players who meanwhile hold an active game are dropped from the queue.
// Everything happens in one transaction: on failure both entries stay
// queued for the next run.
func (p *Pairer) PairOnce(ctx context.Context) (*model.Game, error) {
	var created *model.Game
	err := p.store.Atomically(ctx, func(tx storage.Tx) error {
		head, err := p.claimHead(ctx, tx)
		if err != nil || len(head) < 2 {
			return err
		}
		white, black := head[0], head[1]
		g, err := p.matcher.StartMatch(ctx, tx, white.PlayerID, black.PlayerID, p.settings.Preset, p.settings.Mode)
		if err != nil {
			return err
		}
		now := p.now().UTC()
		for _, e := range head {
			if err := tx.PutNotification(ctx, model.MatchNotification{PlayerID: e.PlayerID, GameID: g.ID, CreatedAt: now}); err != nil {
				return err
			}
			if _, err := tx.RemoveQueueEntry(ctx, e.PlayerID); err != nil {
				return err
			}
		}
		created = g
		return nil
	})
	if err != nil {
		err = storage.Unavailable(err)
		p.log.Error("pairing failed", zap.Error(err))
		return nil, err
	}
	if created != nil {
		p.log.Info("players paired",
			zap.String("game", created.ID),
			zap.String("white", created.WhiteID),
			zap.String("black", created.BlackID))
	}
	return created, nil
}

// claimHead locks the two oldest entries whose players are free to play.
func (p *Pairer) claimHead(ctx context.Context, tx storage.Tx) ([]model.QueueEntry, error) {
	for {
		head, err := tx.ClaimQueueHead(ctx, 2)
		if err != nil {
			return nil, err
		}
		evicted := false
		for _, e := range head {
			gameID, busy, err := tx.ActiveGame(ctx, e.PlayerID)
			if err != nil {
				return nil, err
			}
			if !busy {
				continue
			}
			p.log.Info("dropping queued player with an active game", zap.String("player", e.PlayerID), zap.String("game", gameID))
			if _, err := tx.RemoveQueueEntry(ctx, e.PlayerID); err != nil {
				return nil, err
			}
			evicted = true
		}
		if !evicted {
			return head, nil
		}
	}
}

// Drain pairs until fewer than two players remain queued and returns how
// many games were created.
func (p *Pairer) Drain(ctx context.Context) (int, error) {
	n := 0
	for n < maxDrain {
		g, err := p.PairOnce(ctx)
		if err != nil {
			return n, err
		}
		if g == nil {
			return n, nil
		}
		n++
	}
	return n, nil
}

// Trigger asks the background loop for a pairing run without blocking.
func (p *Pairer) Trigger() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Run serves triggers until ctx is done.
func (p *Pairer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.kick:
			if _, err := p.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.log.Warn("triggered pairing incomplete, sweep will retry", zap.Error(err))
			}
		}
	}
}

// ScheduleSweep registers a periodic drain on s to recover from lost
// triggers.
func (p *Pairer) ScheduleSweep(ctx context.Context, s gocron.Scheduler, every time.Duration) error {
	_, err := s.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			n, err := p.Drain(ctx)
			if err != nil {
				p.log.Warn("pairing sweep failed", zap.Error(err))
				return
			}
			if n > 0 {
				p.log.Info("pairing sweep created games", zap.Int("games", n))
			}
		}),
		gocron.WithName("matchmaking-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	return err
}
