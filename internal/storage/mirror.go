package storage

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"stepchess/internal/model"
)

// ErrMirrorWrite is returned when a transaction committed to the durable
// store but the live copy of a game it wrote could not be refreshed.
var ErrMirrorWrite = errors.New("storage: live mirror write failed")

// LiveCache is a fast read copy of game state.
type LiveCache interface {
	GetGame(ctx context.Context, id string) (*model.Game, bool, error)
	// PutGame stores g unless the cache holds the same or a newer version.
	// Puts from concurrent commits and read fills may land in any order.
	PutGame(ctx context.Context, g *model.Game) error
	DeleteGame(ctx context.Context, id string) error
	Close() error
}

// Mirrored keeps a LiveCache in step with a durable Store. Game reads are
// served from the cache when possible; every game written in a committed
// transaction is pushed to the cache afterwards.
type Mirrored struct {
	Store
	live LiveCache
	log  *zap.Logger
}

// NewMirrored wraps durable with live.
func NewMirrored(durable Store, live LiveCache, log *zap.Logger) *Mirrored {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirrored{Store: durable, live: live, log: log}
}

func (m *Mirrored) Atomically(ctx context.Context, fn func(tx Tx) error) error {
	var rec *recordingTx
	err := m.Store.Atomically(ctx, func(tx Tx) error {
		rec = &recordingTx{Tx: tx, written: make(map[string]*model.Game)}
		return fn(rec)
	})
	if err != nil || rec == nil {
		return err
	}
	for id, g := range rec.written {
		if perr := m.live.PutGame(ctx, g); perr != nil {
			m.log.Warn("live mirror diverged", zap.String("game", id), zap.Error(perr))
			if derr := m.live.DeleteGame(context.WithoutCancel(ctx), id); derr != nil {
				m.log.Error("live mirror invalidate failed", zap.String("game", id), zap.Error(derr))
			}
			return errors.Join(ErrMirrorWrite, perr)
		}
	}
	return nil
}

func (m *Mirrored) Game(ctx context.Context, id string) (*model.Game, error) {
	g, ok, err := m.live.GetGame(ctx, id)
	if err != nil {
		m.log.Debug("live mirror read failed", zap.String("game", id), zap.Error(err))
	}
	if ok {
		return g, nil
	}
	g, err = m.Store.Game(ctx, id)
	if err != nil {
		return nil, err
	}
	if perr := m.live.PutGame(ctx, g); perr != nil {
		m.log.Debug("live mirror fill failed", zap.String("game", id), zap.Error(perr))
	}
	return g, nil
}

func (m *Mirrored) Close() error {
	return errors.Join(m.live.Close(), m.Store.Close())
}

type recordingTx struct {
	Tx
	written map[string]*model.Game
}

func (r *recordingTx) InsertGame(ctx context.Context, g *model.Game) error {
	if err := r.Tx.InsertGame(ctx, g); err != nil {
		return err
	}
	r.written[g.ID] = g.Clone()
	return nil
}

func (r *recordingTx) UpdateGame(ctx context.Context, g *model.Game) error {
	if err := r.Tx.UpdateGame(ctx, g); err != nil {
		return err
	}
	r.written[g.ID] = g.Clone()
	return nil
}
