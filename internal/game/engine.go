package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"stepchess/internal/apperr"
	"stepchess/internal/cost"
	"stepchess/internal/ledger"
	"stepchess/internal/model"
	"stepchess/internal/storage"
)

// Engine owns the lifecycle of games: creation, joining, moves and endings.
// All mutations run inside store transactions; the engine itself keeps no
// game state besides the watcher hub.
type Engine struct {
	store     storage.Store
	presets   *cost.Registry
	proc      *Processor
	hub       *Hub
	log       *zap.Logger
	now       func() time.Time
	dispatch  func(func())
	selfPlay  bool
	listeners []CompletionListener
}

// NewEngine creates an engine.
func NewEngine(store storage.Store, presets *cost.Registry, oracle Oracle, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		presets:  presets,
		proc:     NewProcessor(oracle),
		hub:      opts.Hub,
		log:      log,
		now:      opts.Clock,
		dispatch: opts.Dispatch,
		selfPlay: opts.AllowSelfPlay,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.dispatch == nil {
		e.dispatch = func(f func()) { go f() }
	}
	if e.hub == nil {
		e.hub = NewHub()
	}
	return e
}

// OnEnd registers l to be told about every game that reaches a terminal
// state. Listeners must be registered before the engine serves requests.
func (e *Engine) OnEnd(l CompletionListener) {
	e.listeners = append(e.listeners, l)
}

// Hub returns the watcher hub fed by this engine.
func (e *Engine) Hub() *Hub { return e.hub }

// Presets returns the preset catalogue games are created from.
func (e *Engine) Presets() *cost.Registry { return e.presets }

// CreateGame opens a waiting game owned by creatorID.
func (e *Engine) CreateGame(ctx context.Context, creatorID, presetName, modeName string) (*model.Game, error) {
	if creatorID == "" {
		return nil, apperr.New(apperr.CodeMissingCaller, "caller id is required")
	}
	preset, mode, err := e.resolve(presetName, modeName)
	if err != nil {
		return nil, err
	}
	g := e.newGame(creatorID, preset, mode)

	err = e.store.Atomically(ctx, func(tx storage.Tx) error {
		if err := claim(ctx, tx, creatorID, g.ID); err != nil {
			return err
		}
		return tx.InsertGame(ctx, g)
	})
	if err != nil {
		return nil, e.fail("create game", err)
	}
	e.log.Debug("game created", zap.String("game", g.ID), zap.String("creator", creatorID), zap.String("preset", preset.Name))
	return g, nil
}

// StartMatch creates an active game with both players seated, inside a
// transaction owned by the caller. It is the creation path used by the
// pairer.
func (e *Engine) StartMatch(ctx context.Context, tx storage.Tx, whiteID, blackID, presetName, modeName string) (*model.Game, error) {
	preset, mode, err := e.resolve(presetName, modeName)
	if err != nil {
		return nil, err
	}
	g := e.newGame(whiteID, preset, mode)
	g.BlackID = blackID
	g.Status = model.StatusActive
	if err := claim(ctx, tx, whiteID, g.ID); err != nil {
		return nil, err
	}
	if err := claim(ctx, tx, blackID, g.ID); err != nil {
		return nil, err
	}
	if err := tx.InsertGame(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// JoinGame seats joinerID as black and starts the game.
func (e *Engine) JoinGame(ctx context.Context, joinerID, gameID string) (*model.Game, error) {
	if joinerID == "" {
		return nil, apperr.New(apperr.CodeMissingCaller, "caller id is required")
	}
	var joined *model.Game
	err := e.store.Atomically(ctx, func(tx storage.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Status != model.StatusWaiting || g.BlackID != "" {
			return apperr.Newf(apperr.CodeGameNotWaiting, "game %s is %s, not waiting for a player", g.ID, g.Status)
		}
		if joinerID == g.WhiteID && !e.selfPlay {
			return apperr.New(apperr.CodeSelfJoin, "you cannot join your own game")
		}
		if err := claim(ctx, tx, joinerID, g.ID); err != nil {
			return err
		}
		g.BlackID = joinerID
		g.Status = model.StatusActive
		g.UpdatedAt = e.now().UTC()
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		joined = g
		return nil
	})
	if err != nil {
		return nil, e.fail("join game", err)
	}
	e.hub.Publish(joined)
	return joined, nil
}

// MakeMove validates, prices and applies a move for callerID. The step
// spend and the board update commit together or not at all.
func (e *Engine) MakeMove(ctx context.Context, callerID, gameID string, req MoveRequest) (MoveResult, error) {
	var (
		res   MoveResult
		moved *model.Game
	)
	err := e.store.Atomically(ctx, func(tx storage.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if err := requireActive(g); err != nil {
			return err
		}
		color, ok := g.ColorOf(callerID)
		if !ok {
			return apperr.New(apperr.CodeNotAPlayer, "you are not a player in this game")
		}
		mv, err := e.proc.Process(g, color, g.WhiteID == g.BlackID, req)
		if err != nil {
			return err
		}
		balance, err := ledger.Spend(ctx, tx, g.ID, callerID, mv.Cost)
		if err != nil {
			return err
		}

		g.Board = mv.Board
		g.Moves = append(g.Moves, mv.Token)
		if mv.Piece.Color == model.White {
			g.WhiteStepsSpent += mv.Cost
			g.WhiteMoves++
		} else {
			g.BlackStepsSpent += mv.Cost
			g.BlackMoves++
		}
		g.UpdatedAt = e.now().UTC()
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		res = MoveResult{
			Board:   g.Board,
			Moves:   append([]string{}, g.Moves...),
			Cost:    mv.Cost,
			Balance: balance,
		}
		moved = g
		return nil
	})
	if err != nil {
		return MoveResult{}, e.fail("make move", err)
	}
	e.hub.Publish(moved)
	return res, nil
}

// EndGame finishes a game on behalf of one of its players. win makes the
// caller the winner.
func (e *Engine) EndGame(ctx context.Context, callerID, gameID, outcomeName string) (*model.Game, error) {
	outcome, ok := model.ParseOutcome(outcomeName)
	if !ok {
		return nil, apperr.Newf(apperr.CodeInvalidOutcome, "outcome must be win, draw or abandoned, got %q", outcomeName)
	}
	var before, after *model.Game
	err := e.store.Atomically(ctx, func(tx storage.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Status.Terminal() {
			return apperr.Newf(apperr.CodeGameFinished, "game %s is already %s", g.ID, g.Status)
		}
		if _, ok := g.ColorOf(callerID); !ok {
			return apperr.New(apperr.CodeNotAPlayer, "you are not a player in this game")
		}
		if g.Status == model.StatusWaiting && outcome != model.OutcomeAbandoned {
			return apperr.New(apperr.CodeGameNotActive, "a game without an opponent can only be abandoned")
		}
		before = g.Clone()

		now := e.now().UTC()
		g.Outcome = outcome
		g.Status = model.StatusCompleted
		if outcome == model.OutcomeAbandoned {
			g.Status = model.StatusAbandoned
		}
		if outcome == model.OutcomeWin {
			g.WinnerID = callerID
		}
		g.UpdatedAt = now
		g.EndedAt = &now

		for _, p := range []string{g.WhiteID, g.BlackID} {
			if p == "" {
				continue
			}
			if err := tx.ReleaseActiveGame(ctx, p, g.ID); err != nil {
				return err
			}
		}
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		after = g
		return nil
	})
	if err != nil {
		return nil, e.fail("end game", err)
	}
	e.log.Info("game ended",
		zap.String("game", after.ID),
		zap.String("status", string(after.Status)),
		zap.String("outcome", string(after.Outcome)),
		zap.String("winner", after.WinnerID))
	e.hub.Publish(after)
	e.notify(ctx, before, after)
	return after, nil
}

// GetGame reads the current state of a game.
func (e *Engine) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	g, err := e.store.Game(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, gameNotFound(gameID)
	}
	if err != nil {
		return nil, e.fail("get game", err)
	}
	return g, nil
}

func (e *Engine) notify(ctx context.Context, before, after *model.Game) {
	ctx = context.WithoutCancel(ctx)
	for _, l := range e.listeners {
		b, a := before.Clone(), after.Clone()
		e.dispatch(func() {
			defer func() {
				if r := recover(); r != nil {
					e.log.Error("completion listener panicked", zap.String("game", a.ID), zap.Any("panic", r))
				}
			}()
			l(ctx, b, a)
		})
	}
}

func (e *Engine) resolve(presetName, modeName string) (cost.Preset, cost.Mode, error) {
	preset, ok := e.presets.Lookup(presetName)
	if !ok {
		return cost.Preset{}, "", apperr.Newf(apperr.CodeUnknownPreset, "unknown preset %q", presetName)
	}
	mode, ok := cost.ParseMode(modeName)
	if !ok {
		return cost.Preset{}, "", apperr.Newf(apperr.CodeUnknownCostMode, "unknown cost mode %q", modeName)
	}
	return preset, mode, nil
}

func (e *Engine) newGame(whiteID string, preset cost.Preset, mode cost.Mode) *model.Game {
	now := e.now().UTC()
	return &model.Game{
		ID:        uuid.NewString(),
		WhiteID:   whiteID,
		Board:     model.StartFEN,
		Moves:     []string{},
		Status:    model.StatusWaiting,
		Preset:    preset,
		CostMode:  mode,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// fail converts err for the caller and logs failures the caller cannot fix.
func (e *Engine) fail(op string, err error) error {
	err = storage.Unavailable(err)
	switch apperr.CodeOf(err).Kind() {
	case apperr.KindInternal, apperr.KindUnavailable:
		e.log.Error(op+" failed", zap.Error(err))
	}
	return err
}

func lockGame(ctx context.Context, tx storage.GameTx, gameID string) (*model.Game, error) {
	g, err := tx.GameForUpdate(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, gameNotFound(gameID)
	}
	return g, err
}

func claim(ctx context.Context, tx storage.ClaimTx, playerID, gameID string) error {
	err := tx.ClaimActiveGame(ctx, playerID, gameID)
	if errors.Is(err, storage.ErrActiveGameExists) {
		return apperr.WithMetadata(apperr.CodeActiveGameExists,
			fmt.Sprintf("player %s already has an active game", playerID),
			map[string]string{"playerId": playerID})
	}
	return err
}

func requireActive(g *model.Game) error {
	switch g.Status {
	case model.StatusActive:
		return nil
	case model.StatusWaiting:
		return apperr.Newf(apperr.CodeGameNotActive, "game %s is still waiting for an opponent", g.ID)
	default:
		return apperr.Newf(apperr.CodeGameFinished, "game %s is already %s", g.ID, g.Status)
	}
}

func gameNotFound(id string) error {
	return apperr.Newf(apperr.CodeGameNotFound, "game %s not found", id)
}
