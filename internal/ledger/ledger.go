// Package ledger keeps the per-game step balances players earn outside the
// board and spend on moves.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"stepchess/internal/apperr"
	"stepchess/internal/model"
	"stepchess/internal/storage"
)

// Caps limits how much a player may earn. Zero disables a cap.
type Caps struct {
	MaxStepsPerCall int64
	MaxStepsPerHour int64
}

// Ledger is the step economy of all games.
type Ledger struct {
	store storage.Store
	caps  Caps
	log   *zap.Logger
	now   func() time.Time
}

// New creates a ledger. The caps are read once here.
func New(store storage.Store, caps Caps, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, caps: caps, log: log, now: time.Now}
}

// WithClock replaces the clock used to pick hourly windows.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Balance returns the player's steps in a game, zero when never written.
func (l *Ledger) Balance(ctx context.Context, gameID, playerID string) (int64, error) {
	bal, err := l.store.Balance(ctx, gameID, playerID)
	if err != nil {
		return 0, storage.Unavailable(err)
	}
	return bal, nil
}

// Earn credits delta steps to callerID in an active game they play in and
// returns the new balance.
func (l *Ledger) Earn(ctx context.Context, callerID, gameID string, delta int64) (int64, error) {
	if delta <= 0 {
		return 0, apperr.Newf(apperr.CodeInvalidDelta, "delta must be a positive integer, got %d", delta)
	}
	if l.caps.MaxStepsPerCall > 0 && delta > l.caps.MaxStepsPerCall {
		return 0, apperr.WithMetadata(apperr.CodeDeltaExceedsCap,
			fmt.Sprintf("delta %d exceeds the per-call cap of %d", delta, l.caps.MaxStepsPerCall),
			map[string]string{"cap": strconv.FormatInt(l.caps.MaxStepsPerCall, 10)})
	}

	var balance int64
	err := l.store.Atomically(ctx, func(tx storage.Tx) error {
		g, err := tx.GameForUpdate(ctx, gameID)
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.Newf(apperr.CodeGameNotFound, "game %s not found", gameID)
		}
		if err != nil {
			return err
		}
		if g.Status != model.StatusActive {
			return apperr.Newf(apperr.CodeGameNotActive, "game %s is %s", g.ID, g.Status)
		}
		if _, ok := g.ColorOf(callerID); !ok {
			return apperr.New(apperr.CodeNotAPlayer, "you are not a player in this game")
		}
		if _, err := tx.AddHourlyEarn(ctx, callerID, storage.HourWindow(l.now()), delta, l.caps.MaxStepsPerHour); err != nil {
			if errors.Is(err, storage.ErrHourlyCapExceeded) {
				return apperr.WithMetadata(apperr.CodeHourlyCapReached,
					fmt.Sprintf("hourly earn cap of %d reached", l.caps.MaxStepsPerHour),
					map[string]string{"cap": strconv.FormatInt(l.caps.MaxStepsPerHour, 10)})
			}
			return err
		}
		balance, err = tx.AddBalance(ctx, gameID, callerID, delta)
		return err
	})
	if err != nil {
		err = storage.Unavailable(err)
		if apperr.CodeOf(err).Kind() == apperr.KindUnavailable {
			l.log.Error("earn failed", zap.String("game", gameID), zap.String("player", callerID), zap.Error(err))
		}
		return 0, err
	}
	l.log.Debug("steps earned", zap.String("game", gameID), zap.String("player", callerID), zap.Int64("delta", delta), zap.Int64("balance", balance))
	return balance, nil
}

// SpendIfSufficient debits cost in its own transaction.
func (l *Ledger) SpendIfSufficient(ctx context.Context, gameID, playerID string, cost int64) (int64, error) {
	var balance int64
	err := l.store.Atomically(ctx, func(tx storage.Tx) error {
		var err error
		balance, err = Spend(ctx, tx, gameID, playerID, cost)
		return err
	})
	if err != nil {
		return 0, storage.Unavailable(err)
	}
	return balance, nil
}

// Spend debits cost within tx when the balance covers it and returns the
// new balance. A short balance is left untouched and reported as
// INSUFFICIENT_STEPS with the needed and available amounts.
func Spend(ctx context.Context, tx storage.BalanceTx, gameID, playerID string, cost int64) (int64, error) {
	if cost < 0 {
		return 0, apperr.Newf(apperr.CodeInternal, "negative cost %d", cost)
	}
	balance, err := tx.SpendBalance(ctx, gameID, playerID, cost)
	if errors.Is(err, storage.ErrInsufficientBalance) {
		return 0, Insufficient(cost, balance)
	}
	return balance, err
}

// Insufficient builds the error returned when a spend is refused.
func Insufficient(need, have int64) error {
	return apperr.WithMetadata(apperr.CodeInsufficientSteps,
		fmt.Sprintf("insufficient steps: need %d, have %d", need, have),
		map[string]string{
			"need": strconv.FormatInt(need, 10),
			"have": strconv.FormatInt(have, 10),
		})
}
