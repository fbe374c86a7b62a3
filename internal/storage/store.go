// Package storage holds the transactional persistence boundary: a gorm
// backed postgres store, an in-memory store and a redis live mirror.
package storage

import (
	"context"
	"errors"
	"time"

	"stepchess/internal/apperr"
	"stepchess/internal/model"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("storage: record not found")
	// ErrActiveGameExists is returned when a player already holds a claim on
	// another non-terminal game.
	ErrActiveGameExists = errors.New("storage: player already has an active game")
	// ErrInsufficientBalance is returned by SpendBalance when the balance is
	// lower than the cost. The balance returned alongside is the current one.
	ErrInsufficientBalance = errors.New("storage: insufficient balance")
	// ErrHourlyCapExceeded is returned when an earn would push the hourly
	// total over its limit.
	ErrHourlyCapExceeded = errors.New("storage: hourly earn cap exceeded")
)

// Store is the durable state of the service. Every mutation happens inside
// Atomically; plain reads may run outside a transaction.
type Store interface {
	// Atomically runs fn in a single transaction. A non-nil error from fn
	// rolls back every write fn made.
	Atomically(ctx context.Context, fn func(tx Tx) error) error

	Game(ctx context.Context, id string) (*model.Game, error)
	Balance(ctx context.Context, gameID, playerID string) (int64, error)
	LeaderboardRecord(ctx context.Context, playerID string) (model.LeaderboardRecord, error)
	TopLeaderboard(ctx context.Context, limit int) ([]model.LeaderboardRecord, error)
	UnscoredCompletedGames(ctx context.Context, limit int) ([]*model.Game, error)

	Close() error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	GameTx
	ClaimTx
	BalanceTx
	QueueTx
	LeaderboardTx
}

// GameTx reads and writes game rows.
type GameTx interface {
	// GameForUpdate loads a game and holds its row lock until commit.
	GameForUpdate(ctx context.Context, id string) (*model.Game, error)
	InsertGame(ctx context.Context, g *model.Game) error
	UpdateGame(ctx context.Context, g *model.Game) error
}

// ClaimTx manages the one-non-terminal-game-per-player claim.
type ClaimTx interface {
	// ClaimActiveGame records gameID as playerID's active game. Claiming the
	// game a player already holds is a no-op; any other existing claim
	// yields ErrActiveGameExists.
	ClaimActiveGame(ctx context.Context, playerID, gameID string) error
	// ReleaseActiveGame drops the claim only when it still points at gameID.
	ReleaseActiveGame(ctx context.Context, playerID, gameID string) error
	ActiveGame(ctx context.Context, playerID string) (string, bool, error)
}

// BalanceTx manages per-game step balances and hourly earn windows.
type BalanceTx interface {
	Balance(ctx context.Context, gameID, playerID string) (int64, error)
	// AddBalance increments the balance and returns the new value.
	AddBalance(ctx context.Context, gameID, playerID string, delta int64) (int64, error)
	// SpendBalance decrements the balance by cost only if the balance covers
	// it. It returns the resulting balance, or the untouched balance together
	// with ErrInsufficientBalance.
	SpendBalance(ctx context.Context, gameID, playerID string, cost int64) (int64, error)
	// AddHourlyEarn adds delta to the player's total for the hour starting at
	// window unless that would exceed limit. A zero limit disables the check.
	AddHourlyEarn(ctx context.Context, playerID string, window time.Time, delta, limit int64) (int64, error)
}

// QueueTx manages the matchmaking queue and match notifications.
type QueueTx interface {
	// EnqueuePlayer inserts e unless the player is already queued, in which
	// case the existing entry is returned unchanged.
	EnqueuePlayer(ctx context.Context, e model.QueueEntry) (model.QueueEntry, error)
	RemoveQueueEntry(ctx context.Context, playerID string) (bool, error)
	// ClaimQueueHead locks up to n of the oldest entries, skipping entries
	// locked by concurrent transactions.
	ClaimQueueHead(ctx context.Context, n int) ([]model.QueueEntry, error)

	PutNotification(ctx context.Context, n model.MatchNotification) error
	// TakeNotification removes and returns the player's pending notification.
	TakeNotification(ctx context.Context, playerID string) (model.MatchNotification, bool, error)
}

// LeaderboardTx manages leaderboard counters and the scored-game ledger.
type LeaderboardTx interface {
	// MarkScored records gameID as scored. It reports false when the game had
	// already been scored.
	MarkScored(ctx context.Context, gameID string, at time.Time) (bool, error)
	IncrementLeaderboard(ctx context.Context, playerID string, d model.LeaderboardDelta) error
}

// HourWindow truncates t to the start of its clock hour in UTC.
func HourWindow(t time.Time) time.Time {
	return t.UTC().Truncate(time.Hour)
}

// Unavailable maps a failure of the persistence layer onto the error
// taxonomy. Errors that already carry a code pass through unchanged.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	var e *apperr.Error
	switch {
	case errors.As(err, &e):
		return e
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return apperr.Wrap(apperr.CodeTimeout, "operation did not finish in time", err)
	case errors.Is(err, ErrMirrorWrite):
		return apperr.Wrap(apperr.CodeMirrorWrite, "saved, but the live copy could not be refreshed", err)
	}
	return apperr.Wrap(apperr.CodeStoreUnavailable, "store unavailable", err)
}
