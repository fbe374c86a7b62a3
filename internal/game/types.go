package game

import (
	"context"
	"time"

	"stepchess/internal/model"
)

// MoveRequest represents a move request from a player
type MoveRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Promotion   string `json:"promotion,omitempty"`
	KingCapture bool   `json:"kingCapture,omitempty"`
}

// MoveResult is what a committed move returns to the mover
type MoveResult struct {
	Board   string   `json:"board"`
	Moves   []string `json:"moves"`
	Cost    int64    `json:"cost"`
	Balance int64    `json:"balance"`
}

// GameState represents the current state of a game as pushed to watchers
type GameState struct {
	Kind      string        `json:"kind"`
	ID        string        `json:"id"`
	Board     string        `json:"board"`
	Turn      string        `json:"turn"`
	Moves     []string      `json:"moves"`
	Status    model.Status  `json:"status"`
	Outcome   model.Outcome `json:"outcome,omitempty"`
	WinnerID  string        `json:"winnerId,omitempty"`
	WhiteID   string        `json:"whiteId"`
	BlackID   string        `json:"blackId,omitempty"`
	UpdatedAt int64         `json:"updatedAt"`
	Version   int64         `json:"version"`
	Watchers  int           `json:"watchers"`
}

// CompletionListener observes games entering a terminal state. before is the
// game as it was read inside the ending transaction, after is what was
// committed.
type CompletionListener func(ctx context.Context, before, after *model.Game)

// Options tunes an Engine. The zero value is usable.
type Options struct {
	// AllowSelfPlay lets the creator of a game join it as the second player.
	AllowSelfPlay bool
	// Clock defaults to time.Now.
	Clock func() time.Time
	// Dispatch runs completion listeners. It defaults to a new goroutine per
	// listener call.
	Dispatch func(func())
	Hub      *Hub
}
