// Package model holds the records shared by the engine, the ledger, the
// pairer, the accumulator and the stores.
package model

import (
	"time"

	"stepchess/internal/cost"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Status is the game lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further action is accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Outcome is how a game ended.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeWin       Outcome = "win"
	OutcomeDraw      Outcome = "draw"
	OutcomeAbandoned Outcome = "abandoned"
)

// ParseOutcome validates a caller-supplied outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch Outcome(s) {
	case OutcomeWin, OutcomeDraw, OutcomeAbandoned:
		return Outcome(s), true
	}
	return OutcomeNone, false
}

// Color is a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Game is the unit of play.
type Game struct {
	ID       string      `json:"id"`
	WhiteID  string      `json:"whiteId"`
	BlackID  string      `json:"blackId,omitempty"`
	Board    string      `json:"board"`
	Moves    []string    `json:"moves"`
	Status   Status      `json:"status"`
	Preset   cost.Preset `json:"preset"`
	CostMode cost.Mode   `json:"costMode"`
	Outcome  Outcome     `json:"outcome,omitempty"`
	WinnerID string      `json:"winnerId,omitempty"`

	WhiteStepsSpent int64 `json:"whiteStepsSpent"`
	BlackStepsSpent int64 `json:"blackStepsSpent"`
	WhiteMoves      int64 `json:"whiteMoves"`
	BlackMoves      int64 `json:"blackMoves"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`

	// Version is set by the store: 1 on insert, +1 on every update.
	Version int64 `json:"version"`
}

// ColorOf returns the side played by playerID. When both sides are the same
// player (self-play), white is reported.
func (g *Game) ColorOf(playerID string) (Color, bool) {
	switch {
	case playerID == "":
		return "", false
	case g.WhiteID == playerID:
		return White, true
	case g.BlackID == playerID:
		return Black, true
	}
	return "", false
}

// Clone returns a deep copy.
func (g *Game) Clone() *Game {
	c := *g
	c.Moves = append([]string(nil), g.Moves...)
	if g.EndedAt != nil {
		t := *g.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// QueueEntry is a player waiting for an opponent.
type QueueEntry struct {
	ID       string    `json:"id"`
	PlayerID string    `json:"playerId"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MatchNotification tells a player which game the pairer created for them.
type MatchNotification struct {
	PlayerID  string    `json:"playerId"`
	GameID    string    `json:"gameId"`
	CreatedAt time.Time `json:"createdAt"`
}

// LeaderboardRecord holds per-player lifetime counters.
type LeaderboardRecord struct {
	PlayerID    string `json:"playerId"`
	Wins        int64  `json:"wins"`
	Losses      int64  `json:"losses"`
	Draws       int64  `json:"draws"`
	StepsSpent  int64  `json:"stepsSpent"`
	MovesPlayed int64  `json:"movesPlayed"`
}

// LeaderboardDelta is a commutative increment to a LeaderboardRecord.
type LeaderboardDelta struct {
	Wins        int64
	Losses      int64
	Draws       int64
	StepsSpent  int64
	MovesPlayed int64
}

// Zero reports whether applying d would change nothing.
func (d LeaderboardDelta) Zero() bool {
	return d == LeaderboardDelta{}
}

// Apply adds d to r.
func (r *LeaderboardRecord) Apply(d LeaderboardDelta) {
	r.Wins += d.Wins
	r.Losses += d.Losses
	r.Draws += d.Draws
	r.StepsSpent += d.StepsSpent
	r.MovesPlayed += d.MovesPlayed
}
