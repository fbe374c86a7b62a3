package storage

import (
	"time"

	"stepchess/internal/cost"
	"stepchess/internal/model"
)

// GameRow represents a game.
type GameRow struct {
	ID              string      `gorm:"type:uuid;primaryKey"`
	WhiteID         string      `gorm:"index"`
	BlackID         string      `gorm:"index"`
	Board           string      `gorm:"not null"`
	Moves           []string    `gorm:"serializer:json"`
	Status          string      `gorm:"index;not null"`
	Preset          cost.Preset `gorm:"serializer:json"`
	CostMode        string      `gorm:"not null"`
	Outcome         string
	WinnerID        string
	WhiteStepsSpent int64
	BlackStepsSpent int64
	WhiteMoves      int64
	BlackMoves      int64
	CreatedAt       time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime:false"`
	EndedAt         *time.Time
	Version         int64 `gorm:"not null;default:1"`
}

func (GameRow) TableName() string { return "games" }

// ActiveGameRow is the single-active-game claim of a player.
type ActiveGameRow struct {
	PlayerID string `gorm:"primaryKey"`
	GameID   string `gorm:"type:uuid;index;not null"`
}

func (ActiveGameRow) TableName() string { return "active_games" }

// StepBalanceRow holds the steps a player may spend in one game.
type StepBalanceRow struct {
	GameID   string `gorm:"type:uuid;primaryKey"`
	PlayerID string `gorm:"primaryKey"`
	Balance  int64  `gorm:"not null;check:balance >= 0"`
}

func (StepBalanceRow) TableName() string { return "step_balances" }

// HourlyEarnRow totals what a player earned within one clock hour.
type HourlyEarnRow struct {
	PlayerID    string    `gorm:"primaryKey"`
	WindowStart time.Time `gorm:"primaryKey"`
	Earned      int64     `gorm:"not null"`
}

func (HourlyEarnRow) TableName() string { return "hourly_earns" }

// QueueEntryRow is a player waiting for a match.
type QueueEntryRow struct {
	ID       string    `gorm:"type:uuid;primaryKey"`
	PlayerID string    `gorm:"uniqueIndex;not null"`
	JoinedAt time.Time `gorm:"index;not null"`
}

func (QueueEntryRow) TableName() string { return "queue_entries" }

// MatchNotificationRow tells a player which game they were paired into.
type MatchNotificationRow struct {
	PlayerID  string `gorm:"primaryKey"`
	GameID    string `gorm:"type:uuid;not null"`
	CreatedAt time.Time
}

func (MatchNotificationRow) TableName() string { return "match_notifications" }

// LeaderboardRow holds lifetime counters of a player.
type LeaderboardRow struct {
	PlayerID    string `gorm:"primaryKey"`
	Wins        int64  `gorm:"not null;default:0"`
	Losses      int64  `gorm:"not null;default:0"`
	Draws       int64  `gorm:"not null;default:0"`
	StepsSpent  int64  `gorm:"not null;default:0"`
	MovesPlayed int64  `gorm:"not null;default:0"`
}

func (LeaderboardRow) TableName() string { return "leaderboard_records" }

// ScoredGameRow marks a game whose result reached the leaderboard.
type ScoredGameRow struct {
	GameID   string `gorm:"type:uuid;primaryKey"`
	ScoredAt time.Time
}

func (ScoredGameRow) TableName() string { return "scored_games" }

func gameRowFrom(g *model.Game) GameRow {
	return GameRow{
		ID:              g.ID,
		WhiteID:         g.WhiteID,
		BlackID:         g.BlackID,
		Board:           g.Board,
		Moves:           append([]string(nil), g.Moves...),
		Status:          string(g.Status),
		Preset:          g.Preset,
		CostMode:        string(g.CostMode),
		Outcome:         string(g.Outcome),
		WinnerID:        g.WinnerID,
		WhiteStepsSpent: g.WhiteStepsSpent,
		BlackStepsSpent: g.BlackStepsSpent,
		WhiteMoves:      g.WhiteMoves,
		BlackMoves:      g.BlackMoves,
		CreatedAt:       g.CreatedAt,
		UpdatedAt:       g.UpdatedAt,
		EndedAt:         g.EndedAt,
		Version:         g.Version,
	}
}

func (r GameRow) toModel() *model.Game {
	moves := r.Moves
	if moves == nil {
		moves = []string{}
	}
	return &model.Game{
		ID:              r.ID,
		WhiteID:         r.WhiteID,
		BlackID:         r.BlackID,
		Board:           r.Board,
		Moves:           moves,
		Status:          model.Status(r.Status),
		Preset:          r.Preset,
		CostMode:        cost.Mode(r.CostMode),
		Outcome:         model.Outcome(r.Outcome),
		WinnerID:        r.WinnerID,
		WhiteStepsSpent: r.WhiteStepsSpent,
		BlackStepsSpent: r.BlackStepsSpent,
		WhiteMoves:      r.WhiteMoves,
		BlackMoves:      r.BlackMoves,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		EndedAt:         r.EndedAt,
		Version:         r.Version,
	}
}

func (r LeaderboardRow) toModel() model.LeaderboardRecord {
	return model.LeaderboardRecord{
		PlayerID:    r.PlayerID,
		Wins:        r.Wins,
		Losses:      r.Losses,
		Draws:       r.Draws,
		StepsSpent:  r.StepsSpent,
		MovesPlayed: r.MovesPlayed,
	}
}
