package game

import (
	"strings"

	"stepchess/internal/model"
)

// StateOf returns the snapshot of g pushed to watchers.
func StateOf(g *model.Game, watchers int) GameState {
	return GameState{
		Kind:      "state",
		ID:        g.ID,
		Board:     g.Board,
		Turn:      string(Turn(g.Board)),
		Moves:     append([]string{}, g.Moves...),
		Status:    g.Status,
		Outcome:   g.Outcome,
		WinnerID:  g.WinnerID,
		WhiteID:   g.WhiteID,
		BlackID:   g.BlackID,
		UpdatedAt: g.UpdatedAt.UnixMilli(),
		Version:   g.Version,
		Watchers:  watchers,
	}
}

// Turn reads the side-to-move field of a FEN board. Under free play it is
// only a hint of who moved last.
func Turn(board string) model.Color {
	fields := strings.Fields(board)
	if len(fields) > 1 && fields[1] == "b" {
		return model.Black
	}
	return model.White
}
