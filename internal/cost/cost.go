package cost

import (
	"fmt"
	"strings"
)

// PieceKind identifies a chess piece independent of colour.
type PieceKind string

const (
	Pawn   PieceKind = "pawn"
	Knight PieceKind = "knight"
	Bishop PieceKind = "bishop"
	Rook   PieceKind = "rook"
	Queen  PieceKind = "queen"
	King   PieceKind = "king"
)

// Mode selects how distance and base cost combine into a move price.
type Mode string

const (
	ModeBaseDistance Mode = "baseDistance"
	ModeDistance     Mode = "distance"
	ModeFixed        Mode = "fixed"
)

// ParseMode resolves a mode name case-insensitively.
func ParseMode(name string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "basedistance":
		return ModeBaseDistance, true
	case "distance":
		return ModeDistance, true
	case "fixed":
		return ModeFixed, true
	}
	return "", false
}

// Square is a board coordinate, file and rank both in 0..7 (a1 = 0,0).
type Square struct {
	File int
	Rank int
}

// ParseSquare parses algebraic coordinates such as "e4".
func ParseSquare(s string) (Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return Square{}, fmt.Errorf("invalid square %q", s)
	}
	return Square{File: int(s[0] - 'a'), Rank: int(s[1] - '1')}, nil
}

func (s Square) String() string {
	return string([]byte{byte('a' + s.File), byte('1' + s.Rank)})
}

// Distance is the Manhattan distance for knights and the Chebyshev distance
// for every other piece.
func Distance(kind PieceKind, from, to Square) int64 {
	df := abs(from.File - to.File)
	dr := abs(from.Rank - to.Rank)
	if kind == Knight {
		return int64(df + dr)
	}
	return int64(max(df, dr))
}

// Cost prices a single move. It is pure and deterministic; an unknown piece
// kind panics.
func Cost(p Preset, mode Mode, kind PieceKind, from, to Square, isKingCapture bool) int64 {
	switch mode {
	case ModeDistance:
		return Distance(kind, from, to) * p.DistanceCost
	case ModeFixed:
		base := p.BaseCost(kind)
		if isKingCapture {
			return base * 2
		}
		return base
	default:
		return p.BaseCost(kind) + Distance(kind, from, to)*p.DistanceCost
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
