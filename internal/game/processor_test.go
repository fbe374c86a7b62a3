package game

import (
	"errors"
	"strings"
	"testing"

	"stepchess/internal/apperr"
	"stepchess/internal/chessrules"
	"stepchess/internal/cost"
	"stepchess/internal/model"
)

func processorGame(board string) *model.Game {
	presets := cost.NewRegistry(cost.DefaultPresets()...)
	p, _ := presets.Lookup("balanced")
	return &model.Game{ID: "g", WhiteID: "w", BlackID: "b", Board: board, Preset: p, CostMode: cost.ModeBaseDistance}
}

func TestProcessPricesPawnPush(t *testing.T) {
	p := NewProcessor(chessrules.New())
	m, err := p.Process(processorGame(model.StartFEN), model.White, false, MoveRequest{From: "e2", To: "e4"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if m.Token != "e2e4" || m.Cost != 30 || m.Piece.Kind != cost.Pawn {
		t.Fatalf("unexpected move %+v", m)
	}
}

func TestProcessBlackMayMoveFirst(t *testing.T) {
	p := NewProcessor(chessrules.New())
	m, err := p.Process(processorGame(model.StartFEN), model.Black, false, MoveRequest{From: "e7", To: "e5"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if Turn(m.Board) != model.White {
		t.Fatalf("expected white to move after black, board %s", m.Board)
	}
}

func TestProcessDefaultsPromotionToQueen(t *testing.T) {
	p := NewProcessor(chessrules.New())
	m, err := p.Process(processorGame("k7/4P3/8/8/8/8/8/4K3 w - - 0 1"), model.White, false, MoveRequest{From: "e7", To: "e8"})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if m.Token != "e7e8q" {
		t.Fatalf("expected e7e8q got %s", m.Token)
	}
}

func TestProcessKingCaptureOnLastRankPromotes(t *testing.T) {
	p := NewProcessor(chessrules.New())
	g := processorGame("4k3/3P4/8/8/8/8/8/4K3 w - - 0 1")
	m, err := p.Process(g, model.White, false, MoveRequest{From: "d7", To: "e8", KingCapture: true})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if m.Token != "d7e8q" {
		t.Fatalf("expected d7e8q got %s", m.Token)
	}
	if !strings.HasPrefix(m.Board, "4Q3/8/") {
		t.Fatalf("expected a queen on e8, board %s", m.Board)
	}
}

func TestProcessSelfPlayUsesPieceColor(t *testing.T) {
	p := NewProcessor(chessrules.New())
	if _, err := p.Process(processorGame(model.StartFEN), model.White, true, MoveRequest{From: "g8", To: "f6"}); err != nil {
		t.Fatalf("self-play move of a black knight should pass: %v", err)
	}
}

func TestProcessRejections(t *testing.T) {
	p := NewProcessor(chessrules.New())
	g := processorGame(model.StartFEN)
	cases := []struct {
		name string
		req  MoveRequest
		code apperr.Code
	}{
		{"bad origin", MoveRequest{From: "z9", To: "e4"}, apperr.CodeInvalidSquare},
		{"bad destination", MoveRequest{From: "e2", To: "e9"}, apperr.CodeInvalidSquare},
		{"same square", MoveRequest{From: "e2", To: "e2"}, apperr.CodeIllegalMove},
		{"bad promotion", MoveRequest{From: "e2", To: "e4", Promotion: "k"}, apperr.CodeInvalidPromo},
		{"empty origin", MoveRequest{From: "e4", To: "e5"}, apperr.CodeNoPieceAtOrigin},
		{"opponent piece", MoveRequest{From: "e7", To: "e5"}, apperr.CodeIllegalMove},
		{"illegal", MoveRequest{From: "e2", To: "e5"}, apperr.CodeIllegalMove},
		{"king capture without king", MoveRequest{From: "e2", To: "e4", KingCapture: true}, apperr.CodeIllegalMove},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.Process(g, model.White, false, tc.req)
			if got := apperr.CodeOf(err); got != tc.code {
				t.Fatalf("expected %s got %s (%v)", tc.code, got, err)
			}
		})
	}
}

type downOracle struct{ *chessrules.Oracle }

func (downOracle) PieceAt(string, cost.Square) (chessrules.Piece, bool, error) {
	return chessrules.Piece{}, false, apperr.Wrap(apperr.CodeOracleUnavailable, "oracle down", errors.New("boom"))
}

func TestProcessPassesOracleFailure(t *testing.T) {
	p := NewProcessor(downOracle{chessrules.New()})
	_, err := p.Process(processorGame(model.StartFEN), model.White, false, MoveRequest{From: "e2", To: "e4"})
	if !apperr.HasCode(err, apperr.CodeOracleUnavailable) {
		t.Fatalf("expected oracle failure to pass through, got %v", err)
	}
}
