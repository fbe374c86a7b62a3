package game

import (
	"strings"

	"stepchess/internal/apperr"
	"stepchess/internal/chessrules"
	"stepchess/internal/cost"
	"stepchess/internal/model"
)

// Oracle decides chess legality on FEN boards.
type Oracle interface {
	PieceAt(board string, sq cost.Square) (chessrules.Piece, bool, error)
	AlignTurn(board string, c model.Color) (string, error)
	Apply(board string, from, to cost.Square, promotion string) (string, error)
	CaptureKing(board string, from, to cost.Square, promotion string) (string, error)
}

// ProcessedMove is a validated, priced move that has not been committed.
type ProcessedMove struct {
	Board string
	Token string
	Cost  int64
	Piece chessrules.Piece
}

// Processor validates moves against the oracle and prices them.
type Processor struct {
	oracle Oracle
}

// NewProcessor creates a processor over oracle.
func NewProcessor(oracle Oracle) *Processor {
	return &Processor{oracle: oracle}
}

// Process validates req against g on behalf of the player moving as mover.
// When selfPlay is set the mover plays whichever side owns the piece on the
// origin square. Nothing is written.
func (p *Processor) Process(g *model.Game, mover model.Color, selfPlay bool, req MoveRequest) (ProcessedMove, error) {
	from, err := cost.ParseSquare(req.From)
	if err != nil {
		return ProcessedMove{}, apperr.Wrap(apperr.CodeInvalidSquare, "invalid origin square", err)
	}
	to, err := cost.ParseSquare(req.To)
	if err != nil {
		return ProcessedMove{}, apperr.Wrap(apperr.CodeInvalidSquare, "invalid destination square", err)
	}
	if from == to {
		return ProcessedMove{}, apperr.New(apperr.CodeIllegalMove, "origin and destination are the same square")
	}
	promo := strings.ToLower(strings.TrimSpace(req.Promotion))
	switch promo {
	case "", "q", "r", "b", "n":
	default:
		return ProcessedMove{}, apperr.Newf(apperr.CodeInvalidPromo, "invalid promotion %q", req.Promotion)
	}

	piece, ok, err := p.oracle.PieceAt(g.Board, from)
	if err != nil {
		return ProcessedMove{}, err
	}
	if !ok {
		return ProcessedMove{}, apperr.Newf(apperr.CodeNoPieceAtOrigin, "no piece on %s", from)
	}
	if selfPlay {
		mover = piece.Color
	}

	if piece.Kind == cost.Pawn && promo == "" && isLastRank(to, piece.Color) {
		promo = "q"
	}
	if req.KingCapture {
		return p.captureKing(g, mover, piece, from, to, promo)
	}
	aligned, err := p.oracle.AlignTurn(g.Board, mover)
	if err != nil {
		return ProcessedMove{}, err
	}
	board, err := p.oracle.Apply(aligned, from, to, promo)
	if err != nil {
		return ProcessedMove{}, err
	}
	return ProcessedMove{
		Board: board,
		Token: from.String() + to.String() + promo,
		Cost:  cost.Cost(g.Preset, g.CostMode, piece.Kind, from, to, false),
		Piece: piece,
	}, nil
}

func (p *Processor) captureKing(g *model.Game, mover model.Color, piece chessrules.Piece, from, to cost.Square, promo string) (ProcessedMove, error) {
	if piece.Color != mover {
		return ProcessedMove{}, apperr.Newf(apperr.CodeIllegalMove, "the piece on %s is not yours", from)
	}
	target, ok, err := p.oracle.PieceAt(g.Board, to)
	if err != nil {
		return ProcessedMove{}, err
	}
	if !ok || target.Kind != cost.King || target.Color == mover {
		return ProcessedMove{}, apperr.Newf(apperr.CodeIllegalMove, "no opposing king on %s", to)
	}
	if piece.Kind != cost.Pawn || !isLastRank(to, piece.Color) {
		promo = ""
	}
	board, err := p.oracle.CaptureKing(g.Board, from, to, promo)
	if err != nil {
		return ProcessedMove{}, err
	}
	return ProcessedMove{
		Board: board,
		Token: from.String() + to.String() + promo,
		Cost:  cost.Cost(g.Preset, g.CostMode, piece.Kind, from, to, true),
		Piece: piece,
	}, nil
}

func isLastRank(sq cost.Square, c model.Color) bool {
	if c == model.White {
		return sq.Rank == 7
	}
	return sq.Rank == 0
}
