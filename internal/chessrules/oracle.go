// Package chessrules adapts github.com/corentings/chess/v2 into the narrow
// legality oracle the move processor needs.
package chessrules

import (
	"fmt"
	"strings"

	"github.com/corentings/chess/v2"

	"stepchess/internal/apperr"
	"stepchess/internal/cost"
	"stepchess/internal/model"
)

// Piece is the occupant of a square.
type Piece struct {
	Kind  cost.PieceKind
	Color model.Color
}

// Oracle answers questions about FEN boards. It holds no state.
type Oracle struct{}

// New returns an Oracle.
func New() *Oracle { return &Oracle{} }

// PieceAt returns the piece on sq, if any.
func (o *Oracle) PieceAt(board string, sq cost.Square) (_ Piece, _ bool, err error) {
	defer guard("piece lookup", &err)
	pos, err := position(board)
	if err != nil {
		return Piece{}, false, err
	}
	p := pos.Board().Piece(toSquare(sq))
	if p == chess.NoPiece {
		return Piece{}, false, nil
	}
	kind, ok := pieceKinds[p.Type()]
	if !ok {
		return Piece{}, false, nil
	}
	return Piece{Kind: kind, Color: fromColor(p.Color())}, true, nil
}

// AlignTurn rewrites the side-to-move field so that c moves next. The
// en-passant target is dropped whenever the side actually changes because it
// was only valid for the other side.
func (o *Oracle) AlignTurn(board string, c model.Color) (string, error) {
	fields := strings.Fields(board)
	if len(fields) != 6 {
		return "", corrupt(board, nil)
	}
	want := "w"
	if c == model.Black {
		want = "b"
	}
	if fields[1] == want {
		return board, nil
	}
	fields[1] = want
	fields[3] = "-"
	return strings.Join(fields, " "), nil
}

// Apply plays from-to (with an optional promotion letter) on board and
// returns the resulting FEN. The move must be legal for the side to move.
func (o *Oracle) Apply(board string, from, to cost.Square, promotion string) (_ string, err error) {
	defer guard("apply move", &err)
	opt, err := chess.FEN(board)
	if err != nil {
		return "", corrupt(board, err)
	}
	g := chess.NewGame(opt)
	token := from.String() + to.String() + strings.ToLower(promotion)
	if err := g.PushNotationMove(token, chess.UCINotation{}, nil); err != nil {
		return "", apperr.Wrap(apperr.CodeIllegalMove, "illegal move "+token, err)
	}
	return g.Position().String(), nil
}

// CaptureKing moves the piece on from onto to, removing whatever stood
// there. A non-empty promotion replaces the moving pawn. Castling rights
// belonging to a side whose king or rooks are no longer on their home
// squares are cleared. The opponent moves next.
func (o *Oracle) CaptureKing(board string, from, to cost.Square, promotion string) (_ string, err error) {
	defer guard("king capture", &err)
	pos, err := position(board)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(board)

	squares := pos.Board().SquareMap()
	mover, ok := squares[toSquare(from)]
	if !ok || mover == chess.NoPiece {
		return "", apperr.New(apperr.CodeNoPieceAtOrigin, "no piece on "+from.String())
	}
	if promotion != "" {
		if mover.Type() != chess.Pawn {
			return "", apperr.Newf(apperr.CodeInvalidPromo, "only a pawn can promote, not the piece on %s", from)
		}
		pt := chess.PieceTypeFromString(promotion)
		switch pt {
		case chess.Queen, chess.Rook, chess.Bishop, chess.Knight:
		default:
			return "", apperr.Newf(apperr.CodeInvalidPromo, "invalid promotion %q", promotion)
		}
		mover = chess.NewPiece(pt, mover.Color())
	}
	delete(squares, toSquare(from))
	squares[toSquare(to)] = mover

	next := "b"
	if mover.Color() == chess.Black {
		next = "w"
	}
	placement := chess.NewBoard(squares).String()
	return strings.Join([]string{
		placement,
		next,
		sanitizeCastling(fields[2], squares),
		"-",
		"0",
		fields[5],
	}, " "), nil
}

func sanitizeCastling(rights string, squares map[chess.Square]chess.Piece) string {
	at := func(sq string, want chess.Piece) bool {
		s, _ := cost.ParseSquare(sq)
		return squares[toSquare(s)] == want
	}
	var b strings.Builder
	for _, r := range rights {
		var keep bool
		switch r {
		case 'K':
			keep = at("e1", chess.WhiteKing) && at("h1", chess.WhiteRook)
		case 'Q':
			keep = at("e1", chess.WhiteKing) && at("a1", chess.WhiteRook)
		case 'k':
			keep = at("e8", chess.BlackKing) && at("h8", chess.BlackRook)
		case 'q':
			keep = at("e8", chess.BlackKing) && at("a8", chess.BlackRook)
		}
		if keep {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

func position(board string) (*chess.Position, error) {
	opt, err := chess.FEN(board)
	if err != nil {
		return nil, corrupt(board, err)
	}
	return chess.NewGame(opt).Position(), nil
}

// guard reports a panic inside the chess library as an unavailable oracle
// instead of taking the request down with it.
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = apperr.Wrap(apperr.CodeOracleUnavailable, "chess rules failed during "+op, fmt.Errorf("panic: %v", r))
	}
}

func corrupt(board string, cause error) error {
	return apperr.Wrap(apperr.CodeCorruptBoard, "stored board does not parse: "+board, cause)
}

func toSquare(s cost.Square) chess.Square {
	return chess.NewSquare(chess.File(s.File), chess.Rank(s.Rank))
}

var pieceKinds = map[chess.PieceType]cost.PieceKind{
	chess.Pawn:   cost.Pawn,
	chess.Knight: cost.Knight,
	chess.Bishop: cost.Bishop,
	chess.Rook:   cost.Rook,
	chess.Queen:  cost.Queen,
	chess.King:   cost.King,
}

func fromColor(c chess.Color) model.Color {
	if c == chess.Black {
		return model.Black
	}
	return model.White
}
