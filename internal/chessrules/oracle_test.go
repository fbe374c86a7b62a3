package chessrules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepchess/internal/apperr"
	"stepchess/internal/cost"
	"stepchess/internal/model"
)

func sq(t *testing.T, s string) cost.Square {
	t.Helper()
	v, err := cost.ParseSquare(s)
	require.NoError(t, err)
	return v
}

func TestPieceAt(t *testing.T) {
	o := New()
	p, ok, err := o.PieceAt(model.StartFEN, sq(t, "g1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Piece{Kind: cost.Knight, Color: model.White}, p)

	p, ok, err = o.PieceAt(model.StartFEN, sq(t, "e8"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Piece{Kind: cost.King, Color: model.Black}, p)

	_, ok, err = o.PieceAt(model.StartFEN, sq(t, "e4"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPieceAtCorruptBoard(t *testing.T) {
	_, _, err := New().PieceAt("not a board", sq(t, "e2"))
	require.Error(t, err)
	assert.Equal(t, apperr.CodeCorruptBoard, apperr.CodeOf(err))
}

func TestAlignTurn(t *testing.T) {
	o := New()
	same, err := o.AlignTurn(model.StartFEN, model.White)
	require.NoError(t, err)
	assert.Equal(t, model.StartFEN, same)

	flipped, err := o.AlignTurn("rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq e3 0 1", model.White)
	require.NoError(t, err)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR w KQkq - 0 1", flipped)
}

func TestApplyLegalMove(t *testing.T) {
	next, err := New().Apply(model.StartFEN, sq(t, "e2"), sq(t, "e4"), "")
	require.NoError(t, err)
	fields := strings.Fields(next)
	require.Len(t, fields, 6)
	assert.Equal(t, "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR", fields[0])
	assert.Equal(t, "b", fields[1])
}

func TestApplyIllegalMove(t *testing.T) {
	_, err := New().Apply(model.StartFEN, sq(t, "e2"), sq(t, "e5"), "")
	require.Error(t, err)
	assert.Equal(t, apperr.CodeIllegalMove, apperr.CodeOf(err))
}

func TestApplyPromotion(t *testing.T) {
	board := "7k/P7/8/8/8/8/8/K7 w - - 0 1"
	next, err := New().Apply(board, sq(t, "a7"), sq(t, "a8"), "n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(next, "N6k/"), next)
}

func TestCaptureKing(t *testing.T) {
	// f7 blocks the diagonal; king capture does not consult legality.
	board := "rnbqkbnr/pppp1ppp/8/4p2Q/4P3/8/PPPP1PPP/RNB1KBNR w KQkq - 0 3"
	next, err := New().CaptureKing(board, sq(t, "h5"), sq(t, "e8"), "")
	require.NoError(t, err)
	fields := strings.Fields(next)
	require.Len(t, fields, 6)
	assert.Equal(t, "rnbqQbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNB1KBNR", fields[0])
	assert.Equal(t, "b", fields[1])
	assert.Equal(t, "KQ", fields[2])
	assert.Equal(t, "-", fields[3])
	assert.Equal(t, "3", fields[5])
}

func TestCaptureKingPromotesPawn(t *testing.T) {
	board := "4k3/3P4/8/8/8/8/8/4K3 w - - 0 1"
	next, err := New().CaptureKing(board, sq(t, "d7"), sq(t, "e8"), "n")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(next, "4N3/8/"), next)

	_, err = New().CaptureKing(board, sq(t, "e1"), sq(t, "e8"), "q")
	assert.True(t, apperr.HasCode(err, apperr.CodeInvalidPromo), "kings do not promote: %v", err)
}

func TestGuardReportsLibraryPanic(t *testing.T) {
	run := func() (err error) {
		defer guard("piece lookup", &err)
		panic("index out of range")
	}
	err := run()
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeOracleUnavailable), err.Error())
	assert.Contains(t, err.Error(), "index out of range")
}
