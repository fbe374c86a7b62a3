package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sq(t *testing.T, s string) Square {
	t.Helper()
	v, err := ParseSquare(s)
	require.NoError(t, err)
	return v
}

func balanced(t *testing.T) Preset {
	t.Helper()
	p, ok := NewRegistry(DefaultPresets()...).Lookup("balanced")
	require.True(t, ok)
	return p
}

func TestKnightDistanceIsAlwaysThree(t *testing.T) {
	from := Square{File: 3, Rank: 3}
	deltas := [][2]int{{1, 2}, {2, 1}, {-1, 2}, {-2, 1}, {1, -2}, {2, -1}, {-1, -2}, {-2, -1}}
	for _, d := range deltas {
		to := Square{File: from.File + d[0], Rank: from.Rank + d[1]}
		assert.Equal(t, int64(3), Distance(Knight, from, to), "delta %v", d)
	}
}

func TestKingSingleStepDistanceIsOne(t *testing.T) {
	from := Square{File: 4, Rank: 4}
	for df := -1; df <= 1; df++ {
		for dr := -1; dr <= 1; dr++ {
			if df == 0 && dr == 0 {
				continue
			}
			to := Square{File: from.File + df, Rank: from.Rank + dr}
			assert.Equal(t, int64(1), Distance(King, from, to))
		}
	}
}

func TestDistanceModeExamples(t *testing.T) {
	p := balanced(t)
	assert.Equal(t, int64(20), Cost(p, ModeDistance, Pawn, sq(t, "e2"), sq(t, "e4"), false))
	assert.Equal(t, int64(30), Cost(p, ModeDistance, Knight, sq(t, "g1"), sq(t, "f3"), false))
}

func TestBaseDistanceAddsBaseCost(t *testing.T) {
	p := balanced(t)
	assert.Equal(t, int64(10+20), Cost(p, ModeBaseDistance, Pawn, sq(t, "e2"), sq(t, "e4"), false))
	assert.Equal(t, int64(90+70), Cost(p, ModeBaseDistance, Queen, sq(t, "d1"), sq(t, "d8"), false))
}

func TestFixedModeDoublesOnKingCapture(t *testing.T) {
	p := balanced(t)
	for _, kind := range []PieceKind{Pawn, Knight, Bishop, Rook, Queen, King} {
		base := p.BaseCost(kind)
		assert.Equal(t, base, Cost(p, ModeFixed, kind, sq(t, "a1"), sq(t, "h8"), false))
		assert.Equal(t, 2*base, Cost(p, ModeFixed, kind, sq(t, "a1"), sq(t, "h8"), true))
	}
}

func TestCostMonotonicInDistance(t *testing.T) {
	from := Square{File: 0, Rank: 0}
	for _, p := range DefaultPresets() {
		for _, mode := range []Mode{ModeDistance, ModeBaseDistance} {
			prev := int64(-1)
			for step := 0; step < 8; step++ {
				c := Cost(p, mode, Queen, from, Square{File: step, Rank: step}, false)
				assert.GreaterOrEqual(t, c, prev, "preset %s mode %s", p.Name, mode)
				prev = c
			}
		}
	}
}

func TestUnknownPieceKindPanics(t *testing.T) {
	p := balanced(t)
	assert.Panics(t, func() { p.BaseCost("archbishop") })
}

func TestParseMode(t *testing.T) {
	m, ok := ParseMode("BaseDistance")
	require.True(t, ok)
	assert.Equal(t, ModeBaseDistance, m)
	_, ok = ParseMode("teleport")
	assert.False(t, ok)
}

func TestParseSquare(t *testing.T) {
	s := sq(t, "h8")
	assert.Equal(t, Square{File: 7, Rank: 7}, s)
	assert.Equal(t, "h8", s.String())
	for _, bad := range []string{"", "i1", "a9", "a0", "e22"} {
		_, err := ParseSquare(bad)
		assert.Error(t, err, bad)
	}
}
