package othello

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialPositionHasFourLegalMoves(t *testing.T) {
	s := New()
	require.Len(t, s.LegalMoves(), 4)
	require.Equal(t, 0, s.CurrentPlayer())
}

func TestApplyFlipsOpponentDiscs(t *testing.T) {
	s := New()
	next := s.Apply(Move{Row: 2, Col: 3}).(*State)
	black, white := next.PieceCount()
	require.Equal(t, 4, black)
	require.Equal(t, 1, white)
	require.Equal(t, 1, next.CurrentPlayer())
}

func TestLegalMovesNeverEmptyBeforeTerminal(t *testing.T) {
	// Plays the first legal move for up to 8 plies from the opening position and checks
	// that every non-terminal state offers at least one move.
	s := New()
	cur := s
	for i := 0; i < 8 && !cur.IsTerminal(); i++ {
		moves := cur.LegalMoves()
		require.NotEmpty(t, moves, "LegalMoves must never be empty on a non-terminal state")
		cur = cur.Apply(moves[0]).(*State)
	}
}

func TestLastMoveCellsReportsThePlacement(t *testing.T) {
	s := New()
	next := s.Apply(Move{Row: 2, Col: 3}).(*State)
	cells, ok := next.LastMoveCells()
	require.True(t, ok)
	require.Equal(t, [][2]int{{2, 3}}, cells)

	_, ok = s.LastMoveCells()
	require.False(t, ok)
}

func TestBoardViewMatchesInitialSetup(t *testing.T) {
	view := New().BoardView()
	require.Equal(t, White, view[3][3])
	require.Equal(t, Black, view[3][4])
	require.Equal(t, Black, view[4][3])
	require.Equal(t, White, view[4][4])
	require.Equal(t, Empty, view[0][0])
}
