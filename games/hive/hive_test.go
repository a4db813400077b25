package hive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janpfeifer/mcts-arena/internal/state"
)

func TestNewIsNotTerminalAndHasLegalMoves(t *testing.T) {
	s := New()
	require.Equal(t, state.NumPlayers, s.NumPlayers())
	require.False(t, s.IsTerminal())
	require.NotEmpty(t, s.LegalMoves())
}

func TestApplyAdvancesTurn(t *testing.T) {
	s := New()
	player := s.CurrentPlayer()
	move := s.LegalMoves()[0]
	next := s.Apply(move).(*State)
	require.NotEqual(t, player, next.CurrentPlayer())
}

func TestWinnerReportsNoneBeforeGameEnds(t *testing.T) {
	s := New()
	_, ok := s.Winner()
	require.False(t, ok)
}

func TestBoardViewReflectsPlacedPieces(t *testing.T) {
	s := New()
	move := s.LegalMoves()[0]
	next := s.Apply(move).(*State)
	view := next.BoardView()
	total := 0
	for _, row := range view {
		for _, cell := range row {
			if cell != 0 {
				total++
			}
		}
	}
	require.Equal(t, 1, total, "one piece placed so far")
}

func TestLastMoveCellsIsAlwaysEmpty(t *testing.T) {
	s := New()
	_, ok := s.LastMoveCells()
	require.False(t, ok)
}

func TestWrapRebuildsDerivedStateIfMissing(t *testing.T) {
	b := state.NewBoard()
	wrapped := Wrap(b)
	require.NotNil(t, wrapped.Board().Derived)
}
