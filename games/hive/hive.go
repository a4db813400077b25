// Package hive adapts the Hive board engine kept from the teacher (internal/state) to the
// generic game.State[M] contract, so it can be driven by the same search core as every
// other registered game.
package hive

import (
	"github.com/janpfeifer/mcts-arena/internal/game"
	"github.com/janpfeifer/mcts-arena/internal/state"
)

// Move is a Hive placement or slide, identical in shape to the teacher's state.Action.
type Move = state.Action

// State wraps a *state.Board, presenting it as a game.State[Move].
type State struct {
	board *state.Board
}

// New returns the standard empty Hive starting position.
func New() *State {
	return &State{board: state.NewBoard()}
}

// Wrap adapts an already-built *state.Board (e.g. loaded from a saved match).
func Wrap(b *state.Board) *State {
	if b.Derived == nil {
		b.BuildDerived()
	}
	return &State{board: b}
}

var _ game.State[Move] = (*State)(nil)

// Board exposes the underlying teacher board, for diagnostics and the CLI renderer.
func (s *State) Board() *state.Board { return s.board }

// NumPlayers implements game.State.
func (s *State) NumPlayers() int { return state.NumPlayers }

// CurrentPlayer implements game.State.
func (s *State) CurrentPlayer() int { return int(s.board.NextPlayer) }

// LegalMoves implements game.State.
func (s *State) LegalMoves() []Move {
	return s.board.Derived.Actions
}

// Apply implements game.State.
func (s *State) Apply(m Move) game.State[Move] {
	return &State{board: s.board.Act(m)}
}

// IsTerminal implements game.State.
func (s *State) IsTerminal() bool { return s.board.IsFinished() }

// Winner implements game.State.
func (s *State) Winner() (int, bool) {
	w := s.board.Winner()
	if w == state.PlayerInvalid {
		return 0, false
	}
	return int(w), true
}

// BoardView implements game.State: a dense grid over the board's currently-used bounds,
// 0 empty, 1 first-player top piece, 2 second-player top piece.
func (s *State) BoardView() [][]int {
	minX, maxX, minY, maxY := s.board.UsedLimits()
	width := int(maxX-minX) + 1
	height := int(maxY-minY) + 1
	if width <= 0 || height <= 0 {
		return [][]int{}
	}
	view := make([][]int, height)
	for r := range view {
		view[r] = make([]int, width)
	}
	for pos := range s.board.OccupiedPositionsIter() {
		player, _, _ := s.board.PieceAt(pos)
		view[int(pos.Y()-minY)][int(pos.X()-minX)] = int(player) + 1
	}
	return view
}

// LastMoveCells implements game.State. Hive's positions are hex-offset, not a dense grid
// index, so this reports no cell (the diagnostic dump falls back to the board itself).
func (s *State) LastMoveCells() ([][2]int, bool) { return nil, false }
