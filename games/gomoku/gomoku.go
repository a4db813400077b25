// Package gomoku implements the Gomoku (five/line-in-a-row) game.State adapter (spec §1).
// Board size and winning line length are configurable, matching the testable property's
// 5x5/line=3 scenario as well as the standard 15x15/line=5 game.
package gomoku

import (
	"github.com/janpfeifer/mcts-arena/internal/game"
)

// Move is a single stone placement, identified by its flat board index.
type Move struct {
	Index int
}

const (
	empty = 0
	black = 1 // player 0
	white = 2 // player 1
)

// State is an immutable Gomoku position. Size is the board's side length; Line is the
// number of same-colored stones in a row needed to win.
type State struct {
	Size int
	Line int

	cells      []int8 // len == Size*Size, 0 empty, 1 player0, 2 player1
	toMove     int
	lastIndex  int // index of the last placed stone, -1 for the initial position
	moveCount  int
	terminal   bool
	winner     int
	hasWinner  bool
}

// New returns the empty initial position for a size x size board with the given line
// length to win.
func New(size, line int) *State {
	return &State{
		Size:      size,
		Line:      line,
		cells:     make([]int8, size*size),
		toMove:    0,
		lastIndex: -1,
	}
}

var _ game.State[Move] = (*State)(nil)

// NumPlayers implements game.State.
func (s *State) NumPlayers() int { return 2 }

// CurrentPlayer implements game.State.
func (s *State) CurrentPlayer() int { return s.toMove }

// LegalMoves implements game.State: every empty cell, in raster order.
func (s *State) LegalMoves() []Move {
	if s.terminal {
		return nil
	}
	moves := make([]Move, 0, len(s.cells))
	for i, c := range s.cells {
		if c == empty {
			moves = append(moves, Move{Index: i})
		}
	}
	return moves
}

// Apply implements game.State.
func (s *State) Apply(m Move) game.State[Move] {
	next := &State{
		Size:      s.Size,
		Line:      s.Line,
		cells:     append([]int8(nil), s.cells...),
		toMove:    1 - s.toMove,
		lastIndex: m.Index,
		moveCount: s.moveCount + 1,
	}
	next.cells[m.Index] = int8(s.toMove + 1)

	if next.checkWin(m.Index) {
		next.terminal = true
		next.hasWinner = true
		next.winner = s.toMove
	} else if next.moveCount == len(next.cells) {
		next.terminal = true
	}
	return next
}

// checkWin reports whether the stone just placed at idx completes a Line-length run.
func (s *State) checkWin(idx int) bool {
	color := s.cells[idx]
	if color == empty {
		return false
	}
	row, col := idx/s.Size, idx%s.Size
	directions := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range directions {
		count := 1
		count += s.runLength(row, col, d[0], d[1], color)
		count += s.runLength(row, col, -d[0], -d[1], color)
		if count >= s.Line {
			return true
		}
	}
	return false
}

func (s *State) runLength(row, col, dr, dc int, color int8) int {
	n := 0
	r, c := row+dr, col+dc
	for r >= 0 && r < s.Size && c >= 0 && c < s.Size && s.cells[r*s.Size+c] == color {
		n++
		r += dr
		c += dc
	}
	return n
}

// IsTerminal implements game.State.
func (s *State) IsTerminal() bool { return s.terminal }

// Winner implements game.State.
func (s *State) Winner() (int, bool) { return s.winner, s.hasWinner }

// BoardView implements game.State: rows of 0 (empty), 1, 2.
func (s *State) BoardView() [][]int {
	view := make([][]int, s.Size)
	for r := 0; r < s.Size; r++ {
		row := make([]int, s.Size)
		for c := 0; c < s.Size; c++ {
			row[c] = int(s.cells[r*s.Size+c])
		}
		view[r] = row
	}
	return view
}

// LastMoveCells implements game.State.
func (s *State) LastMoveCells() ([][2]int, bool) {
	if s.lastIndex < 0 {
		return nil, false
	}
	return [][2]int{{s.lastIndex / s.Size, s.lastIndex % s.Size}}, true
}
