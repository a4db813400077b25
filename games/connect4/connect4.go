// Package connect4 implements the standard 7x6, line-of-4 Connect Four game.State adapter
// (spec §1, testable property "Connect-4 7x6, line=4, empty board").
package connect4

import "github.com/janpfeifer/mcts-arena/internal/game"

const (
	Cols = 7
	Rows = 6
	Line = 4
)

// Move is a column drop, 0-indexed.
type Move struct {
	Col int
}

// State is an immutable Connect-4 position, stored as a dense row-major grid
// (row 0 = bottom).
type State struct {
	cells     [Rows][Cols]int8
	heights   [Cols]int8 // number of discs already dropped in each column
	toMove    int
	lastCol   int
	lastRow   int
	moveCount int
	terminal  bool
	winner    int
	hasWinner bool
}

// New returns the empty initial position.
func New() *State {
	return &State{toMove: 0, lastCol: -1}
}

var _ game.State[Move] = (*State)(nil)

// NumPlayers implements game.State.
func (s *State) NumPlayers() int { return 2 }

// CurrentPlayer implements game.State.
func (s *State) CurrentPlayer() int { return s.toMove }

// LegalMoves implements game.State: any column not yet full.
func (s *State) LegalMoves() []Move {
	if s.terminal {
		return nil
	}
	moves := make([]Move, 0, Cols)
	for c := 0; c < Cols; c++ {
		if s.heights[c] < Rows {
			moves = append(moves, Move{Col: c})
		}
	}
	return moves
}

// Apply implements game.State.
func (s *State) Apply(m Move) game.State[Move] {
	next := &State{
		cells:     s.cells,
		heights:   s.heights,
		toMove:    1 - s.toMove,
		moveCount: s.moveCount + 1,
	}
	row := int(s.heights[m.Col])
	next.cells[row][m.Col] = int8(s.toMove + 1)
	next.heights[m.Col]++
	next.lastCol, next.lastRow = m.Col, row

	if next.checkWin(row, m.Col) {
		next.terminal = true
		next.hasWinner = true
		next.winner = s.toMove
	} else if next.moveCount == Rows*Cols {
		next.terminal = true
	}
	return next
}

func (s *State) checkWin(row, col int) bool {
	color := s.cells[row][col]
	if color == 0 {
		return false
	}
	directions := [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}
	for _, d := range directions {
		count := 1
		count += s.runLength(row, col, d[0], d[1], color)
		count += s.runLength(row, col, -d[0], -d[1], color)
		if count >= Line {
			return true
		}
	}
	return false
}

func (s *State) runLength(row, col, dr, dc int, color int8) int {
	n := 0
	r, c := row+dr, col+dc
	for r >= 0 && r < Rows && c >= 0 && c < Cols && s.cells[r][c] == color {
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

// BoardView implements game.State, top row first (display order).
func (s *State) BoardView() [][]int {
	view := make([][]int, Rows)
	for r := 0; r < Rows; r++ {
		displayRow := Rows - 1 - r
		row := make([]int, Cols)
		for c := 0; c < Cols; c++ {
			row[c] = int(s.cells[displayRow][c])
		}
		view[r] = row
	}
	return view
}

// LastMoveCells implements game.State.
func (s *State) LastMoveCells() ([][2]int, bool) {
	if s.lastCol < 0 {
		return nil, false
	}
	return [][2]int{{s.lastRow, s.lastCol}}, true
}
