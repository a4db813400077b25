// Package othello implements the standard 8x8 Othello/Reversi game.State adapter (spec
// §1, §4.10, §4.11). The board layout and flip rules here are the CPU reference that
// internal/gpu/othellonative's on-device engine must agree with.
package othello

import "github.com/janpfeifer/mcts-arena/internal/game"

const (
	Size = 8

	Empty = 0
	Black = 1 // player 0
	White = 2 // player 1
)

// Move is a board placement, or Pass when the player to move has no legal placement.
type Move struct {
	Row, Col int
	Pass     bool
}

var directions = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// State is an immutable Othello position.
type State struct {
	cells        [Size][Size]int8
	toMove       int
	consecPasses int
	lastRow      int
	lastCol      int
	hasLastMove  bool
	terminal     bool
	winner       int
	hasWinner    bool
}

// New returns the standard Othello starting position.
func New() *State {
	s := &State{toMove: 0}
	s.cells[3][3] = White
	s.cells[3][4] = Black
	s.cells[4][3] = Black
	s.cells[4][4] = White
	return s
}

var _ game.State[Move] = (*State)(nil)

// NumPlayers implements game.State.
func (s *State) NumPlayers() int { return 2 }

// CurrentPlayer implements game.State.
func (s *State) CurrentPlayer() int { return s.toMove }

func playerColor(player int) int8 { return int8(player + 1) }
func opponentColor(player int) int8 { return int8((1 - player) + 1) }

// flipsFor returns the list of opponent discs that would be flipped by placing at
// (row, col) for player, or nil if the placement is illegal.
func (s *State) flipsFor(row, col, player int) [][2]int {
	if s.cells[row][col] != Empty {
		return nil
	}
	mine := playerColor(player)
	theirs := opponentColor(player)
	var flips [][2]int
	for _, d := range directions {
		var line [][2]int
		r, c := row+d[0], col+d[1]
		for r >= 0 && r < Size && c >= 0 && c < Size && s.cells[r][c] == theirs {
			line = append(line, [2]int{r, c})
			r += d[0]
			c += d[1]
		}
		if len(line) > 0 && r >= 0 && r < Size && c >= 0 && c < Size && s.cells[r][c] == mine {
			flips = append(flips, line...)
		}
	}
	return flips
}

// LegalMoves implements game.State: every placement that flips at least one disc, or a
// single Pass move if none exist (and the game isn't already over).
func (s *State) LegalMoves() []Move {
	if s.terminal {
		return nil
	}
	var moves []Move
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if len(s.flipsFor(r, c, s.toMove)) > 0 {
				moves = append(moves, Move{Row: r, Col: c})
			}
		}
	}
	if len(moves) == 0 {
		moves = append(moves, Move{Pass: true})
	}
	return moves
}

// Apply implements game.State.
func (s *State) Apply(m Move) game.State[Move] {
	next := &State{cells: s.cells, toMove: 1 - s.toMove}

	if m.Pass {
		next.consecPasses = s.consecPasses + 1
		next.hasLastMove = false
	} else {
		flips := s.flipsFor(m.Row, m.Col, s.toMove)
		next.cells[m.Row][m.Col] = playerColor(s.toMove)
		for _, f := range flips {
			next.cells[f[0]][f[1]] = playerColor(s.toMove)
		}
		next.consecPasses = 0
		next.lastRow, next.lastCol, next.hasLastMove = m.Row, m.Col, true
	}

	if next.consecPasses >= 2 || next.boardFull() {
		next.terminal = true
		next.winner, next.hasWinner = next.computeWinner()
	}
	return next
}

func (s *State) boardFull() bool {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if s.cells[r][c] == Empty {
				return false
			}
		}
	}
	return true
}

func (s *State) computeWinner() (int, bool) {
	var black, white int
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch s.cells[r][c] {
			case Black:
				black++
			case White:
				white++
			}
		}
	}
	if black > white {
		return 0, true
	}
	if white > black {
		return 1, true
	}
	return 0, false
}

// IsTerminal implements game.State.
func (s *State) IsTerminal() bool { return s.terminal }

// Winner implements game.State.
func (s *State) Winner() (int, bool) { return s.winner, s.hasWinner }

// BoardView implements game.State.
func (s *State) BoardView() [][]int {
	view := make([][]int, Size)
	for r := 0; r < Size; r++ {
		row := make([]int, Size)
		for c := 0; c < Size; c++ {
			row[c] = int(s.cells[r][c])
		}
		view[r] = row
	}
	return view
}

// LastMoveCells implements game.State.
func (s *State) LastMoveCells() ([][2]int, bool) {
	if !s.hasLastMove {
		return nil, false
	}
	return [][2]int{{s.lastRow, s.lastCol}}, true
}

// PieceCount returns the current black/white disc counts, used by the rollout evaluator
// and the GPU-native engine's terminal scoring (spec §4.10: "Return ±4000 by final piece
// count").
func (s *State) PieceCount() (black, white int) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			switch s.cells[r][c] {
			case Black:
				black++
			case White:
				white++
			}
		}
	}
	return
}
