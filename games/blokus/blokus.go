// Package blokus implements a 4-player, 20x20 Blokus game.State adapter (spec §1, §4.10).
// Game rules beyond the abstract contract are this package's own affair (spec's Non-goals:
// "how Blokus corner-touching is computed... treated as opaque behind the game contract").
package blokus

import "github.com/janpfeifer/mcts-arena/internal/game"

const (
	BoardSize  = 20
	NumPlayers = 4
)

// startCorners gives each player's mandatory first-move anchor corner.
var startCorners = [NumPlayers][2]int{
	{0, 0}, {0, BoardSize - 1}, {BoardSize - 1, 0}, {BoardSize - 1, BoardSize - 1},
}

// Move places a piece variant with its bounding box's top-left at (Row, Col), or passes.
type Move struct {
	PieceIdx   int
	VariantIdx int
	Row, Col   int
	Pass       bool
}

// State is an immutable Blokus position.
type State struct {
	cells     [BoardSize][BoardSize]int8 // 0 empty, else player+1
	used      [NumPlayers][]bool         // used[p][pieceIdx]
	toMove    int
	passed    [NumPlayers]bool // whether player p has run out of legal moves
	firstMove [NumPlayers]bool // whether player p has placed their first piece
	moveCount int
	lastRow   int
	lastCol   int
	hasLast   bool
	terminal  bool
}

// New returns the initial empty position with all 21 pieces available to all 4 players.
func New() *State {
	s := &State{toMove: 0, lastRow: -1, lastCol: -1}
	for p := 0; p < NumPlayers; p++ {
		s.used[p] = make([]bool, len(AllPieces))
	}
	return s
}

var (
	_ game.State[Move]            = (*State)(nil)
	_ game.MultiPlayerState[Move] = (*State)(nil)
)

// NumPlayers implements game.State.
func (s *State) NumPlayers() int { return NumPlayers }

// CurrentPlayer implements game.State.
func (s *State) CurrentPlayer() int { return s.toMove }

func (s *State) inBounds(r, c int) bool { return r >= 0 && r < BoardSize && c >= 0 && c < BoardSize }

// canPlace reports whether placing shape at (row, col) is legal for player, per Blokus
// corner rule: every cell must be empty and in bounds, no placed cell may be orthogonally
// adjacent to an existing same-player cell, and at least one placed cell must be
// diagonally adjacent to an existing same-player cell — unless this is the player's first
// piece, in which case it must instead cover that player's starting corner.
func (s *State) canPlace(shape baseShape, row, col, player int) bool {
	touchesCorner := false
	for _, c := range shape {
		r, cc := row+c.R, col+c.C
		if !s.inBounds(r, cc) || s.cells[r][cc] != 0 {
			return false
		}
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := r+d[0], cc+d[1]
			if s.inBounds(nr, nc) && s.cells[nr][nc] == int8(player+1) {
				return false // edge-adjacent to own piece: illegal
			}
		}
		for _, d := range [4][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
			nr, nc := r+d[0], cc+d[1]
			if s.inBounds(nr, nc) && s.cells[nr][nc] == int8(player+1) {
				touchesCorner = true
			}
		}
	}
	if !s.firstMove[player] {
		sc := startCorners[player]
		for _, c := range shape {
			if row+c.R == sc[0] && col+c.C == sc[1] {
				return true
			}
		}
		return false
	}
	return touchesCorner
}

// LegalMoves implements game.State: every (piece, variant, position) placement available
// to the player to move, or a single Pass if none remain.
func (s *State) LegalMoves() []Move {
	if s.terminal {
		return nil
	}
	player := s.toMove
	var moves []Move
	for pieceIdx, piece := range AllPieces {
		if s.used[player][pieceIdx] {
			continue
		}
		for variantIdx, shape := range piece.Variants {
			for row := 0; row < BoardSize; row++ {
				for col := 0; col < BoardSize; col++ {
					if s.canPlace(shape, row, col, player) {
						moves = append(moves, Move{PieceIdx: pieceIdx, VariantIdx: variantIdx, Row: row, Col: col})
					}
				}
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
	next := &State{
		cells:     s.cells,
		toMove:    (s.toMove + 1) % NumPlayers,
		passed:    s.passed,
		firstMove: s.firstMove,
		moveCount: s.moveCount + 1,
		lastRow:   -1,
		lastCol:   -1,
	}
	for p := 0; p < NumPlayers; p++ {
		next.used[p] = append([]bool(nil), s.used[p]...)
	}

	if m.Pass {
		next.passed[s.toMove] = true
	} else {
		shape := AllPieces[m.PieceIdx].Variants[m.VariantIdx]
		for _, c := range shape {
			next.cells[m.Row+c.R][m.Col+c.C] = int8(s.toMove + 1)
		}
		next.used[s.toMove][m.PieceIdx] = true
		next.firstMove[s.toMove] = true
		next.passed[s.toMove] = false
		next.lastRow, next.lastCol, next.hasLast = m.Row, m.Col, true
	}

	allPassed := true
	for p := 0; p < NumPlayers; p++ {
		if !next.passed[p] {
			allPassed = false
			break
		}
	}
	next.terminal = allPassed
	return next
}

// IsTerminal implements game.State.
func (s *State) IsTerminal() bool { return s.terminal }

// scores returns each player's placed-cell count (spec §4.10: "Score = final own cell
// count vs max opponent count").
func (s *State) scores() [NumPlayers]int {
	var sc [NumPlayers]int
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if v := s.cells[r][c]; v != 0 {
				sc[v-1]++
			}
		}
	}
	return sc
}

// Winner implements game.State: the player with the strictly highest cell count; a tie for
// first reports ok=false (a draw).
func (s *State) Winner() (int, bool) {
	sc := s.scores()
	best, bestCount, ties := -1, -1, 0
	for p, v := range sc {
		if v > bestCount {
			best, bestCount, ties = p, v, 1
		} else if v == bestCount {
			ties++
		}
	}
	if ties > 1 {
		return 0, false
	}
	return best, true
}

// Rewards implements game.MultiPlayerState: +1 for the outright leader, -1 for everyone
// else, 0/0 split is not possible here (ties resolve to "nobody gets +1") — matching spec
// §4.6's "value is computed as +1/0/-1 based on final score ordering against the highest
// opponent score".
func (s *State) Rewards() []float32 {
	sc := s.scores()
	rewards := make([]float32, NumPlayers)
	winner, ok := s.Winner()
	if !ok {
		return rewards // all zero: a draw at the top
	}
	for p := range rewards {
		if p == winner {
			rewards[p] = 1
		} else if sc[p] == sc[winner] {
			rewards[p] = 0
		} else {
			rewards[p] = -1
		}
	}
	return rewards
}

// BoardView implements game.State.
func (s *State) BoardView() [][]int {
	view := make([][]int, BoardSize)
	for r := 0; r < BoardSize; r++ {
		row := make([]int, BoardSize)
		for c := 0; c < BoardSize; c++ {
			row[c] = int(s.cells[r][c])
		}
		view[r] = row
	}
	return view
}

// LastMoveCells implements game.State: just the placement's anchor cell (the full shape is
// recoverable from the move itself, which diagnostics already print).
func (s *State) LastMoveCells() ([][2]int, bool) {
	if !s.hasLast {
		return nil, false
	}
	return [][2]int{{s.lastRow, s.lastCol}}, true
}
