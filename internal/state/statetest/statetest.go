// Package statetest provides helper functions to create tests using Hive state.
package statetest

import (
	"fmt"
	"strings"

	. "github.com/janpfeifer/mcts-arena/internal/state"
)

// PieceOnBoard represents a position and ownership of a piece in the board.
type PieceOnBoard struct {
	Pos    Pos
	Player PlayerNum
	Piece  PieceType
}

// PrintBoard is a plain-text debug dump of b, for use while developing a test.
func PrintBoard(b *Board) {
	minX, maxX, minY, maxY := b.UsedLimits()
	for y := minY; y <= maxY; y++ {
		var row strings.Builder
		for x := minX; x <= maxX; x++ {
			pos := Pos{x, y}
			if b.HasPiece(pos) {
				player, piece, _ := b.PieceAt(pos)
				fmt.Fprintf(&row, "[%d:%s]", player, piece)
			} else {
				row.WriteString("[    ]")
			}
		}
		fmt.Println(row.String())
	}
}

// BuildBoard from a collection of pieces. Their positions may be in "display coordinates".
func BuildBoard(layout []PieceOnBoard, displayPos bool) (b *Board) {
	b = NewBoard()
	for _, p := range layout {
		pos := p.Pos
		if displayPos {
			pos = pos.FromDisplayPos()
		}
		b.StackPiece(pos, p.Player, p.Piece)
		b.SetAvailable(p.Player, p.Piece, b.Available(p.Player, p.Piece)-1)
	}
	return
}
