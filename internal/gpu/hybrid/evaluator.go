package hybrid

import (
	"github.com/janpfeifer/mcts-arena/internal/game"
)

// GridEvaluator adapts an Accelerator into an internal/mcts.Evaluator/BatchEvaluator (spec
// component C10), for the three rectangular two-player games whose BoardView is a dense
// grid of one cell value per intersection: gomoku, connect4, othello. Blokus backprop
// needs a per-player reward vector BatchEvaluate has no room for, and Hive's BoardView is
// a non-rectangular projection, so both keep using RandomRolloutEvaluator instead.
type GridEvaluator[M comparable] struct {
	Accel *Accelerator
}

// NewGridEvaluator wraps accel for game M.
func NewGridEvaluator[M comparable](accel *Accelerator) *GridEvaluator[M] {
	return &GridEvaluator[M]{Accel: accel}
}

// Evaluate implements mcts.Evaluator by packing s alone into a batch of one — which, below
// Accel.FallbackThreshold, is exactly the CPU material evaluator cpuBatchEvaluate runs
// per-board anyway, so a single-leaf call costs nothing extra beyond the slice packing.
func (g *GridEvaluator[M]) Evaluate(s game.State[M]) float32 {
	return g.EvaluateBatch([]game.State[M]{s})[0]
}

// EvaluateBatch implements mcts.BatchEvaluator, packing every state's BoardView from its
// own current player's perspective and dispatching through Accel.BatchEvaluate.
func (g *GridEvaluator[M]) EvaluateBatch(states []game.State[M]) []float32 {
	boards := make([][]float32, len(states))
	for i, s := range states {
		boards[i] = packBoard(s)
	}
	return g.Accel.BatchEvaluate(boards, materialScore)
}

func (g *GridEvaluator[M]) String() string { return "gpu-hybrid-material" }

// packBoard flattens s.BoardView() into a +1 (current player's own cell) / -1 (opponent) /
// 0 (empty) board, matching the perspective materialGraph and cpuBatchEvaluate's fallback
// both expect. Every in-pack grid game numbers cell values as CurrentPlayer()+1 (0 stays
// empty), so this needs no per-game special-casing.
func packBoard[M comparable](s game.State[M]) []float32 {
	view := s.BoardView()
	own := s.CurrentPlayer() + 1

	n := 0
	for _, row := range view {
		n += len(row)
	}
	flat := make([]float32, 0, n)
	for _, row := range view {
		for _, cell := range row {
			switch {
			case cell == 0:
				flat = append(flat, 0)
			case cell == own:
				flat = append(flat, 1)
			default:
				flat = append(flat, -1)
			}
		}
	}
	return flat
}

// materialScore is the CPU equivalent of materialGraph, run by Accel.BatchEvaluate's
// fallback path for a packBoard-shaped input.
func materialScore(board []float32) float32 {
	var own, opp float32
	for _, c := range board {
		switch {
		case c > 0:
			own++
		case c < 0:
			opp++
		}
	}
	total := own + opp
	if total == 0 {
		return 0
	}
	return (own - opp) / total
}
