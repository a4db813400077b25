package hybrid

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janpfeifer/mcts-arena/games/connect4"
	"github.com/janpfeifer/mcts-arena/internal/game"
	"github.com/janpfeifer/mcts-arena/internal/gpu"
)

func TestPackBoardIsAllZeroOnTheEmptyBoard(t *testing.T) {
	flat := packBoard[connect4.Move](connect4.New())
	require.Len(t, flat, connect4.Rows*connect4.Cols)
	for _, v := range flat {
		require.Zero(t, v)
	}
}

func TestPackBoardMarksOwnCellsPositiveAndOpponentCellsNegative(t *testing.T) {
	var cur game.State[connect4.Move] = connect4.New()
	cur = cur.Apply(connect4.Move{Col: 0}) // player 0
	cur = cur.Apply(connect4.Move{Col: 1}) // player 1

	// It is now player 0's turn again; player 0's own disc (column 0) must read +1 and
	// player 1's disc (column 1) must read -1 from that perspective.
	flat := packBoard[connect4.Move](cur)
	view := cur.BoardView()
	cols := len(view[0])
	bottomRow := len(view) - 1 // BoardView is top-row-first; the dropped discs sit at the bottom.
	require.Equal(t, float32(1), flat[bottomRow*cols+0])
	require.Equal(t, float32(-1), flat[bottomRow*cols+1])
}

func TestGridEvaluatorEvaluateMatchesMaterialScoreOfItsOwnPackedBoard(t *testing.T) {
	accel := New(gpu.New())
	ev := NewGridEvaluator[connect4.Move](accel)

	var cur game.State[connect4.Move] = connect4.New()
	cur = cur.Apply(connect4.Move{Col: 0})

	got := ev.Evaluate(cur)
	want := materialScore(packBoard[connect4.Move](cur))
	require.InDelta(t, want, got, 1e-3)
}

func TestGridEvaluatorEvaluateBatchScoresEachStateIndependently(t *testing.T) {
	accel := New(gpu.New())
	ev := NewGridEvaluator[connect4.Move](accel)

	var a, b game.State[connect4.Move] = connect4.New(), connect4.New()
	a = a.Apply(connect4.Move{Col: 0})
	b = b.Apply(connect4.Move{Col: 0}).Apply(connect4.Move{Col: 0})

	got := ev.EvaluateBatch([]game.State[connect4.Move]{a, b})
	require.Len(t, got, 2)
	require.InDelta(t, materialScore(packBoard[connect4.Move](a)), got[0], 1e-3)
	require.InDelta(t, materialScore(packBoard[connect4.Move](b)), got[1], 1e-3)
}

func TestGridEvaluatorStringIdentifiesItself(t *testing.T) {
	ev := NewGridEvaluator[connect4.Move](New(gpu.New()))
	require.Equal(t, "gpu-hybrid-material", ev.String())
}

func TestMaterialScoreIsZeroOnAnEmptyBoard(t *testing.T) {
	require.Zero(t, materialScore(make([]float32, 10)))
}

func TestMaterialScoreFavorsTheSideWithMoreCells(t *testing.T) {
	got := materialScore([]float32{1, 1, 1, -1, 0})
	require.Greater(t, got, float32(0))
}
