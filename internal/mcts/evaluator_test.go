package mcts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janpfeifer/mcts-arena/games/blokus"
	"github.com/janpfeifer/mcts-arena/games/connect4"
	"github.com/janpfeifer/mcts-arena/internal/game"
)

func TestRandomRolloutEvaluatorIsBounded(t *testing.T) {
	evaluator := NewRandomRolloutEvaluator[connect4.Move](5, 1)
	value := evaluator.Evaluate(connect4.New())
	require.GreaterOrEqual(t, value, float32(-1))
	require.LessOrEqual(t, value, float32(1))
}

func TestRandomRolloutEvaluatorIsDeterministicForASeed(t *testing.T) {
	a := NewRandomRolloutEvaluator[connect4.Move](200, 99)
	b := NewRandomRolloutEvaluator[connect4.Move](200, 99)
	require.Equal(t, a.Evaluate(connect4.New()), b.Evaluate(connect4.New()))
}

func TestBatchEvaluatorWrapperScoresEachStateIndependently(t *testing.T) {
	base := NewRandomRolloutEvaluator[connect4.Move](50, 3)
	wrapper := BatchEvaluatorWrapper[connect4.Move]{Evaluator: base}

	states := []game.State[connect4.Move]{connect4.New(), connect4.New()}
	values := wrapper.EvaluateBatch(states)
	require.Len(t, values, 2)
}

func TestRandomRolloutEvaluatorNewWorkerGivesEachWorkerItsOwnSeed(t *testing.T) {
	base := NewRandomRolloutEvaluator[connect4.Move](50, 42)
	w1 := base.NewWorker(1).(*RandomRolloutEvaluator[connect4.Move])
	w2 := base.NewWorker(2).(*RandomRolloutEvaluator[connect4.Move])
	require.NotEqual(t, w1.Seed, w2.Seed)
	require.NotSame(t, w1.Rand, w2.Rand)

	// Same base + same worker id is reproducible.
	w1Again := base.NewWorker(1).(*RandomRolloutEvaluator[connect4.Move])
	require.Equal(t, w1.Seed, w1Again.Seed)
}

func TestRandomRolloutEvaluatorEvaluateRewardsUsesMultiPlayerState(t *testing.T) {
	var cur game.State[blokus.Move] = blokus.New()
	for i := 0; i < blokus.NumPlayers; i++ {
		cur = cur.Apply(blokus.Move{Pass: true})
	}
	require.True(t, cur.IsTerminal())

	ev := NewRandomRolloutEvaluator[blokus.Move](0, 1)
	rewards, ok := ev.EvaluateRewards(cur)
	require.True(t, ok)
	require.Len(t, rewards, blokus.NumPlayers)
}

func TestRandomRolloutEvaluatorEvaluateRewardsFallsBackWhenNotMultiPlayer(t *testing.T) {
	var cur game.State[connect4.Move] = connect4.New()
	moves := []connect4.Move{{Col: 0}, {Col: 1}, {Col: 0}, {Col: 1}, {Col: 0}, {Col: 1}, {Col: 0}}
	for _, m := range moves {
		cur = cur.Apply(m)
	}
	require.True(t, cur.IsTerminal())

	ev := NewRandomRolloutEvaluator[connect4.Move](0, 1)
	_, ok := ev.EvaluateRewards(cur)
	require.False(t, ok, "connect4 is not a game.MultiPlayerState")
}

func TestTerminalEvaluatorReportsWinnerPerspective(t *testing.T) {
	s := connect4.New()
	var cur game.State[connect4.Move] = s
	// Vertical stack of 4 in column 0 for player 0.
	moves := []connect4.Move{{Col: 0}, {Col: 1}, {Col: 0}, {Col: 1}, {Col: 0}, {Col: 1}, {Col: 0}}
	for _, m := range moves {
		cur = cur.Apply(m)
	}
	require.True(t, cur.IsTerminal())
	winner, ok := cur.Winner()
	require.True(t, ok)
	require.Equal(t, 0, winner)

	// TerminalEvaluator scores from CurrentPlayer's perspective, which after the winning
	// move is the player who did NOT just win.
	ev := TerminalEvaluator[connect4.Move]{}
	require.Equal(t, float32(-1), ev.Evaluate(cur))
}
