package othellonative

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janpfeifer/mcts-arena/games/othello"
)

func TestBestMovePicksALegalMove(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 5000, BatchSize: 16, Seed: 1})
	move, ok := e.BestMove(500, nil)
	require.True(t, ok)

	legal := othello.New().LegalMoves()
	found := false
	for _, m := range legal {
		if m == move {
			found = true
			break
		}
	}
	require.True(t, found, "BestMove must return one of the root's legal moves")
	require.Greater(t, e.TotalNodes(), 1)
}

func TestBestMoveHonorsStop(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 200, BatchSize: 4, Seed: 2})
	var stop atomic.Bool
	stop.Store(true)

	move, ok := e.BestMove(10_000, &stop)
	require.True(t, ok)
	require.NotZero(t, move)
}

func TestAdvanceRootReusesMatchingChild(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 20000, BatchSize: 32, Seed: 3})
	move, ok := e.BestMove(1000, nil)
	require.True(t, ok)

	before := e.TotalNodes()
	newState := othello.New().Apply(move).(*othello.State)
	e.AdvanceRoot(move, newState)

	// Tree reuse must not reset and re-root from scratch when the played move matches an
	// already-expanded child: the node count is preserved (never drops back to 1).
	require.Equal(t, before, e.TotalNodes())
}

func TestAdvanceRootResetsOnMismatch(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 2000, BatchSize: 16, Seed: 4})
	// Root was never expanded (BestMove not called yet), so any move forces a fresh install.
	move := othello.New().LegalMoves()[0]
	newState := othello.New().Apply(move).(*othello.State)
	e.AdvanceRoot(move, newState)

	require.Equal(t, 1, e.TotalNodes())
}

func TestSaturatesWithSmallArena(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 10, BatchSize: 8, Seed: 5})
	_, ok := e.BestMove(2000, nil)
	require.True(t, ok)
	require.True(t, e.Saturated())
}

func TestRecycleCandidatesTracksSaturatedExpansions(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 10, BatchSize: 8, Seed: 6})
	_, _ = e.BestMove(2000, nil)
	require.Greater(t, e.RecycleCandidates(), int64(0))
}

func TestRootStatsReflectSearch(t *testing.T) {
	e := New(othello.New(), Config{MaxNodes: 20000, BatchSize: 32, Seed: 7})
	_, ok := e.BestMove(1000, nil)
	require.True(t, ok)

	visits, _, numChildren := e.RootStats()
	require.Greater(t, visits, int64(0))
	require.Greater(t, numChildren, uint32(0))
}
