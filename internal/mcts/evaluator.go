package mcts

import (
	"math/rand"

	"github.com/janpfeifer/mcts-arena/internal/game"
)

// Evaluator produces a scalar in [-1, +1] for a non-terminal leaf, from the perspective of
// the player to move at that leaf (spec component C5). It generalizes the teacher's
// ai.BoardScorer/BatchBoardScorer split (internal/ai/ai.go in the original hiveGo tree)
// from a single Hive Board type to any game.State[M].
type Evaluator[M comparable] interface {
	// Evaluate scores one leaf.
	Evaluate(s game.State[M]) float32
	String() string
}

// PerWorkerEvaluator is implemented by an Evaluator that carries goroutine-unsafe state
// (e.g. a *rand.Rand). Searcher.Search calls NewWorker once per pool worker so each
// goroutine gets its own private copy instead of racing on shared state — mirroring the
// per-goroutine rand.New(rand.NewSource(...)) othellonative.dispatchBatch already uses for
// its device-side rollouts. Evaluators with no such state (TerminalEvaluator, a GPU batch
// accelerator) simply don't implement this and are shared across workers as-is.
type PerWorkerEvaluator[M comparable] interface {
	Evaluator[M]
	NewWorker(workerID int) Evaluator[M]
}

// MultiPlayerEvaluator is implemented by an Evaluator that can additionally report a full
// per-player reward vector instead of the two-player scalar convention, so backpropagation
// can apply the real per-player credit assignment of spec §4.6 to a leaf that reaches its
// own terminal state mid-rollout (Blokus, 4 players) rather than collapsing it to a
// winner/everyone-else sign flip.
type MultiPlayerEvaluator[M comparable] interface {
	Evaluator[M]
	// EvaluateRewards returns a per-player reward vector for s, or ok=false if the rollout
	// didn't reach a state that can report one (falls back to the scalar convention).
	EvaluateRewards(s game.State[M]) (rewards []float32, ok bool)
}

// BatchEvaluator is an Evaluator that can score many leaves more efficiently together —
// implemented by the GPU hybrid accelerator (internal/gpu/hybrid), mirroring the
// teacher's BatchBoardScorer.
type BatchEvaluator[M comparable] interface {
	Evaluator[M]
	EvaluateBatch(states []game.State[M]) []float32
}

// BatchEvaluatorWrapper promotes a plain Evaluator to a BatchEvaluator with no efficiency
// gain, exactly like the teacher's BatchBoardScorerWrapper.
type BatchEvaluatorWrapper[M comparable] struct {
	Evaluator[M]
}

// EvaluateBatch implements BatchEvaluator by scoring each state independently.
func (w BatchEvaluatorWrapper[M]) EvaluateBatch(states []game.State[M]) []float32 {
	out := make([]float32, len(states))
	for i, s := range states {
		out[i] = w.Evaluate(s)
	}
	return out
}

// RandomRolloutEvaluator plays uniformly random legal moves from the leaf until a terminal
// state or a ply cap is reached, then returns the terminal value (spec §4.5, "Random
// rollout (CPU)"). MaxPlies bounds the worst case so a single CPU worker never blocks
// indefinitely on a pathological game.
//
// rand.Rand is not safe for concurrent use, so a single instance must never be shared
// across worker goroutines. NewWorker hands each worker its own private stream seeded from
// Seed+workerID, the same per-goroutine rand.New(rand.NewSource(...)) pattern
// othellonative.dispatchBatch uses for its device-side rollouts.
type RandomRolloutEvaluator[M comparable] struct {
	MaxPlies int
	Seed     int64
	Rand     *rand.Rand
}

// NewRandomRolloutEvaluator returns a RandomRolloutEvaluator with a private RNG seeded
// from seed, so distinct workers can be given distinct, reproducible streams (spec §5,
// "per-worker PCG state seeded from a global seed + worker id"). It must only be used by a
// single goroutine directly; hand it to a Searcher and let NewWorker fan it out.
func NewRandomRolloutEvaluator[M comparable](maxPlies int, seed int64) *RandomRolloutEvaluator[M] {
	return &RandomRolloutEvaluator[M]{MaxPlies: maxPlies, Seed: seed, Rand: rand.New(rand.NewSource(seed))}
}

// NewWorker implements PerWorkerEvaluator: each worker id gets an independent *rand.Rand
// seeded from Seed+workerID, so concurrent workers never touch the same generator.
func (e *RandomRolloutEvaluator[M]) NewWorker(workerID int) Evaluator[M] {
	return NewRandomRolloutEvaluator[M](e.MaxPlies, e.Seed+int64(workerID))
}

// playout advances s with uniformly random legal moves until terminal or the ply cap, and
// returns the final state reached.
func (e *RandomRolloutEvaluator[M]) playout(s game.State[M]) game.State[M] {
	cur := s
	for ply := 0; ply < e.MaxPlies && !cur.IsTerminal(); ply++ {
		moves := cur.LegalMoves()
		if len(moves) == 0 {
			break
		}
		cur = cur.Apply(moves[e.Rand.Intn(len(moves))])
	}
	return cur
}

// Evaluate implements Evaluator.
func (e *RandomRolloutEvaluator[M]) Evaluate(s game.State[M]) float32 {
	return valueForPlayer(e.playout(s), s.CurrentPlayer())
}

// EvaluateRewards implements MultiPlayerEvaluator: it reports the rolled-out terminal
// state's per-player reward vector when the game supports one (Blokus), so a Blokus leaf
// that isn't itself terminal still backprops real per-player credit instead of the
// two-player sign-flip fallback.
func (e *RandomRolloutEvaluator[M]) EvaluateRewards(s game.State[M]) ([]float32, bool) {
	final := e.playout(s)
	if !final.IsTerminal() {
		return nil, false
	}
	mp, ok := any(final).(game.MultiPlayerState[M])
	if !ok {
		return nil, false
	}
	return mp.Rewards(), true
}

// String implements Evaluator.
func (e *RandomRolloutEvaluator[M]) String() string { return "random-rollout" }

// valueForPlayer returns the terminal (or ply-capped, treated as a draw) value of s from
// the perspective of player.
func valueForPlayer[M comparable](s game.State[M], player int) float32 {
	if !s.IsTerminal() {
		// Ply cap reached without reaching a terminal state: treat as a draw, matching the
		// GPU kernel contract of §4.10 ("a rollout that cannot find a legal move ... reports
		// a draw").
		return 0
	}
	winner, ok := s.Winner()
	if !ok {
		return 0
	}
	if winner == player {
		return 1
	}
	return -1
}

// TerminalEvaluator scores an already-terminal leaf (spec §4.5, "Terminal"). Expansion
// calls this directly instead of routing through the worker's configured Evaluator, since
// no simulation is needed.
type TerminalEvaluator[M comparable] struct{}

// Evaluate implements Evaluator; s must be terminal.
func (TerminalEvaluator[M]) Evaluate(s game.State[M]) float32 {
	return valueForPlayer(s, s.CurrentPlayer())
}

// String implements Evaluator.
func (TerminalEvaluator[M]) String() string { return "terminal" }
