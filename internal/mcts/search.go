// Package mcts implements the game-agnostic MCTS search core: expansion, backpropagation,
// the worker pool and the root controller (spec components C4, C6, C7, C8). Selection
// (C3) is delegated to internal/puct; the fixed-layout node pool (C2) to internal/arena.
package mcts

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/janpfeifer/mcts-arena/internal/arena"
	"github.com/janpfeifer/mcts-arena/internal/game"
	"github.com/janpfeifer/mcts-arena/internal/puct"
)

// Config holds the tunables spec §6 groups under "config" for new_tree: exploration
// constant lives on the Tree itself (so AdvanceRoot can keep reusing it), everything
// about how the search is executed lives here.
type Config struct {
	// Threads is the worker pool size T (spec §5); defaults to runtime.GOMAXPROCS(0) if <= 0.
	Threads int

	// VirtualLossWeight w added to a child on selection and reverted on backprop.
	VirtualLossWeight int64

	// MaxDepth safety-bounds a single traversal's descent (spec §4.3: "a depth cap (safety
	// bound equal to max_nodes)"). If <= 0, the tree's arena capacity is used.
	MaxDepth int

	// RolloutPlyCap is defaulted by withDefaults but not read by Searcher; the playout
	// length of RandomRolloutEvaluator is set by its own MaxPlies.
	RolloutPlyCap int
}

func (c Config) withDefaults(treeCapacity int) Config {
	if c.Threads <= 0 {
		c.Threads = runtime.GOMAXPROCS(0)
	}
	if c.VirtualLossWeight <= 0 {
		c.VirtualLossWeight = 1
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = treeCapacity
	}
	if c.RolloutPlyCap <= 0 {
		c.RolloutPlyCap = 1000
	}
	return c
}

// Searcher runs the worker pool (spec component C7) against a Tree, using a configured
// Evaluator (spec component C5) for newly expanded leaves.
type Searcher[M comparable] struct {
	Config    Config
	Evaluator Evaluator[M]

	// PUCTScorer, when non-nil, replaces internal/puct.Score as the child-scoring function
	// used by selectChild — the seam the GPU hybrid accelerator's batched puctGraph plugs
	// into (spec component C9, cmd/arena's -gpu flag). Left nil, selectChild calls
	// puct.SelectBest exactly as before. The function must be safe to call concurrently
	// from every worker goroutine, the same way internal/puct.Score already is.
	PUCTScorer func(inputs []puct.Input) []puct.Result
}

// NewSearcher returns a Searcher with the given evaluator and config (zero-value fields
// take the documented defaults).
func NewSearcher[M comparable](evaluator Evaluator[M], cfg Config) *Searcher[M] {
	return &Searcher[M]{Config: cfg, Evaluator: evaluator}
}

// ChildStat is one child's entry in Stats.Children, keyed by its textual move notation.
type ChildStat struct {
	Move   string
	Q      float32
	Visits int64
}

// Stats is the External Interfaces §6 statistics record returned alongside a move.
type Stats struct {
	SearchID      uuid.UUID
	TotalNodes    int
	RootVisits    int64
	RootWins      int64
	RootValue     float32
	Saturated     bool
	Children      []ChildStat
	Elapsed       time.Duration
	IterationsRun int64
}

// pathStep is one entry of a single traversal's root-to-leaf path.
type pathStep struct {
	idx uint32
}

// Search runs the worker pool until iterations traversals have completed (if iterations >
// 0), deadline has elapsed (if deadline > 0), or ctx is cancelled — whichever comes first —
// then picks a move from the root per Tree.MoveSelect (spec §4.8).
//
// A budget of 0 iterations and no deadline runs no traversal: on a never-expanded root it
// returns the first legal move with zero visit statistics (spec §8, "Budget = 0"); on a
// root reused by AdvanceRoot it reports the existing root statistics and picks among the
// existing children. A terminal root returns the zero Move
// and ok=false (spec §8, "Terminal root").
func (s *Searcher[M]) Search(ctx context.Context, tree *Tree[M], iterations int, deadline time.Duration) (move M, ok bool, stats Stats, err error) {
	cfg := s.Config.withDefaults(tree.Arena().Cap())
	stats.SearchID = uuid.New()

	rootIdx, rootNode := tree.Root()
	if rootNode.IsTerminal() {
		return move, false, stats, nil
	}

	rootState := tree.RootState()
	if len(rootState.LegalMoves()) == 0 {
		return move, false, stats, newContractViolation("non-terminal root %v has no legal moves", rootIdx)
	}

	start := time.Now()
	var runCtx context.Context
	var cancel context.CancelFunc
	if deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var iterCount atomic.Int64
	var firstErr atomic.Pointer[error]

	runWorker := func(workerID int) {
		// Each worker gets its own Evaluator instance when the configured one carries
		// goroutine-unsafe state (e.g. RandomRolloutEvaluator's *rand.Rand) — sharing a
		// single *rand.Rand across these goroutines would race, since rand.Rand is
		// documented as unsafe for concurrent use (spec §5: per-worker PCG state).
		eval := s.Evaluator
		if pwe, ok := any(s.Evaluator).(PerWorkerEvaluator[M]); ok {
			eval = pwe.NewWorker(workerID)
		}
		for {
			select {
			case <-runCtx.Done():
				return
			default:
			}
			// With an iteration budget, a worker claims its slot before traversing, so
			// concurrent workers never complete more than iterations counted traversals.
			if iterations > 0 && iterCount.Add(1) > int64(iterations) {
				iterCount.Add(-1)
				return
			}
			didCount, iterErr := s.runIteration(tree, cfg, eval)
			if iterErr != nil {
				firstErr.CompareAndSwap(nil, &iterErr)
				return
			}
			switch {
			case iterations > 0 && !didCount:
				iterCount.Add(-1) // a lost expansion race gives its slot back and retries
			case iterations <= 0 && didCount:
				iterCount.Add(1)
			}
		}
	}

	if iterations == 0 && deadline <= 0 {
		// Nothing to do: fall through to move selection on the (possibly cold) tree.
	} else {
		// errgroup gives the worker pool (spec component C7) a single bounded fan-out point;
		// each worker reports nil here since traversal errors are already funneled through
		// firstErr so the first one wins regardless of goroutine finishing order.
		var g errgroup.Group
		for i := 0; i < cfg.Threads; i++ {
			workerID := i
			g.Go(func() error {
				runWorker(workerID)
				return nil
			})
		}
		_ = g.Wait()
	}

	stats.Elapsed = time.Since(start)
	stats.IterationsRun = iterCount.Load()
	if p := firstErr.Load(); p != nil {
		return move, false, stats, *p
	}

	stats.TotalNodes = tree.Arena().Len()
	stats.Saturated = tree.Arena().AllocFailures() > 0

	_, rootNode = tree.Root()
	stats.RootVisits = rootNode.Visits()
	stats.RootWins = rootNode.Wins()
	stats.RootValue = rootNode.Q()

	move, ok, stats.Children = s.selectMove(tree)
	if klog.V(1).Enabled() {
		klog.Infof("mcts search %s: %d iterations, %d nodes, root_value=%.3f in %s",
			stats.SearchID, stats.IterationsRun, stats.TotalNodes, stats.RootValue, stats.Elapsed)
	}
	return move, ok, stats, nil
}

// selectMove implements spec §4.8's MaxVisits/MaxQ final move pick, and always builds the
// children_stats slice regardless of which strategy is used.
func (s *Searcher[M]) selectMove(tree *Tree[M]) (move M, ok bool, children []ChildStat) {
	_, rootNode := tree.Root()
	if !rootNode.IsExpanded() || rootNode.NumChildren == 0 {
		// Nothing was ever expanded (e.g. a zero-iteration search): fall back to the first
		// legal move of the root state, with empty statistics.
		moves := tree.RootState().LegalMoves()
		if len(moves) == 0 {
			return move, false, nil
		}
		return moves[0], true, nil
	}

	start, n := rootNode.ChildrenStart, rootNode.NumChildren
	children = make([]ChildStat, n)
	bestIdx := -1
	var bestVisits int64 = -1
	var bestQ float32
	for i := uint32(0); i < n; i++ {
		child := tree.Arena().Node(start + i)
		q := child.Q()
		visits := child.Visits()
		children[i] = ChildStat{Move: fmt.Sprintf("%v", tree.MoveAt(start+i)), Q: q, Visits: visits}

		switch tree.MoveSelect {
		case MaxQ:
			if visits == 0 {
				continue
			}
			if bestIdx == -1 || q > bestQ || (q == bestQ && visits > bestVisits) {
				bestIdx, bestQ, bestVisits = int(i), q, visits
			}
		default: // MaxVisits
			if visits > bestVisits || (visits == bestVisits && (bestIdx == -1 || q > bestQ)) {
				bestIdx, bestVisits, bestQ = int(i), visits, q
			}
		}
	}
	if bestIdx == -1 {
		// MaxQ with no visited children at all: fall back to MaxVisits (spec §4.8).
		for i := uint32(0); i < n; i++ {
			child := tree.Arena().Node(start + i)
			visits := child.Visits()
			if visits > bestVisits {
				bestIdx, bestVisits = int(i), visits
			}
		}
	}
	return tree.MoveAt(start + uint32(bestIdx)), true, children
}

// runIteration performs one full select->expand->evaluate->backprop traversal. It returns
// didCount=false for a traversal that lost an expansion race (spec §4.4: "no visit is
// charged") so the caller doesn't count it against the iteration budget. eval is the
// calling worker's own Evaluator (see PerWorkerEvaluator), never shared with another
// goroutine.
func (s *Searcher[M]) runIteration(tree *Tree[M], cfg Config, eval Evaluator[M]) (didCount bool, err error) {
	a := tree.Arena()
	path := make([]pathStep, 0, 64)

	idx, _ := tree.Root()
	path = append(path, pathStep{idx})
	node := a.Node(idx)

	depth := 0
	for node.IsExpanded() && !node.IsTerminal() {
		childIdx, selErr := s.selectChild(tree, idx, node)
		if selErr != nil {
			return false, selErr
		}
		a.Node(childIdx).AddVirtualLoss(cfg.VirtualLossWeight)
		path = append(path, pathStep{childIdx})
		idx, node = childIdx, a.Node(childIdx)
		depth++
		if depth >= cfg.MaxDepth {
			break
		}
	}

	var value float32
	var rewards []float32
	var leafState game.State[M]
	switch {
	case node.IsTerminal():
		leafState = tree.State(idx)
		value = TerminalEvaluator[M]{}.Evaluate(leafState)

	case node.IsExpanded():
		// Depth cap reached while the leaf is itself expanded: evaluate it directly rather
		// than expanding further, to honor the safety bound.
		leafState = tree.State(idx)
		value, rewards = s.evaluate(eval, leafState)

	default:
		if !node.TryClaimExpansion() {
			// Lost the expansion race: unwind this traversal's virtual losses and retry a
			// fresh iteration. The winner's writes are visible once we re-observe
			// IsExpanded() on a later call, by the release/acquire contract of §4.7.
			s.revertPath(a, path, cfg.VirtualLossWeight)
			return false, nil
		}
		leafState = tree.State(idx)
		if leafState.IsTerminal() {
			node.MarkTerminal()
			node.PublishExpanded()
			value = TerminalEvaluator[M]{}.Evaluate(leafState)
			break
		}
		moves := leafState.LegalMoves()
		if len(moves) == 0 {
			return false, newContractViolation("non-terminal state %v has no legal moves", idx)
		}
		first, allocErr := a.Allocate(len(moves))
		if allocErr != nil {
			// Saturated: this leaf stays un-expanded forever; treat it like a terminal leaf
			// for this iteration only (still evaluate and backprop, spec §7 "search returns
			// the best move from the partial tree").
			value, rewards = s.evaluate(eval, leafState)
			break
		}
		prior := float32(1) / float32(len(moves))
		for i, m := range moves {
			childState := leafState.Apply(m)
			tree.setNode(first+uint32(i), idx, uint32(i), m, childState, prior)
		}
		node.ChildrenStart = first
		node.NumChildren = uint32(len(moves))
		node.PublishExpanded()
		value, rewards = s.evaluate(eval, leafState)
	}

	s.backprop(tree, path, leafState, value, rewards, cfg.VirtualLossWeight)
	return true, nil
}

// evaluate scores a non-terminal leaf with the calling worker's eval, additionally
// collecting a per-player reward vector (spec §4.6) when leafState is a
// game.MultiPlayerState and eval can report one — this is what lets a Blokus rollout that
// ends before reaching the tree's own terminal node still credit all 4 players correctly
// instead of falling back to the two-player sign flip.
func (s *Searcher[M]) evaluate(eval Evaluator[M], leafState game.State[M]) (value float32, rewards []float32) {
	if _, ok := any(leafState).(game.MultiPlayerState[M]); ok {
		if mpe, ok := eval.(MultiPlayerEvaluator[M]); ok {
			if r, ok := mpe.EvaluateRewards(leafState); ok {
				leafPlayer := leafState.CurrentPlayer()
				if leafPlayer >= 0 && leafPlayer < len(r) {
					value = r[leafPlayer]
				}
				return value, r
			}
		}
	}
	return eval.Evaluate(leafState), nil
}

// selectChild runs PUCT (spec component C3, internal/puct) over node's children.
func (s *Searcher[M]) selectChild(tree *Tree[M], parentIdx uint32, node *arena.Node) (uint32, error) {
	start, n := node.ChildrenStart, node.NumChildren
	if n == 0 {
		return 0, newContractViolation("expanded node %v reports zero children", parentIdx)
	}
	parentVisits := node.Visits()
	inputs := make([]puct.Input, n)
	for i := uint32(0); i < n; i++ {
		c := tree.Arena().Node(start + i)
		inputs[i] = puct.Input{
			Visits:        c.Visits(),
			VirtualLosses: c.VirtualLosses(),
			Wins:          c.Wins(),
			Prior:         c.Prior,
			ParentVisits:  parentVisits,
			CPuct:         tree.CPuct,
		}
	}
	var best int
	if s.PUCTScorer != nil {
		best = puct.SelectBestFromResults(s.PUCTScorer(inputs))
	} else {
		best, _ = puct.SelectBest(inputs)
	}
	return start + uint32(best), nil
}

// backprop walks path from leaf to root, crediting visits/wins and reverting virtual
// losses (spec component C6). Each node is credited with the reward of whichever player
// made the move that produced it — that player is the one to move at its parent — which
// generalizes the textbook two-player sign flip to the >2-player reward vectors Blokus and
// Hive need (spec §4.6: "each ancestor credits itself with the reward of the player who
// made the move into it").
func (s *Searcher[M]) backprop(tree *Tree[M], path []pathStep, leafState game.State[M], value float32, rewards []float32, virtualLossWeight int64) {
	a := tree.Arena()
	reward := rewardFunc(leafState, value, rewards)
	for i := len(path) - 1; i >= 0; i-- {
		n := a.Node(path[i].idx)
		if i > 0 {
			// The root is never itself selected as a child, so only edges from index 1
			// onward ever had AddVirtualLoss called against them.
			n.RevertVirtualLoss(virtualLossWeight)
		}
		var mover int
		if i == 0 {
			mover = n.PlayerToMoveAtNode
		} else {
			mover = a.Node(path[i-1].idx).PlayerToMoveAtNode
		}
		n.RecordVisit(scaledWin(reward(mover)))
	}
}

// rewardFunc returns a per-player reward lookup for one leaf evaluation. A non-nil rewards
// vector — from either a terminal leaf's own game.MultiPlayerState.Rewards() or a rollout
// that reached one via MultiPlayerEvaluator.EvaluateRewards (spec §4.6) — is used directly;
// everything else falls back to the two-player convention of value for the leaf's own
// player and -value for everyone else, which is exact for two-player zero-sum games.
func rewardFunc[M comparable](leafState game.State[M], value float32, rewards []float32) func(player int) float32 {
	if rewards == nil && leafState != nil && leafState.IsTerminal() {
		if mp, ok := any(leafState).(game.MultiPlayerState[M]); ok {
			rewards = mp.Rewards()
		}
	}
	if rewards != nil {
		return func(player int) float32 {
			if player < 0 || player >= len(rewards) {
				return 0
			}
			return rewards[player]
		}
	}
	leafPlayer := 0
	if leafState != nil {
		leafPlayer = leafState.CurrentPlayer()
	}
	return func(player int) float32 {
		if player == leafPlayer {
			return value
		}
		return -value
	}
}

// scaledWin converts a [-1, 1] value into the 2x-scaled integer credit of spec §3: 2 for a
// win (v==1), 1 for a draw (v==0), 0 for a loss (v==-1). Intermediate values (from a
// GPU-normalized score) are rounded to the nearest integer credit in {0, 1, 2}.
func scaledWin(v float32) int64 {
	scaled := v + 1 // now in [0, 2]
	switch {
	case scaled >= 1.5:
		return 2
	case scaled >= 0.5:
		return 1
	default:
		return 0
	}
}

// revertPath undoes the virtual losses added along path without recording a visit,
// matching the expansion-race unwind of spec §4.4. path[0] is the root, which never had a
// virtual loss added to it.
func (s *Searcher[M]) revertPath(a *arena.Arena, path []pathStep, weight int64) {
	for i := 1; i < len(path); i++ {
		a.Node(path[i].idx).RevertVirtualLoss(weight)
	}
}
