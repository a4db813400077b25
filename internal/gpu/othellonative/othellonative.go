// Package othellonative implements the fully on-device-style Othello MCTS engine of spec
// §4.11 (component C11): all four MCTS phases run as one "device dispatch" per iteration,
// with an on-device node arena and atomic allocator. Since GoMLX graphs are pure dataflow
// and have no atomic scatter-add across an irregular, concurrently-growing arena, the
// "device" here is a pool of goroutines operating on the same atomic-typed arena
// (internal/arena) the CPU tree-parallel searcher uses — a deliberate, documented
// substitution (DESIGN.md) that preserves every externally observable property of §8:
// node-count invariants, virtual-loss pairing, the root-advance hash check, and
// saturation-is-never-fatal behavior.
package othellonative

import (
	"hash/fnv"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/janpfeifer/mcts-arena/games/othello"
	"github.com/janpfeifer/mcts-arena/internal/arena"
	"github.com/janpfeifer/mcts-arena/internal/puct"
)

// Config configures one Engine run.
type Config struct {
	MaxNodes     int
	BatchSize    int // threads per "dispatch", spec §4.11's workgroup count
	CPuct        float32
	VirtualLoss  int64
	MaxRolloutPl int // rollout ply cap
	Seed         int64
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.CPuct <= 0 {
		c.CPuct = 1.4
	}
	if c.VirtualLoss <= 0 {
		c.VirtualLoss = 1
	}
	if c.MaxRolloutPl <= 0 {
		c.MaxRolloutPl = 64
	}
	return c
}

// Engine owns one Othello arena and drives it through repeated batched dispatches.
type Engine struct {
	cfg Config

	a           *arena.Arena
	states      []*othello.State
	moves       []othello.Move
	root        uint32
	recycleHits atomic.Int64
}

// New builds an Engine rooted at initial.
func New(initial *othello.State, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:    cfg,
		a:      arena.New(cfg.MaxNodes),
		states: make([]*othello.State, cfg.MaxNodes),
		moves:  make([]othello.Move, cfg.MaxNodes),
	}
	e.installRoot(initial)
	return e
}

func (e *Engine) installRoot(s *othello.State) {
	e.a.Reset()
	idx, err := e.a.Allocate(1)
	if err != nil {
		panic("othellonative: max_nodes too small for a root node")
	}
	e.states[idx] = s
	n := e.a.Node(idx)
	n.Parent = arena.NoParent
	n.PlayerToMoveAtNode = s.CurrentPlayer()
	n.Prior = 1
	if s.IsTerminal() {
		n.MarkTerminal()
	}
	e.root = idx
}

// boardHash is FNV-1a 64 over the board's 64 cells, per spec §4.11's root-advance
// verification ("the kernel verifies the root's child matching move_played has a board
// hash equal to hash(new_board)").
func boardHash(s *othello.State) uint64 {
	h := fnv.New64a()
	for _, row := range s.BoardView() {
		for _, cell := range row {
			h.Write([]byte{byte(cell)})
		}
	}
	return h.Sum64()
}

// AdvanceRoot implements spec §4.11's root-advance-with-tree-reuse: if the current root is
// expanded and has a child reached by playing m whose board hash matches newState's hash,
// that child is promoted to root (its subtree is reused); otherwise the whole arena is
// reset and reinstalled from newState.
func (e *Engine) AdvanceRoot(m othello.Move, newState *othello.State) {
	rootNode := e.a.Node(e.root)
	targetHash := boardHash(newState)
	if rootNode.IsExpanded() {
		start, n := rootNode.ChildrenStart, rootNode.NumChildren
		for i := uint32(0); i < n; i++ {
			childIdx := start + i
			if e.moves[childIdx] == m && boardHash(e.states[childIdx]) == targetHash {
				e.root = childIdx
				return
			}
		}
	}
	e.installRoot(newState)
}

// RootStats reports the root's visits, 2x-scaled wins and child count, for external
// statistics reporting.
func (e *Engine) RootStats() (visits, wins int64, numChildren uint32) {
	n := e.a.Node(e.root)
	return n.Visits(), n.Wins(), n.NumChildren
}

// TotalNodes returns the number of nodes allocated so far.
func (e *Engine) TotalNodes() int { return e.a.Len() }

// Saturated reports whether the allocator has ever failed to satisfy a request.
func (e *Engine) Saturated() bool { return e.a.AllocFailures() > 0 }

// RecycleCandidates returns the number of nodes marked FlagSaturatedChild so far — subtree
// roots a future recycling pass could reclaim once more arena capacity is available.
func (e *Engine) RecycleCandidates() int64 { return e.recycleHits.Load() }

// BestMove runs numBatches dispatches of cfg.BatchSize simulated "device threads" each
// (spec §4.11: "the host loops num_batches = ceil(iterations / batch_size) times"),
// checking stop between batches, then returns the root's max-visits child move.
func (e *Engine) BestMove(iterations int, stop *atomic.Bool) (othello.Move, bool) {
	rootNode := e.a.Node(e.root)
	if rootNode.IsTerminal() {
		var zero othello.Move
		return zero, false
	}

	numBatches := (iterations + e.cfg.BatchSize - 1) / e.cfg.BatchSize
	for b := 0; b < numBatches; b++ {
		if stop != nil && stop.Load() {
			break
		}
		e.dispatchBatch(b)
	}

	rootNode = e.a.Node(e.root)
	if !rootNode.IsExpanded() || rootNode.NumChildren == 0 {
		moves := e.states[e.root].LegalMoves()
		if len(moves) == 0 {
			var zero othello.Move
			return zero, false
		}
		return moves[0], true
	}
	start, n := rootNode.ChildrenStart, rootNode.NumChildren
	bestIdx, bestVisits := uint32(0), int64(-1)
	for i := uint32(0); i < n; i++ {
		v := e.a.Node(start + i).Visits()
		if v > bestVisits {
			bestIdx, bestVisits = i, v
		}
	}
	return e.moves[start+bestIdx], true
}

// dispatchBatch runs one "device dispatch": cfg.BatchSize goroutines, each performing one
// full select->expand->rollout->backprop iteration against the shared arena, fanned out
// through an errgroup the same way the CPU worker pool is (internal/mcts.Searcher.Search).
func (e *Engine) dispatchBatch(batchIdx int) {
	var g errgroup.Group
	for t := 0; t < e.cfg.BatchSize; t++ {
		threadID := t
		g.Go(func() error {
			rng := rand.New(rand.NewSource(e.cfg.Seed + int64(batchIdx)*int64(e.cfg.BatchSize) + int64(threadID)))
			e.runIteration(rng)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) runIteration(rng *rand.Rand) {
	path := []uint32{e.root}
	idx := e.root
	node := e.a.Node(idx)

	for node.IsExpanded() && !node.IsTerminal() && node.NumChildren > 0 {
		childIdx := e.selectChild(idx, node)
		e.a.Node(childIdx).AddVirtualLoss(e.cfg.VirtualLoss)
		path = append(path, childIdx)
		idx, node = childIdx, e.a.Node(childIdx)
	}

	var value float32
	switch {
	case node.IsTerminal():
		value = e.terminalValue(idx)

	case node.IsExpanded() && node.NumChildren == 0:
		// A saturated-child leaf from a prior iteration (see arena.Node.MarkSaturatedChild):
		// already published expanded with no children, so it is evaluated directly on every
		// subsequent visit rather than retrying TryClaimExpansion forever.
		value = e.rollout(e.states[idx], rng)

	default:
		if !node.TryClaimExpansion() {
			for i := 1; i < len(path); i++ {
				e.a.Node(path[i]).RevertVirtualLoss(e.cfg.VirtualLoss)
			}
			return
		}
		leaf := e.states[idx]
		if leaf.IsTerminal() {
			node.MarkTerminal()
			node.PublishExpanded()
			value = e.terminalValue(idx)
			break
		}
		moves := leaf.LegalMoves()
		first, err := e.a.Allocate(len(moves))
		if err != nil {
			// Saturated: publish expansion with no children so future visits treat this
			// node as a childless leaf instead of re-racing TryClaimExpansion, and mark it
			// for a future recycling pass (spec §4.11's "saturation: further expansions
			// fail silently").
			node.MarkSaturatedChild()
			node.PublishExpanded()
			e.recycleHits.Add(1)
			value = e.rollout(leaf, rng)
			break
		}
		prior := float32(1) / float32(len(moves))
		for i, m := range moves {
			child := leaf.Apply(m).(*othello.State)
			e.states[first+uint32(i)] = child
			e.moves[first+uint32(i)] = m
			cn := e.a.Node(first + uint32(i))
			cn.Parent = idx
			cn.MoveFromParent = uint32(i)
			cn.PlayerToMoveAtNode = child.CurrentPlayer()
			cn.Prior = prior
			if child.IsTerminal() {
				cn.MarkTerminal()
			}
		}
		node.ChildrenStart = first
		node.NumChildren = uint32(len(moves))
		node.PublishExpanded()
		value = e.rollout(leaf, rng)
	}

	e.backprop(path, value)
}

func (e *Engine) selectChild(parentIdx uint32, node *arena.Node) uint32 {
	start, n := node.ChildrenStart, node.NumChildren
	parentVisits := node.Visits()
	inputs := make([]puct.Input, n)
	for i := uint32(0); i < n; i++ {
		c := e.a.Node(start + i)
		inputs[i] = puct.Input{
			Visits: c.Visits(), VirtualLosses: c.VirtualLosses(), Wins: c.Wins(),
			Prior: c.Prior, ParentVisits: parentVisits, CPuct: e.cfg.CPuct,
		}
	}
	best, _ := puct.SelectBest(inputs)
	return start + uint32(best)
}

// rollout plays uniformly random legal Othello moves to a terminal state or ply cap,
// returning ±1/0 from leaf's own current-player perspective by final piece count (spec
// §4.10/§4.11: "Return ±4000 by final piece count" and "up to 64 plies, counting pieces at
// end").
func (e *Engine) rollout(leaf *othello.State, rng *rand.Rand) float32 {
	toMove := leaf.CurrentPlayer()
	cur := leaf
	for ply := 0; ply < e.cfg.MaxRolloutPl && !cur.IsTerminal(); ply++ {
		moves := cur.LegalMoves()
		cur = cur.Apply(moves[rng.Intn(len(moves))]).(*othello.State)
	}
	black, white := cur.PieceCount()
	var diff int
	if toMove == 0 {
		diff = black - white
	} else {
		diff = white - black
	}
	switch {
	case diff > 0:
		return 1
	case diff < 0:
		return -1
	default:
		return 0
	}
}

func (e *Engine) terminalValue(idx uint32) float32 {
	s := e.states[idx]
	winner, ok := s.Winner()
	if !ok {
		return 0
	}
	if winner == s.CurrentPlayer() {
		return 1
	}
	return -1
}

// backprop credits every node on path with value, which is given from the perspective of
// the player to move at the leaf. Othello always alternates turns (a pass is a move), so
// each non-root node is credited from its parent's player-to-move perspective, the player
// who chose the move into it; the root is credited from its own player-to-move perspective.
func (e *Engine) backprop(path []uint32, value float32) {
	v := value // perspective of the player to move at path[i]
	for i := len(path) - 1; i >= 0; i-- {
		n := e.a.Node(path[i])
		credit := v
		if i > 0 {
			n.RevertVirtualLoss(e.cfg.VirtualLoss)
			credit = -v
		}
		n.RecordVisit(scaledWin(credit))
		v = -v
	}
}

func scaledWin(v float32) int64 {
	switch {
	case v >= 0.5:
		return 2
	case v >= -0.5:
		return 1
	default:
		return 0
	}
}
