package mcts

import (
	"sync"

	"github.com/google/uuid"

	"github.com/janpfeifer/mcts-arena/internal/arena"
	"github.com/janpfeifer/mcts-arena/internal/game"
)

// MoveSelection picks the final move from the root's children once the search budget is
// exhausted (spec component C8).
type MoveSelection int

const (
	// MaxVisits picks the child with the most visits, the AlphaZero-standard choice.
	MaxVisits MoveSelection = iota
	// MaxQ picks the child with the highest Q among visited children.
	MaxQ
)

// String implements fmt.Stringer.
func (s MoveSelection) String() string {
	switch s {
	case MaxVisits:
		return "max_visits"
	case MaxQ:
		return "max_q"
	default:
		return "unknown"
	}
}

// Tree owns one arena plus the per-node state and move bookkeeping that the fixed-layout
// arena.Node can't hold directly (spec §3's "Tree" record). A Tree is shared read/write by
// every worker goroutine in a Searcher.Search call; all cross-goroutine coordination goes
// through the arena's atomics plus rootMu, which only ever guards swapping the root index
// itself (advance_root), never per-iteration traversal.
type Tree[M comparable] struct {
	ID uuid.UUID

	CPuct             float32
	MoveSelect        MoveSelection
	VirtualLossWeight int64

	arena *arena.Arena

	// states[i] is the game state at node i; moves[i] is the move that produced node i
	// from its parent (zero value at the root). Both slices are allocated in lockstep with
	// arena indices and written exactly once, before the node's FlagExpanded is published,
	// so readers that observe IsExpanded() are guaranteed (by Go's atomic happens-before
	// rule) to see a fully-initialized entry.
	states []game.State[M]
	moves  []M

	rootMu sync.RWMutex
	root   uint32
}

// NewTree allocates a fresh Tree rooted at the given state, with room for maxNodes total
// nodes (spec's max_nodes). cPuct and moveSelect configure selection and final move pick.
func NewTree[M comparable](initial game.State[M], maxNodes int, cPuct float32, moveSelect MoveSelection, virtualLossWeight int64) *Tree[M] {
	t := &Tree[M]{
		ID:                uuid.New(),
		CPuct:             cPuct,
		MoveSelect:        moveSelect,
		VirtualLossWeight: virtualLossWeight,
		arena:             arena.New(maxNodes),
		states:            make([]game.State[M], maxNodes),
		moves:             make([]M, maxNodes),
	}
	t.installRoot(initial)
	return t
}

// installRoot resets the arena and places a fresh root for the given state. Used both by
// NewTree and by AdvanceRoot's fallback path.
func (t *Tree[M]) installRoot(s game.State[M]) {
	t.arena.Reset()
	idx, err := t.arena.Allocate(1)
	if err != nil {
		// MaxNodes < 1 is a caller bug; a 1-node arena always has room for its own root.
		panic("mcts: tree arena too small to hold a root node")
	}
	t.states[idx] = s
	t.moves[idx] = zeroMove[M]()
	n := t.arena.Node(idx)
	n.Parent = arena.NoParent
	n.PlayerToMoveAtNode = s.CurrentPlayer()
	n.Prior = 1
	if s.IsTerminal() {
		n.MarkTerminal()
	}
	t.rootMu.Lock()
	t.root = idx
	t.rootMu.Unlock()
}

func zeroMove[M comparable]() M {
	var z M
	return z
}

// Root returns the current root index and its arena node.
func (t *Tree[M]) Root() (uint32, *arena.Node) {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.root, t.arena.Node(t.root)
}

// RootState returns the game state at the current root.
func (t *Tree[M]) RootState() game.State[M] {
	t.rootMu.RLock()
	defer t.rootMu.RUnlock()
	return t.states[t.root]
}

// Arena exposes the underlying arena for the searcher's selection/expansion/backprop
// loop and for statistics collection.
func (t *Tree[M]) Arena() *arena.Arena { return t.arena }

// State returns the game state stored at idx.
func (t *Tree[M]) State(idx uint32) game.State[M] { return t.states[idx] }

// MoveAt returns the move that produced node idx from its parent.
func (t *Tree[M]) MoveAt(idx uint32) M { return t.moves[idx] }

// setNode writes the state/move pair for a freshly allocated index. Must be called before
// the owning parent's PublishExpanded, per the happens-before contract documented on the
// states field above.
func (t *Tree[M]) setNode(idx uint32, parent uint32, moveIdx uint32, move M, s game.State[M], prior float32) {
	t.states[idx] = s
	t.moves[idx] = move
	n := t.arena.Node(idx)
	n.Parent = parent
	n.MoveFromParent = moveIdx
	n.PlayerToMoveAtNode = s.CurrentPlayer()
	n.Prior = prior
	if s.IsTerminal() {
		n.MarkTerminal()
	}
}

// AdvanceRoot implements spec §4.8's advance_root: promote the root's child reached by
// playing m to be the new root, preserving its subtree's statistics (tree reuse). If no
// such child exists — the tree was never expanded, m wasn't among the enumerated legal
// moves, or the caller is resetting after a game reset — the arena is reset and a fresh
// root is installed from newState.
func (t *Tree[M]) AdvanceRoot(m M, newState game.State[M]) {
	t.rootMu.Lock()
	rootIdx := t.root
	t.rootMu.Unlock()

	rootNode := t.arena.Node(rootIdx)
	if rootNode.IsExpanded() {
		start, n := rootNode.ChildrenStart, rootNode.NumChildren
		for i := uint32(0); i < n; i++ {
			childIdx := start + i
			if t.moves[childIdx] == m {
				t.rootMu.Lock()
				t.root = childIdx
				t.rootMu.Unlock()
				return
			}
		}
	}
	// No matching child: reset and start over from the authoritative new state.
	t.installRoot(newState)
}
