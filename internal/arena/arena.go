// Package arena implements the fixed-layout, index-addressed node pool that backs an MCTS
// tree (spec component C2). Nodes are never referenced by pointer: every cross-node
// reference (parent, children) is an integer index into the arena's backing slice, so the
// tree can be shared across goroutines without per-node heap ownership.
//
// Field-for-field this mirrors the NodeData record from the original Rust source
// (crates/mcts-shaders/src/lib.rs), which packs the same fields into a GPU-uploadable
// struct; here each field is instead an independent Go atomic, which is the natural
// CPU-side equivalent of "no per-node lock, fine-grained atomics only" (spec §5).
package arena

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// Sentinel index values.
const (
	// NoParent marks the root node, which has no parent edge.
	NoParent = ^uint32(0)
)

// Flag bits stored in Node.flags.
const (
	FlagExpanded uint32 = 1 << iota
	FlagTerminal
	// FlagClaimed is set by the single worker that won the right to expand a leaf, before
	// it does the (possibly slow) work of enumerating legal moves and allocating the
	// child block. FlagExpanded is only set after that work completes and is published
	// with a release fence, so a worker that observes FlagExpanded can always trust the
	// child block; a worker that only observes FlagClaimed must spin back into selection
	// and wait.
	FlagClaimed
	// FlagSaturatedChild marks a node whose expansion was claimed but whose child-block
	// allocation failed; the node is still published as expanded with zero children and
	// is evaluated directly on later visits (see MarkSaturatedChild). Named after the
	// equivalent NODE_FLAG_SATURATED bit in the original source.
	FlagSaturatedChild
)

// Node is one fixed-layout arena entry. All mutable fields are atomics so concurrent
// workers can read/update visits, wins and virtual losses without a per-node lock.
type Node struct {
	// Parent is the index of the parent node, or NoParent for the root.
	Parent uint32

	// MoveFromParent is the index into the parent's LegalMoves()/children slice that
	// produced this node (the "edge" identifier from spec §3).
	MoveFromParent uint32

	// PlayerToMoveAtNode is the player whose turn it is at this node's state.
	PlayerToMoveAtNode int

	// Prior is the (currently uniform) prior probability of the edge leading into this
	// node, used by the exploration term of PUCT.
	Prior float32

	// ChildrenStart and NumChildren describe the contiguous child block. Both are zero
	// until FlagExpanded is set, and immutable afterwards (spec invariant: "once expanded
	// is set, children are immutable").
	ChildrenStart uint32
	NumChildren   uint32

	visits        atomic.Int64
	wins          atomic.Int64 // scaled 2x per visit: +2 win, +1 draw, +0 loss.
	virtualLosses atomic.Int64
	flags         atomic.Uint32
}

// Visits returns the number of completed backpropagations through this node.
func (n *Node) Visits() int64 { return n.visits.Load() }

// Wins returns the accumulated, 2x-scaled win credit for this node.
func (n *Node) Wins() int64 { return n.wins.Load() }

// VirtualLosses returns the currently outstanding (not-yet-reverted) virtual loss count.
func (n *Node) VirtualLosses() int64 { return n.virtualLosses.Load() }

// Q returns the node's win rate in [0, 1] from the acting player's perspective, or 0 if
// never visited.
func (n *Node) Q() float32 {
	v := n.visits.Load()
	if v <= 0 {
		return 0
	}
	return float32(n.wins.Load()) / float32(2*v)
}

// AddVirtualLoss adds w to the node's outstanding virtual loss count, called when
// selection descends through this node's edge.
func (n *Node) AddVirtualLoss(w int64) { n.virtualLosses.Add(w) }

// RevertVirtualLoss removes w from the node's outstanding virtual loss count, called
// during backprop (or on an expansion-race unwind) to match a prior AddVirtualLoss.
func (n *Node) RevertVirtualLoss(w int64) { n.virtualLosses.Add(-w) }

// RecordVisit adds one visit and the given (already perspective-flipped, 0/1/2-scaled)
// win credit atomically. Visits and wins are independent atomics: readers may observe a
// visit bump before the matching win credit lands, which selection tolerates (spec §4.6).
func (n *Node) RecordVisit(scaledWin int64) {
	n.visits.Add(1)
	n.wins.Add(scaledWin)
}

// Flags returns the current flag bits.
func (n *Node) Flags() uint32 { return n.flags.Load() }

// IsExpanded reports whether FlagExpanded has been published. This is the acquire-side of
// the release fence described in spec §4.7: a true result guarantees ChildrenStart and
// NumChildren are valid and the child block's contents are visible.
func (n *Node) IsExpanded() bool { return n.flags.Load()&FlagExpanded != 0 }

// IsTerminal reports whether this node represents a terminal game state.
func (n *Node) IsTerminal() bool { return n.flags.Load()&FlagTerminal != 0 }

// MarkTerminal sets FlagTerminal. Terminal nodes are never expanded.
func (n *Node) MarkTerminal() { n.flags.Or(FlagTerminal) }

// TryClaimExpansion attempts to set FlagClaimed via CAS, modeling the "at most one worker
// may expand a given leaf" contract of spec §4.4. Returns true if this call won the race;
// callers that lose must not charge a visit, must still unwind their virtual loss, and
// must re-enter selection from this node (spinning until PublishExpanded completes).
func (n *Node) TryClaimExpansion() bool {
	for {
		old := n.flags.Load()
		if old&FlagClaimed != 0 {
			return false
		}
		if n.flags.CompareAndSwap(old, old|FlagClaimed) {
			return true
		}
	}
}

// PublishExpanded sets FlagExpanded, releasing the child block written by the caller (who
// must have already won TryClaimExpansion) to every other goroutine. Spec §4.7: "writes to
// a newly allocated child block are published via a release fence before the parent's
// expanded flag is set".
func (n *Node) PublishExpanded() { n.flags.Or(FlagExpanded) }

// IsSaturatedChild reports whether MarkSaturatedChild has been called on this node.
func (n *Node) IsSaturatedChild() bool { return n.flags.Load()&FlagSaturatedChild != 0 }

// MarkSaturatedChild sets FlagSaturatedChild, for a node whose expansion was claimed but
// whose child-block allocation then failed. The caller still publishes expansion with
// NumChildren left at 0, so later visits treat this node as a childless leaf (evaluated
// directly, like a terminal) instead of retrying TryClaimExpansion forever. A future
// recycling pass can use this flag to find and reclaim these subtree roots once more arena
// space frees up.
func (n *Node) MarkSaturatedChild() { n.flags.Or(FlagSaturatedChild) }

// reset clears a node back to its zero value field-by-field. Node embeds sync/atomic
// types, which must never be copied once used (go vet's copylocks check flags assigning
// Node{} over a live Node); zeroing each field individually avoids that while achieving
// the same effect.
func (n *Node) reset() {
	n.Parent = 0
	n.MoveFromParent = 0
	n.PlayerToMoveAtNode = 0
	n.Prior = 0
	n.ChildrenStart = 0
	n.NumChildren = 0
	n.visits.Store(0)
	n.wins.Store(0)
	n.virtualLosses.Store(0)
	n.flags.Store(0)
}

// ErrSaturated is returned by Allocate when the arena has no room left for the requested
// block.
var ErrSaturated = errors.New("arena saturated: max_nodes exceeded")

// Arena is a pre-allocated pool of Node addressed by integer index (spec component C2).
// Capacity is fixed at construction; Allocate is the only way to obtain new indices, via a
// monotonic atomic bump counter (the CPU equivalent of the GPU-native engine's device-side
// atomic allocator, spec §4.11).
type Arena struct {
	nodes     []Node
	allocHead atomic.Uint32

	allocFailures atomic.Int64
}

// New creates an Arena with room for exactly capacity nodes.
func New(capacity int) *Arena {
	return &Arena{nodes: make([]Node, capacity)}
}

// Cap returns the arena's total capacity.
func (a *Arena) Cap() int { return len(a.nodes) }

// Len returns the number of nodes allocated so far, clamped to Cap: a failed over-limit
// Allocate leaves the bump counter past capacity (it is never rolled back; see Allocate).
func (a *Arena) Len() int {
	n := a.allocHead.Load()
	if int(n) > len(a.nodes) {
		return len(a.nodes)
	}
	return int(n)
}

// AllocFailures returns the number of times Allocate returned ErrSaturated, the "allocator
// exhausted" counter referenced by spec §4.11.
func (a *Arena) AllocFailures() int64 { return a.allocFailures.Load() }

// Node returns a pointer to the node at idx. The caller must only pass indices previously
// returned by Allocate (or NoParent's children, which callers must check for separately).
func (a *Arena) Node(idx uint32) *Node { return &a.nodes[idx] }

// Allocate reserves a contiguous block of n fresh node indices and returns the index of
// the first one. It is the arena's only allocation primitive (spec §4.2): on CPU it is an
// atomic fetch-add; saturation is detected by comparing the post-increment head against
// capacity and, on overflow, the excess is not rolled back (the bump counter is monotonic
// and allowed to overshoot) but no index past capacity is ever handed out.
func (a *Arena) Allocate(n int) (uint32, error) {
	if n <= 0 {
		panic("arena: Allocate called with n <= 0")
	}
	first := a.allocHead.Add(uint32(n)) - uint32(n)
	if int(first)+n > len(a.nodes) {
		a.allocFailures.Add(1)
		return 0, ErrSaturated
	}
	return first, nil
}

// Reset drops all allocated nodes and rewinds the allocator, reusing the backing storage.
// Used when advance_root finds no matching child (spec §4.8) or on a full game reset.
func (a *Arena) Reset() {
	a.allocHead.Store(0)
	for i := range a.nodes {
		a.nodes[i].reset()
	}
}
