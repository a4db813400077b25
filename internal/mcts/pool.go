package mcts

import (
	"context"
	"time"

	"github.com/janpfeifer/mcts-arena/internal/game"
)

// TreePool owns one or more Trees and implements the shared-vs-per-player tree policy of
// spec §4.8 (component C8): with SharedTree true there is a single tree under key 0 used
// by every AI seat; with SharedTree false each player id gets its own tree, and a move is
// only searched against the mover's own tree — but advance_root is applied to every tree
// the pool owns, since all of them must stay synchronized with the one true game state.
type TreePool[M comparable] struct {
	SharedTree bool
	MaxNodes   int
	CPuct      float32
	MoveSelect MoveSelection

	newTreeFor func(player int) *Tree[M]

	trees map[int]*Tree[M]
}

// NewTreePool builds a pool. newTreeFor is called once per distinct key the first time
// that tree is needed (key 0 for a shared tree, or the player id for a per-player pool),
// and must return a fresh Tree rooted at the game's current state.
func NewTreePool[M comparable](sharedTree bool, newTreeFor func(player int) *Tree[M]) *TreePool[M] {
	return &TreePool[M]{SharedTree: sharedTree, newTreeFor: newTreeFor, trees: make(map[int]*Tree[M])}
}

// key maps a player id to the tree-pool key per spec §4.8: shared_tree=true always uses
// key 0; shared_tree=false uses the player id itself.
func (p *TreePool[M]) key(player int) int {
	if p.SharedTree {
		return 0
	}
	return player
}

// TreeFor returns (creating if necessary) the tree that should be searched for the given
// player's move.
func (p *TreePool[M]) TreeFor(player int, current game.State[M]) *Tree[M] {
	k := p.key(player)
	t, ok := p.trees[k]
	if !ok {
		t = p.newTreeFor(k)
		p.trees[k] = t
	}
	return t
}

// AdvanceAll applies advance_root to every tree the pool currently owns, regardless of
// whether that tree belongs to the player who actually moved (spec §4.8: "root is advanced
// for every move, regardless of whose turn" under shared_tree, and per-player trees must
// likewise track the single authoritative game state even while they sit idle).
func (p *TreePool[M]) AdvanceAll(m M, newState game.State[M]) {
	for _, t := range p.trees {
		t.AdvanceRoot(m, newState)
	}
}

// Reset discards every owned tree; the next TreeFor call rebuilds from scratch.
func (p *TreePool[M]) Reset() {
	p.trees = make(map[int]*Tree[M])
}

// SearchMove runs a Searcher against the pool's tree for the mover and, on success,
// advances every owned tree by the chosen move and the caller-supplied resulting state.
// This is the one-call convenience path; callers
// needing finer control (e.g. inspecting Stats before deciding whether to advance) should
// call TreeFor + Searcher.Search + AdvanceAll directly instead.
func (p *TreePool[M]) SearchMove(ctx context.Context, searcher *Searcher[M], player int, current game.State[M], iterations int, deadline time.Duration) (move M, ok bool, stats Stats, err error) {
	tree := p.TreeFor(player, current)
	move, ok, stats, err = searcher.Search(ctx, tree, iterations, deadline)
	if err != nil || !ok {
		return move, ok, stats, err
	}
	nextState := current.Apply(move)
	p.AdvanceAll(move, nextState)
	return move, ok, stats, nil
}
