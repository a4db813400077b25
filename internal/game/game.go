// Package game defines the contract every board game must satisfy to be driven by the
// search engine in internal/mcts. It is the uniform seam between the game-agnostic MCTS
// core and the per-game rule engines under games/.
package game

// State is the capability set the MCTS core requires of a game position. M is the game's
// move type: it must be comparable (the core compares moves by identity to support
// advance-root tree reuse) and printable (diagnostics, move notation).
//
// Implementations are expected to be cheap to clone: the reference design clones or
// re-derives a full new State per Apply, so the tree can store one State per node instead
// of replaying moves from the root.
type State[M comparable] interface {
	// NumPlayers returns 2 for most games, 4 for Blokus.
	NumPlayers() int

	// CurrentPlayer returns the 0-based id of the player to move: 0 or 1 for two-player
	// games, 0..3 for Blokus. Ids are never signed or 1-based.
	CurrentPlayer() int

	// LegalMoves returns the moves available to CurrentPlayer, in a deterministic order.
	// The core indexes children positionally against this slice, so two calls on an
	// unmodified state must return the same order.
	LegalMoves() []M

	// Apply returns the state that results from playing m. It must not mutate the
	// receiver: the MCTS core retains the original for backtracking-free tree traversal.
	Apply(m M) State[M]

	// IsTerminal reports whether the game has ended at this state.
	IsTerminal() bool

	// Winner returns the winning player and true, or (0, false) for an in-progress game
	// or a draw. Callers must check IsTerminal first to distinguish "no winner yet" from
	// "drawn".
	Winner() (player int, ok bool)

	// BoardView renders the position as a 2-D integer grid, used for diagnostics and for
	// packing boards into GPU batches. Games whose true state isn't a grid (Hive) return a
	// synthetic projection sized to fit their playing area.
	BoardView() [][]int

	// LastMoveCells returns the cells touched by the move that produced this state, used
	// by GPU rollouts to seed terminal-window scans. Returns ok=false for the initial
	// position.
	LastMoveCells() (cells [][2]int, ok bool)
}

// MultiPlayerState is implemented by games where more than two players can each win or
// lose independently (Blokus). The core's backpropagation (internal/mcts) type-asserts
// for this to decide between the two-player sign-flip update and the per-player reward
// vector update described in the backprop invariants.
type MultiPlayerState[M comparable] interface {
	State[M]

	// Rewards returns one value in [-1, 1] per player, ordered by player index (0-based),
	// valid only when IsTerminal is true.
	Rewards() []float32
}
