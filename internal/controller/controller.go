// Package controller implements the Move Controller (spec component C12): the single
// mediator that owns the live game state and is the only path allowed to mutate it. It is
// grounded on the teacher's internal/ui/cli rendering for diagnostic dumps and on the
// shape of the teacher's players.Player interface for how an AI proposes a move that the
// controller then validates and applies.
package controller

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/janpfeifer/mcts-arena/internal/game"
)

// Outcome classifies the result of TryMove, mirroring spec §4.12's
// Success/Invalid/GameOver result type.
type Outcome int

const (
	// Success means the move was legal and has been applied.
	Success Outcome = iota
	// Invalid means the move was rejected; the state is unchanged.
	Invalid
	// GameOver means the move was legal, applied, and ended the game.
	GameOver
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Invalid:
		return "invalid"
	case GameOver:
		return "game_over"
	default:
		return "unknown"
	}
}

// Result is what TryMove and Validate report back to the caller.
type Result struct {
	Outcome Outcome
	Player  int  // the player who made the move (only meaningful on Success/GameOver)
	Winner  int  // valid only when Outcome == GameOver
	HasWin  bool // false for a drawn GameOver
	Reason  string
}

// historyEntry records one applied move for format_history (spec §4.12).
type historyEntry[M comparable] struct {
	player int
	move   M
}

// Controller is the authoritative owner of a single game's live state (spec component
// C12). The AI proposes moves via TryMove; nothing else in this module is allowed to
// advance current directly.
type Controller[M comparable] struct {
	current game.State[M]
	history []historyEntry[M]
}

// New wraps an initial game state under controller ownership.
func New[M comparable](initial game.State[M]) *Controller[M] {
	return &Controller[M]{current: initial}
}

// State returns the current, authoritative game state.
func (c *Controller[M]) State() game.State[M] { return c.current }

// History returns the applied moves in order.
func (c *Controller[M]) History() []M {
	moves := make([]M, len(c.history))
	for i, e := range c.history {
		moves[i] = e.move
	}
	return moves
}

// Validate implements spec §4.12's validate(): checks whether m is among the current
// state's legal moves, without mutating anything. Used to gate an AI's proposal before
// TryMove is called for real.
func (c *Controller[M]) Validate(m M) Result {
	if c.current.IsTerminal() {
		return Result{Outcome: Invalid, Reason: "game is already over"}
	}
	for _, legal := range c.current.LegalMoves() {
		if legal == m {
			return Result{Outcome: Success}
		}
	}
	return Result{Outcome: Invalid, Reason: "move is not among the current legal moves"}
}

// TryMove implements spec §4.12's try_move(): validates m, applies it if legal, and
// records it in history. This is the only method in the package that mutates c.current.
func (c *Controller[M]) TryMove(m M) Result {
	if c.current.IsTerminal() {
		return Result{Outcome: Invalid, Reason: "game is already over"}
	}
	player := c.current.CurrentPlayer()
	valid := false
	for _, legal := range c.current.LegalMoves() {
		if legal == m {
			valid = true
			break
		}
	}
	if !valid {
		return Result{Outcome: Invalid, Player: player, Reason: "move is not among the current legal moves"}
	}

	c.current = c.current.Apply(m)
	c.history = append(c.history, historyEntry[M]{player: player, move: m})

	if c.current.IsTerminal() {
		winner, ok := c.current.Winner()
		return Result{Outcome: GameOver, Player: player, Winner: winner, HasWin: ok}
	}
	return Result{Outcome: Success, Player: player}
}

// TryAiMove wraps TryMove for an AI-proposed move: an invalid proposal here is a
// game-implementation or search bug rather than ordinary user input, so it is fatal (spec
// §4.12/§7's InvalidAiMove) — the caller gets back a wrapped error carrying a diagnostic
// dump (board, history, legal moves) rather than an ordinary Result.
func (c *Controller[M]) TryAiMove(m M) (Result, error) {
	res := c.TryMove(m)
	if res.Outcome == Invalid {
		dump := c.FormatDiagnosticDump(m)
		klog.Errorf("AI proposed invalid move: %v\n%s", m, dump)
		return res, errors.Errorf("invalid AI move %v: %s\n%s", m, res.Reason, dump)
	}
	return res, nil
}

// FormatHistory implements spec §4.12's format_history(): a textual dump for diagnostics.
func (c *Controller[M]) FormatHistory() string {
	var b strings.Builder
	for i, e := range c.history {
		fmt.Fprintf(&b, "%3d. player %d: %v\n", i+1, e.player, e.move)
	}
	return b.String()
}

// FormatDiagnosticDump renders the board, move history and legal-move set for a fatal
// InvalidAiMove report, generalizing the teacher's internal/ui/cli board-printing idiom
// (PrintBoard centered via lipgloss) from Board's hex grid to any game.State[M]'s
// BoardView.
func (c *Controller[M]) FormatDiagnosticDump(attempted M) string {
	var b strings.Builder
	b.WriteString(renderBoard(c.current))
	fmt.Fprintf(&b, "\nAttempted move: %v\n", attempted)
	fmt.Fprintf(&b, "Current player: %d\n", c.current.CurrentPlayer())
	fmt.Fprintf(&b, "Legal moves: %v\n", c.current.LegalMoves())
	b.WriteString("\nHistory:\n")
	b.WriteString(c.FormatHistory())
	return b.String()
}

var dumpHeaderStyle = lipgloss.NewStyle().
	Background(lipgloss.Color("1")).
	Foreground(lipgloss.Color("15")).
	Padding(0, 1)

// renderBoard draws the generic BoardView() integer grid the same way for every registered
// game: a lipgloss-styled header line, then one plain right-aligned integer per board
// position.
func renderBoard[M comparable](s game.State[M]) string {
	var b strings.Builder
	b.WriteString(dumpHeaderStyle.Render(fmt.Sprintf("board (player to move: %d)", s.CurrentPlayer())))
	b.WriteString("\n")
	for _, row := range s.BoardView() {
		for _, cell := range row {
			fmt.Fprintf(&b, "%3d", cell)
		}
		b.WriteString("\n")
	}
	return b.String()
}
