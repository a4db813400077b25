package mcts

import "github.com/pkg/errors"

// ContractViolationError reports a game implementation breaking its contract with the
// search core (spec §7): no legal moves in a non-terminal state, a current-player flip
// that doesn't match the move just applied, or similar. It is always fatal to the search
// — "no search makes sense with a broken game" — and is propagated rather than recovered.
type ContractViolationError struct {
	Reason string
}

func (e *ContractViolationError) Error() string {
	return "mcts: game contract violation: " + e.Reason
}

func newContractViolation(format string, args ...any) error {
	return errors.Wrap(&ContractViolationError{Reason: errors.Errorf(format, args...).Error()}, "search aborted")
}
