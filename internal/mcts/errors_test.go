package mcts

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewContractViolationWrapsReason(t *testing.T) {
	err := newContractViolation("node %d has no legal moves", 7)
	require.Error(t, err)
	require.Contains(t, err.Error(), "node 7 has no legal moves")
	require.Contains(t, err.Error(), "search aborted")
}
