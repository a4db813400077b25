package shaderinc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandResolvesIncludes(t *testing.T) {
	sources := Sources{
		"common":  "// shared helpers\nfn clamp01(x) { return max(0, min(1, x)) }",
		"puct":    "#include \"common\"\nfn score(q, u) { return q + u }",
		"rollout": "#include \"common\"\n#include \"puct\"\nfn rollout() { return score(0, 0) }",
	}

	out, err := Expand(sources, "rollout")
	require.NoError(t, err)
	require.Contains(t, out, "clamp01")
	require.Contains(t, out, "fn score(q, u)")
	require.Contains(t, out, "fn rollout()")
}

func TestExpandDetectsCycle(t *testing.T) {
	sources := Sources{
		"a": "#include \"b\"",
		"b": "#include \"a\"",
	}
	_, err := Expand(sources, "a")
	require.Error(t, err)
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestExpandMissingInclude(t *testing.T) {
	sources := Sources{"a": "#include \"missing\""}
	_, err := Expand(sources, "a")
	require.Error(t, err)
	var missingErr *MissingIncludeError
	require.ErrorAs(t, err, &missingErr)
}

func TestExpandIsIdempotent(t *testing.T) {
	sources := Sources{
		"common": "fn identity(x) { return x }",
		"kernel": "#include \"common\"\nfn main() { return identity(1) }",
	}
	once, err := Expand(sources, "kernel")
	require.NoError(t, err)

	// Feeding the already-expanded text back in (as its own standalone source, with no
	// further includes) must be a no-op.
	idempotentSources := Sources{"kernel": once}
	twice, err := Expand(idempotentSources, "kernel")
	require.NoError(t, err)
	require.Equal(t, once, twice)
}
