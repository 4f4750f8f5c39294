package ontology

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestOntologyBackwardsResolution verifies the construction-time invariant
// from SPEC_FULL.md §4.4: every edge (a,b,w) in the embedded table has a
// mirrored (b,a,w') with w' >= w, so the ontology is bidirectionally
// reachable at weight <= 10 by construction rather than by runtime search.
func TestOntologyBackwardsResolution(t *testing.T) {
	require.Zero(t, len(embeddedEdges)%2, "edges must be entered as (edge, mirror) pairs")
	for i := 0; i < len(embeddedEdges); i += 2 {
		fwd, mir := embeddedEdges[i], embeddedEdges[i+1]
		require.Truef(t, mir.a == fwd.b && mir.b == fwd.a, "edge %s->%s (weight %d) is not followed by its mirror %s->%s", fwd.a, fwd.b, fwd.weight, fwd.b, fwd.a)
		require.LessOrEqualf(t, fwd.weight, 10, "%s->%s exceeds max weight", fwd.a, fwd.b)
		require.GreaterOrEqualf(t, mir.weight, fwd.weight, "mirror %s->%s (weight %d) must be >= forward weight %d", mir.a, mir.b, mir.weight, fwd.weight)
		require.LessOrEqualf(t, mir.weight, 10, "%s->%s exceeds max weight", mir.a, mir.b)
	}
}

func TestGraphExpandMonotonic(t *testing.T) {
	g := Build()
	require.True(t, g.Has("auth"))

	prev := map[string]struct{}{}
	for greed := 0; greed <= 9; greed++ {
		cur := g.Expand("auth", greed)
		for term := range prev {
			_, ok := cur[term]
			require.Truef(t, ok, "expand(auth, %d) lost term %q present at a lower greed", greed, term)
		}
		prev = cur
	}
}

func TestGraphExpandZeroGreedIsSeedOnly(t *testing.T) {
	g := Build()
	got := g.Expand("auth", 0)
	require.Equal(t, map[string]struct{}{"auth": {}}, got)
}

func TestPrefixScan(t *testing.T) {
	g := Build()
	hits := g.PrefixScan("auth")
	require.NotEmpty(t, hits)
	for _, h := range hits {
		require.GreaterOrEqual(t, len(h), len("auth"))
		require.Equal(t, "auth", h[:4])
	}
}
