package manifold

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attention-matters/am/internal/quaternion"
)

func TestOccurrencePlasticityAndDrift(t *testing.T) {
	occ := NewOccurrence("word", quaternion.Identity, quaternion.NewPhasor(0), NewEpisode("e").ID)
	assert.InDelta(t, 1.0, occ.Plasticity(), 1e-9)
	assert.Equal(t, 0.0, occ.DriftRate(0))

	occ.ActivationCount = 1
	assert.InDelta(t, 0.591, occ.Plasticity(), 1e-3)
	assert.InDelta(t, 1.0, occ.DriftRate(2), 1e-9) // 1/2 == Threshold exactly -> 1.0, not anchored
	assert.False(t, occ.IsAnchored(2))

	occ.ActivationCount = 9
	assert.True(t, occ.IsAnchored(10)) // 0.9 > 0.5
	assert.Equal(t, 0.0, occ.DriftRate(10))
}

func TestOccurrenceMass(t *testing.T) {
	occ := NewOccurrence("w", quaternion.Identity, quaternion.NewPhasor(0), NewEpisode("e").ID)
	occ.ActivationCount = 5
	assert.InDelta(t, 0.5, occ.Mass(10), 1e-9)
	assert.Equal(t, 0.0, occ.Mass(0))
}

func TestNeighborhoodFromTokensWithinRadius(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	n := NeighborhoodFromTokens([]string{"a", "b", "c"}, nil, "a b c", r)
	require.Len(t, n.Occurrences, 3)
	for _, occ := range n.Occurrences {
		d := n.Seed.AngularDistance(occ.Position)
		assert.LessOrEqual(t, d, NeighborhoodRadius+1e-2)
	}
}

func TestNeighborhoodTypeFallback(t *testing.T) {
	assert.Equal(t, Memory, NeighborhoodTypeFromString("bogus"))
	assert.Equal(t, Decision, NeighborhoodTypeFromString("decision"))
	assert.Equal(t, "decision", Decision.String())
}

func TestSystemActivateWordPartitions(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	sys := New("test")

	ep := NewEpisode("doc")
	ep.AddNeighborhood(NeighborhoodFromTokens([]string{"hello", "world"}, nil, "hello world", r))
	sys.AddEpisode(ep)
	sys.AddToConscious([]string{"hello"}, "hello", r)

	sub, con := sys.ActivateWord("hello")
	assert.Len(t, sub, 1)
	assert.Len(t, con, 1)
	assert.EqualValues(t, 1, sys.Occurrence(sub[0]).ActivationCount)
	assert.EqualValues(t, 2, sys.Occurrence(con[0]).ActivationCount) // pre-activated + this activation
}

func TestSystemWordWeight(t *testing.T) {
	r := rand.New(rand.NewSource(8))
	sys := New("test")

	ep1 := NewEpisode("a")
	ep1.AddNeighborhood(NeighborhoodFromTokens([]string{"common"}, nil, "", r))
	sys.AddEpisode(ep1)

	ep2 := NewEpisode("b")
	ep2.AddNeighborhood(NeighborhoodFromTokens([]string{"common", "rare"}, nil, "", r))
	sys.AddEpisode(ep2)

	assert.InDelta(t, 0.5, sys.WordWeight("common"), 1e-9)
	assert.InDelta(t, 1.0, sys.WordWeight("rare"), 1e-9)
	assert.InDelta(t, 1.0, sys.WordWeight("unknown"), 1e-9)
	assert.Greater(t, sys.WordWeight("rare"), sys.WordWeight("common"))
}

func TestSystemNAndDirty(t *testing.T) {
	r := rand.New(rand.NewSource(9))
	sys := New("test")
	assert.Equal(t, 0, sys.N())

	ep := NewEpisode("doc")
	ep.AddNeighborhood(NeighborhoodFromTokens([]string{"a", "b"}, nil, "", r))
	sys.AddEpisode(ep)
	assert.Equal(t, 2, sys.N())
	assert.True(t, sys.Dirty())
}

func TestRemoveNeighborhoodsByID(t *testing.T) {
	r := rand.New(rand.NewSource(10))
	sys := New("test")
	ep := NewEpisode("doc")
	n := NeighborhoodFromTokens([]string{"x"}, nil, "", r)
	ep.AddNeighborhood(n)
	sys.AddEpisode(ep)

	removed := sys.RemoveNeighborhoodsByID(map[uuid.UUID]struct{}{n.ID: {}})
	assert.Equal(t, 1, removed)
	assert.Empty(t, sys.Episodes)
}

func TestForgetTermRemovesOccurrenceOnly(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	sys := New("test")
	ep := NewEpisode("doc")
	ep.AddNeighborhood(NeighborhoodFromTokens([]string{"keep", "gone"}, nil, "", r))
	sys.AddEpisode(ep)

	occs, nbhds, eps := sys.ForgetTerm("gone")
	assert.Equal(t, 1, occs)
	assert.Equal(t, 0, nbhds)
	assert.Equal(t, 0, eps)
	assert.Empty(t, sys.OccurrencesByWord("gone"))
	require.Len(t, sys.Episodes, 1)
	require.Len(t, sys.Episodes[0].Neighborhoods, 1)
	assert.Len(t, sys.Episodes[0].Neighborhoods[0].Occurrences, 1)
}

func TestForgetTermCascadesToNeighborhoodAndEpisode(t *testing.T) {
	r := rand.New(rand.NewSource(12))
	sys := New("test")
	ep := NewEpisode("doc")
	ep.AddNeighborhood(NeighborhoodFromTokens([]string{"gone"}, nil, "", r))
	sys.AddEpisode(ep)

	occs, nbhds, eps := sys.ForgetTerm("gone")
	assert.Equal(t, 1, occs)
	assert.Equal(t, 1, nbhds)
	assert.Equal(t, 1, eps)
	assert.Empty(t, sys.Episodes)
	assert.Empty(t, sys.OccurrencesByWord("gone"))
}

func TestForgetTermNeverRemovesConsciousEpisode(t *testing.T) {
	r := rand.New(rand.NewSource(13))
	sys := New("test")
	sys.AddToConscious([]string{"gone"}, "gone", r)

	occs, nbhds, _ := sys.ForgetTerm("gone")
	assert.Equal(t, 1, occs)
	assert.Equal(t, 1, nbhds)
	assert.Empty(t, sys.ConsciousEpisode.Neighborhoods)
}
