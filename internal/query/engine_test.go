package query

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/tokenize"
)

func newTestSystem(r *rand.Rand) *manifold.System {
	sys := manifold.New("test")
	ep := tokenize.IngestText(
		"The quick brown fox jumps over the lazy dog. Sentence two here about foxes. And a third sentence for good measure.",
		"test-doc", r,
	)
	sys.AddEpisode(ep)
	sys.AddToConscious([]string{"fox", "insight"}, "fox insight", r)
	return sys
}

func TestProcessQueryEmptySystem(t *testing.T) {
	sys := manifold.New("empty")
	result := ProcessQuery(sys, "anything")
	assert.Empty(t, result.Activation.Subconscious)
	assert.Empty(t, result.Activation.Conscious)
	assert.Equal(t, 0, sys.N())
}

func TestProcessQueryActivatesMatches(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	sys := newTestSystem(r)

	before := map[string]uint32{}
	for _, occ := range sys.Episodes[0].AllOccurrences() {
		before[occ.Word] += occ.ActivationCount
	}

	ProcessQuery(sys, "quick brown fox")

	for _, occ := range sys.Episodes[0].AllOccurrences() {
		switch occ.Word {
		case "quick", "brown", "fox":
			assert.Greater(t, occ.ActivationCount, uint32(0))
		}
	}
}

func TestDriftReducesDistanceForSharedWord(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	sys := manifold.New("drift-test")
	ep := manifold.NewEpisode("doc")
	ep.AddNeighborhood(manifold.NeighborhoodFromTokens([]string{"shared", "other"}, nil, "", r))
	ep.AddNeighborhood(manifold.NeighborhoodFromTokens([]string{"shared", "different"}, nil, "", r))
	sys.AddEpisode(ep)

	// Activate the companion words first (each is alone in its neighborhood's
	// activation, so anchored and not moved). Each "shared" occurrence then
	// holds half of its neighborhood's activation, so it is mobile
	// (drift_rate > 0) but not anchored.
	ProcessQuery(sys, "other different")

	refsBefore := sys.OccurrencesByWord("shared")
	require.Len(t, refsBefore, 2)
	a := sys.Occurrence(refsBefore[0]).Position
	b := sys.Occurrence(refsBefore[1]).Position
	distBefore := a.AngularDistance(b)

	ProcessQuery(sys, "shared")

	refsAfter := sys.OccurrencesByWord("shared")
	a2 := sys.Occurrence(refsAfter[0]).Position
	b2 := sys.Occurrence(refsAfter[1]).Position
	distAfter := a2.AngularDistance(b2)

	assert.LessOrEqual(t, distAfter, distBefore+1e-9)
}

func TestKuramotoCouplingNeverIncreasesPhaseGap(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	sys := newTestSystem(r)

	for i := 0; i < 5; i++ {
		sub, con := splitByManifold(sys.OccurrencesByWord("fox"))
		groupsBefore := computeWordGroups(sys, sub, con)
		var gapBefore float64
		if len(groupsBefore) > 0 {
			muSub := circularMeanOf(sys, groupsBefore[0].Subconscious)
			muCon := circularMeanOf(sys, groupsBefore[0].Conscious)
			gapBefore = math.Abs(quaternionWrap(muCon - muSub))
		}

		ProcessQuery(sys, "fox")

		sub, con = splitByManifold(sys.OccurrencesByWord("fox"))
		groupsAfter := computeWordGroups(sys, sub, con)
		if len(groupsAfter) > 0 {
			muSub := circularMeanOf(sys, groupsAfter[0].Subconscious)
			muCon := circularMeanOf(sys, groupsAfter[0].Conscious)
			gapAfter := math.Abs(quaternionWrap(muCon - muSub))
			assert.LessOrEqual(t, gapAfter, gapBefore+1e-2)
		}
	}
}

func quaternionWrap(d float64) float64 {
	for d > math.Pi {
		d -= 2 * math.Pi
	}
	for d < -math.Pi {
		d += 2 * math.Pi
	}
	return d
}

// splitByManifold partitions refs into their subconscious and conscious
// parts.
func splitByManifold(refs []manifold.OccurrenceRef) (sub, con []manifold.OccurrenceRef) {
	for _, ref := range refs {
		if ref.IsConscious() {
			con = append(con, ref)
		} else {
			sub = append(sub, ref)
		}
	}
	return sub, con
}

func TestIDFWeightOfRareWord(t *testing.T) {
	r := rand.New(rand.NewSource(4))
	sys := newTestSystem(r)
	rareWeight := sys.WordWeight("foxes")
	commonWeight := sys.WordWeight("fox")
	assert.GreaterOrEqual(t, rareWeight, commonWeight)
}

func TestActivateResponseActivatesSubconscious(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	sys := newTestSystem(r)
	act := ActivateResponse(sys, "fox")
	assert.NotEmpty(t, act.Subconscious)
}

func TestProcessBatchReturnsOneResultPerText(t *testing.T) {
	r := rand.New(rand.NewSource(6))
	sys := newTestSystem(r)
	results := ProcessBatch(sys, []string{"fox", "quick brown"})
	assert.Len(t, results, 2)
}
