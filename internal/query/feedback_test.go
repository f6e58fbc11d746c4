package query

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/quaternion"
	"github.com/attention-matters/am/internal/tokenize"
)

func feedbackSystem(r *rand.Rand) *manifold.System {
	sys := manifold.New("test")
	ep := tokenize.IngestText(
		"quantum physics particle. quantum computing algorithm.",
		"science", r,
	)
	sys.AddEpisode(ep)
	sys.AddToConscious([]string{"quantum", "mechanics"}, "quantum mechanics", r)
	ProcessQuery(sys, "quantum physics computing")
	return sys
}

func TestBoostMovesOccurrencesCloser(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	sys := feedbackSystem(r)

	nbhdRef := manifold.NeighborhoodRef{EpisodeIdx: 0, NeighborhoodIdx: 0}
	before := make([]quaternion.Quaternion, len(sys.Episodes[0].Neighborhoods[0].Occurrences))
	for i, occ := range sys.Episodes[0].Neighborhoods[0].Occurrences {
		before[i] = occ.Position
	}

	result := ApplyFeedback(sys, "quantum physics", []manifold.NeighborhoodRef{nbhdRef}, Boost)
	require.NotNil(t, result.Centroid)
	assert.Positive(t, result.Boosted)

	moved := false
	for i, occ := range sys.Episodes[0].Neighborhoods[0].Occurrences {
		if before[i].AngularDistance(occ.Position) > quaternion.EPSILON {
			moved = true
		}
	}
	assert.True(t, moved, "at least one occurrence should have moved")
}

func TestDemoteDecreasesActivation(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	sys := feedbackSystem(r)
	nbhdRef := manifold.NeighborhoodRef{EpisodeIdx: 0, NeighborhoodIdx: 0}

	before := sys.Episodes[0].Neighborhoods[0].TotalActivation()
	result := ApplyFeedback(sys, "quantum physics", []manifold.NeighborhoodRef{nbhdRef}, Demote)
	assert.Positive(t, result.Demoted)
	assert.Less(t, sys.Episodes[0].Neighborhoods[0].TotalActivation(), before)
}

func TestDemoteFloorsAtZero(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	sys := manifold.New("test")
	ep := tokenize.IngestText("hello world", "t", r)
	sys.AddEpisode(ep)

	nbhdRef := manifold.NeighborhoodRef{EpisodeIdx: 0, NeighborhoodIdx: 0}
	result := ApplyFeedback(sys, "hello", []manifold.NeighborhoodRef{nbhdRef}, Demote)
	assert.Zero(t, result.Demoted)
	for _, occ := range sys.Episodes[0].Neighborhoods[0].Occurrences {
		assert.Zero(t, occ.ActivationCount)
	}
}

func TestFeedbackEmptyQuery(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	sys := feedbackSystem(r)
	nbhdRef := manifold.NeighborhoodRef{EpisodeIdx: 0, NeighborhoodIdx: 0}
	result := ApplyFeedback(sys, "", []manifold.NeighborhoodRef{nbhdRef}, Boost)
	assert.Zero(t, result.Boosted)
}
