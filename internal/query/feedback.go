package query

import (
	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/quaternion"
	"github.com/attention-matters/am/internal/tokenize"
)

// FeedbackSignal indicates whether a previously-recalled memory helped.
type FeedbackSignal int

const (
	// Boost SLERPs the recalled occurrences toward the query centroid and
	// bumps their activation — the memory proved useful.
	Boost FeedbackSignal = iota
	// Demote decays the recalled occurrences' activation — the memory
	// didn't help and should drift away / become GC-eligible.
	Demote
)

// boostDriftFactor caps how far a Boost pulls an occurrence toward the
// query centroid in one pass; moderate, so the manifold doesn't collapse.
const boostDriftFactor = 0.15

// demoteDecay is how much activation_count drops on a Demote, floored at 0.
const demoteDecay = 2

// FeedbackResult reports what ApplyFeedback changed.
type FeedbackResult struct {
	Boosted  int
	Demoted  int
	Centroid *quaternion.Quaternion
}

// ApplyFeedback reshapes the manifold based on whether a prior recall, for
// query text restricted to neighborhoodIDs, actually helped. Boost pulls
// matching occurrences toward the IDF-weighted centroid of every occurrence
// the query activates; Demote decays their activation.
func ApplyFeedback(system *manifold.System, query string, neighborhoodIDs []manifold.NeighborhoodRef, signal FeedbackSignal) FeedbackResult {
	tokens := dedupeTokens(tokenize.Tokenize(query))

	var queryRefs []manifold.OccurrenceRef
	for _, tok := range tokens {
		queryRefs = append(queryRefs, system.OccurrencesByWord(tok)...)
	}
	if len(queryRefs) == 0 {
		return FeedbackResult{}
	}

	targets := make(map[manifold.NeighborhoodRef]bool, len(neighborhoodIDs))
	for _, id := range neighborhoodIDs {
		targets[id] = true
	}

	var targetRefs []manifold.OccurrenceRef
	for _, ref := range queryRefs {
		nbhdRef := manifold.NeighborhoodRef{EpisodeIdx: ref.EpisodeIdx, NeighborhoodIdx: ref.NeighborhoodIdx}
		if targets[nbhdRef] {
			targetRefs = append(targetRefs, ref)
		}
	}

	switch signal {
	case Boost:
		return applyBoost(system, queryRefs, targetRefs)
	default:
		return applyDemote(system, targetRefs)
	}
}

func applyBoost(system *manifold.System, allRefs, targetRefs []manifold.OccurrenceRef) FeedbackResult {
	if len(targetRefs) == 0 {
		return FeedbackResult{}
	}

	positions := make([]quaternion.Quaternion, len(allRefs))
	weights := make([]float64, len(allRefs))
	for i, ref := range allRefs {
		occ := system.Occurrence(ref)
		positions[i] = occ.Position
		weights[i] = system.WordWeight(occ.Word)
	}

	centroid, ok := weightedCentroid(positions, weights)
	if !ok {
		return FeedbackResult{}
	}

	boosted := 0
	for _, ref := range targetRefs {
		occ := system.Occurrence(ref)
		weight := system.WordWeight(occ.Word)
		factor := boostDriftFactor * weight * occ.Plasticity()
		if factor <= quaternion.EPSILON {
			continue
		}
		occ.Position = quaternion.Slerp(occ.Position, centroid, factor)
		occ.Activate()
		boosted++
	}

	return FeedbackResult{Boosted: boosted, Centroid: &centroid}
}

func applyDemote(system *manifold.System, targetRefs []manifold.OccurrenceRef) FeedbackResult {
	demoted := 0
	for _, ref := range targetRefs {
		occ := system.Occurrence(ref)
		before := occ.ActivationCount
		if before > demoteDecay {
			occ.ActivationCount -= demoteDecay
		} else {
			occ.ActivationCount = 0
		}
		if occ.ActivationCount != before {
			demoted++
		}
	}
	return FeedbackResult{Demoted: demoted}
}

// weightedCentroid computes the IDF-weighted mean of positions in R⁴ and
// projects it back onto S³. Returns false if the total weight or the
// resulting norm is degenerate.
func weightedCentroid(positions []quaternion.Quaternion, weights []float64) (quaternion.Quaternion, bool) {
	var sumW, sumX, sumY, sumZ, totalWeight float64
	for i, p := range positions {
		w := weights[i]
		sumW += p.W * w
		sumX += p.X * w
		sumY += p.Y * w
		sumZ += p.Z * w
		totalWeight += w
	}
	if totalWeight < quaternion.EPSILON {
		return quaternion.Quaternion{}, false
	}
	cw, cx, cy, cz := sumW/totalWeight, sumX/totalWeight, sumY/totalWeight, sumZ/totalWeight
	norm2 := cw*cw + cx*cx + cy*cy + cz*cz
	if norm2 < quaternion.EPSILON*quaternion.EPSILON {
		return quaternion.Quaternion{}, false
	}
	return quaternion.New(cw, cx, cy, cz), true
}
