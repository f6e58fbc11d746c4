package manifold

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/quaternion"
)

// NeighborhoodType tags the kind of content a neighborhood holds. It is a
// closed four-case enum with no payload; unknown wire strings fall back to
// Memory.
type NeighborhoodType int

const (
	Memory NeighborhoodType = iota
	Decision
	Preference
	Insight
)

// String returns the lowercase wire form.
func (t NeighborhoodType) String() string {
	switch t {
	case Decision:
		return "decision"
	case Preference:
		return "preference"
	case Insight:
		return "insight"
	default:
		return "memory"
	}
}

// NeighborhoodTypeFromString parses the lowercase wire form, falling back
// to Memory on any unrecognized value.
func NeighborhoodTypeFromString(s string) NeighborhoodType {
	switch strings.ToLower(s) {
	case "decision":
		return Decision
	case "preference":
		return Preference
	case "insight":
		return Insight
	default:
		return Memory
	}
}

// Neighborhood is a cluster of occurrences scattered around a seed
// quaternion, all drawn from the same source-text chunk.
type Neighborhood struct {
	ID               uuid.UUID
	Seed             quaternion.Quaternion
	Occurrences      []Occurrence
	SourceText       string
	NeighborhoodType NeighborhoodType
}

// NewNeighborhood builds an empty neighborhood with the given seed and source text.
func NewNeighborhood(seed quaternion.Quaternion, sourceText string) Neighborhood {
	return Neighborhood{
		ID:               uuid.New(),
		Seed:             seed,
		SourceText:       sourceText,
		NeighborhoodType: Memory,
	}
}

// NeighborhoodFromTokens builds a neighborhood from a token list: each
// occurrence is scattered uniformly within NeighborhoodRadius of the seed
// (random unless provided), and assigned a golden-angle phasor.
func NeighborhoodFromTokens(tokens []string, seed *quaternion.Quaternion, sourceText string, r *rand.Rand) Neighborhood {
	var s quaternion.Quaternion
	if seed != nil {
		s = *seed
	} else {
		s = quaternion.RandomUniformFrom(r)
	}

	nbhd := NewNeighborhood(s, sourceText)
	base := r.Float64() * 2 * 3.141592653589793
	for i, tok := range tokens {
		pos := quaternion.RandomNear(s, NeighborhoodRadius, r)
		phasor := quaternion.PhasorFromIndex(i, base)
		occ := NewOccurrence(tok, pos, phasor, nbhd.ID)
		nbhd.Occurrences = append(nbhd.Occurrences, occ)
	}
	return nbhd
}

// Count is the number of occurrences in the neighborhood.
func (n *Neighborhood) Count() int {
	return len(n.Occurrences)
}

// TotalActivation sums activation_count across all occurrences.
func (n *Neighborhood) TotalActivation() uint64 {
	var total uint64
	for _, o := range n.Occurrences {
		total += uint64(o.ActivationCount)
	}
	return total
}

// Mass is the neighborhood's share of system activation: TotalActivation / N.
func (n *Neighborhood) Mass(nTotal int) float64 {
	if nTotal == 0 {
		return 0
	}
	return float64(n.TotalActivation()) / float64(nTotal) * Mass
}

// IsVivid reports whether activated_count/total_count exceeds Threshold.
func (n *Neighborhood) IsVivid(activatedCount int) bool {
	total := n.Count()
	if total == 0 {
		return false
	}
	return float64(activatedCount)/float64(total) > Threshold
}

// ActivateWord increments activation_count for every occurrence matching
// word (case-insensitive) and returns how many matched.
func (n *Neighborhood) ActivateWord(word string) int {
	word = strings.ToLower(word)
	matched := 0
	for i := range n.Occurrences {
		if n.Occurrences[i].Word == word {
			n.Occurrences[i].Activate()
			matched++
		}
	}
	return matched
}
