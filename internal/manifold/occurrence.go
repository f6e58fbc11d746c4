package manifold

import (
	"math"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/quaternion"
)

// Occurrence is a single instance of a word, positioned on S³ with a phase
// and an activation counter.
type Occurrence struct {
	ID              uuid.UUID
	NeighborhoodID  uuid.UUID
	Word            string
	Position        quaternion.Quaternion
	Phasor          quaternion.Phasor
	ActivationCount uint32
}

// NewOccurrence constructs an occurrence with activation_count 0.
func NewOccurrence(word string, position quaternion.Quaternion, phasor quaternion.Phasor, neighborhoodID uuid.UUID) Occurrence {
	return Occurrence{
		ID:             uuid.New(),
		NeighborhoodID: neighborhoodID,
		Word:           word,
		Position:       position,
		Phasor:         phasor,
	}
}

// Activate increments the activation counter by one.
func (o *Occurrence) Activate() {
	o.ActivationCount++
}

// Plasticity is 1 / (1 + ln(1 + activation_count)) — a diminishing-returns
// curve: fresh occurrences are maximally plastic, heavily-activated ones
// barely move.
func (o *Occurrence) Plasticity() float64 {
	return 1 / (1 + math.Log(1+float64(o.ActivationCount)))
}

// DriftRate is 0 when the container activation C is 0 or the occurrence's
// share of it exceeds Threshold (the occurrence is anchored); otherwise
// the share normalized by Threshold.
func (o *Occurrence) DriftRate(containerActivation float64) float64 {
	if containerActivation == 0 {
		return 0
	}
	ratio := float64(o.ActivationCount) / containerActivation
	if ratio > Threshold {
		return 0
	}
	return ratio / Threshold
}

// IsAnchored reports whether the occurrence's activation share inside its
// container exceeds Threshold.
func (o *Occurrence) IsAnchored(containerActivation float64) bool {
	if containerActivation == 0 {
		return false
	}
	return float64(o.ActivationCount)/containerActivation > Threshold
}

// Mass is activation_count / N * Mass, with N the total occurrence count
// across the whole system.
func (o *Occurrence) Mass(n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(o.ActivationCount) / float64(n) * Mass
}
