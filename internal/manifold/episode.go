package manifold

import (
	"time"

	"github.com/google/uuid"
)

// Episode is a bag of neighborhoods forming one document or conversation
// segment. Exactly one episode per system has IsConscious = true.
type Episode struct {
	ID            uuid.UUID
	Name          string
	IsConscious   bool
	Timestamp     time.Time
	Neighborhoods []Neighborhood
}

// NewEpisode builds an empty subconscious episode.
func NewEpisode(name string) Episode {
	return Episode{
		ID:        uuid.New(),
		Name:      name,
		Timestamp: time.Now().UTC(),
	}
}

// NewConsciousEpisode builds the single conscious episode for a system.
func NewConsciousEpisode(name string) Episode {
	ep := NewEpisode(name)
	ep.IsConscious = true
	return ep
}

// AddNeighborhood appends a neighborhood to the episode.
func (e *Episode) AddNeighborhood(n Neighborhood) {
	e.Neighborhoods = append(e.Neighborhoods, n)
}

// Count is the total occurrence count across all of the episode's
// neighborhoods.
func (e *Episode) Count() int {
	total := 0
	for i := range e.Neighborhoods {
		total += e.Neighborhoods[i].Count()
	}
	return total
}

// TotalActivation sums activation_count across every occurrence in the
// episode.
func (e *Episode) TotalActivation() uint64 {
	var total uint64
	for i := range e.Neighborhoods {
		total += e.Neighborhoods[i].TotalActivation()
	}
	return total
}

// Mass is TotalActivation / N.
func (e *Episode) Mass(nTotal int) float64 {
	if nTotal == 0 {
		return 0
	}
	return float64(e.TotalActivation()) / float64(nTotal) * Mass
}

// DisplayName returns the episode name, or "Memory" if empty — used when
// rendering subconscious recall source labels.
func (e *Episode) DisplayName() string {
	if e.Name == "" {
		return "Memory"
	}
	return e.Name
}

// AllOccurrences yields every occurrence across all neighborhoods, in
// neighborhood then occurrence order.
func (e *Episode) AllOccurrences() []*Occurrence {
	var out []*Occurrence
	for i := range e.Neighborhoods {
		for j := range e.Neighborhoods[i].Occurrences {
			out = append(out, &e.Neighborhoods[i].Occurrences[j])
		}
	}
	return out
}
