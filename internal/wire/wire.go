// Package wire implements the versioned external JSON format used for
// import/export interchange.
package wire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/quaternion"
)

// CurrentVersion is the stable wire-format version string.
const CurrentVersion = "0.7.2"

// Export is the top-level wire document.
type Export struct {
	Version             string                `json:"version"`
	Timestamp           string                `json:"timestamp"`
	System              System                `json:"system"`
	ConversationBuffer  [][]string            `json:"conversationBuffer"`
	ConversationHistory []ConversationMessage `json:"conversationHistory"`
}

// ConversationMessage is one turn in the exported conversation history.
type ConversationMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// System is the wire form of manifold.System.
type System struct {
	Episodes         []Episode `json:"episodes"`
	ConsciousEpisode Episode   `json:"consciousEpisode"`
	N                int       `json:"N"`
	TotalActivation  uint64    `json:"totalActivation"`
	AgentName        string    `json:"agentName"`
}

// Episode is the wire form of manifold.Episode.
type Episode struct {
	Name          string         `json:"name"`
	IsConscious   bool           `json:"isConscious"`
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	Neighborhoods []Neighborhood `json:"neighborhoods"`
}

// Neighborhood is the wire form of manifold.Neighborhood.
type Neighborhood struct {
	Seed             [4]float64   `json:"seed"`
	ID               string       `json:"id"`
	SourceText       string       `json:"sourceText"`
	NeighborhoodType string       `json:"neighborhoodType"`
	Occurrences      []Occurrence `json:"occurrences"`
}

// Occurrence is the wire form of manifold.Occurrence. Phasor accepts the
// legacy "theta" field name as an alias on import.
type Occurrence struct {
	Word            string     `json:"word"`
	Position        [4]float64 `json:"position"`
	Phasor          float64    `json:"phasor"`
	ActivationCount uint32     `json:"activationCount"`
	NeighborhoodID  string     `json:"neighborhoodId"`
}

// occurrenceAlias is used only to decode the "theta" alias for "phasor".
type occurrenceAlias struct {
	Word            string     `json:"word"`
	Position        [4]float64 `json:"position"`
	Phasor          *float64   `json:"phasor"`
	Theta           *float64   `json:"theta"`
	ActivationCount uint32     `json:"activationCount"`
	NeighborhoodID  string     `json:"neighborhoodId"`
}

// UnmarshalJSON accepts both "phasor" and "theta" for the phase angle.
func (o *Occurrence) UnmarshalJSON(data []byte) error {
	var a occurrenceAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	o.Word = a.Word
	o.Position = a.Position
	o.ActivationCount = a.ActivationCount
	o.NeighborhoodID = a.NeighborhoodID
	switch {
	case a.Phasor != nil:
		o.Phasor = *a.Phasor
	case a.Theta != nil:
		o.Phasor = *a.Theta
	}
	return nil
}

// FromSystem converts a domain System into its wire representation.
func FromSystem(sys *manifold.System) Export {
	conscious := episodeToWire(&sys.ConsciousEpisode)
	episodes := make([]Episode, len(sys.Episodes))
	for i := range sys.Episodes {
		episodes[i] = episodeToWire(&sys.Episodes[i])
	}

	var totalActivation uint64
	for i := range sys.Episodes {
		totalActivation += sys.Episodes[i].TotalActivation()
	}
	totalActivation += sys.ConsciousEpisode.TotalActivation()

	return Export{
		Version:   CurrentVersion,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		System: System{
			Episodes:         episodes,
			ConsciousEpisode: conscious,
			N:                sys.N(),
			TotalActivation:  totalActivation,
			AgentName:        sys.AgentName,
		},
		ConversationBuffer:  [][]string{},
		ConversationHistory: []ConversationMessage{},
	}
}

func episodeToWire(ep *manifold.Episode) Episode {
	neighborhoods := make([]Neighborhood, len(ep.Neighborhoods))
	for i := range ep.Neighborhoods {
		neighborhoods[i] = neighborhoodToWire(&ep.Neighborhoods[i])
	}
	return Episode{
		Name:          ep.Name,
		IsConscious:   ep.IsConscious,
		ID:            ep.ID.String(),
		Timestamp:     ep.Timestamp.Format(time.RFC3339),
		Neighborhoods: neighborhoods,
	}
}

func neighborhoodToWire(n *manifold.Neighborhood) Neighborhood {
	occs := make([]Occurrence, len(n.Occurrences))
	for i := range n.Occurrences {
		occs[i] = occurrenceToWire(&n.Occurrences[i])
	}
	return Neighborhood{
		Seed:             n.Seed.ToArray(),
		ID:               n.ID.String(),
		SourceText:       n.SourceText,
		NeighborhoodType: n.NeighborhoodType.String(),
		Occurrences:      occs,
	}
}

func occurrenceToWire(o *manifold.Occurrence) Occurrence {
	return Occurrence{
		Word:            o.Word,
		Position:        o.Position.ToArray(),
		Phasor:          o.Phasor.Theta,
		ActivationCount: o.ActivationCount,
		NeighborhoodID:  o.NeighborhoodID.String(),
	}
}

// ToSystem converts a wire Export back into a domain System.
func (e Export) ToSystem() *manifold.System {
	sys := manifold.New(e.System.AgentName)
	for _, we := range e.System.Episodes {
		sys.AddEpisode(episodeFromWire(we))
	}
	sys.ConsciousEpisode = episodeFromWire(e.System.ConsciousEpisode)
	sys.ConsciousEpisode.IsConscious = true
	sys.MarkDirty()
	return sys
}

func episodeFromWire(w Episode) manifold.Episode {
	ep := manifold.NewEpisode(w.Name)
	if id, err := uuid.Parse(w.ID); err == nil {
		ep.ID = id
	}
	ep.IsConscious = w.IsConscious
	if t, err := time.Parse(time.RFC3339, w.Timestamp); err == nil {
		ep.Timestamp = t
	}
	for _, wn := range w.Neighborhoods {
		ep.AddNeighborhood(neighborhoodFromWire(wn))
	}
	return ep
}

func neighborhoodFromWire(w Neighborhood) manifold.Neighborhood {
	seed := quaternion.FromArray(w.Seed)
	nbhd := manifold.NewNeighborhood(seed, w.SourceText)
	if id, err := uuid.Parse(w.ID); err == nil {
		nbhd.ID = id
	}
	nbhd.NeighborhoodType = manifold.NeighborhoodTypeFromString(w.NeighborhoodType)

	for _, wo := range w.Occurrences {
		pos := quaternion.FromArray(wo.Position)
		phasor := quaternion.NewPhasor(wo.Phasor)
		occ := manifold.NewOccurrence(wo.Word, pos, phasor, nbhd.ID)
		occ.ActivationCount = wo.ActivationCount
		if id, err := uuid.Parse(wo.NeighborhoodID); err == nil {
			occ.NeighborhoodID = id
		}
		nbhd.Occurrences = append(nbhd.Occurrences, occ)
	}
	return nbhd
}

// Marshal serializes a System to pretty-printed UTF-8 JSON.
func Marshal(sys *manifold.System) ([]byte, error) {
	return json.MarshalIndent(FromSystem(sys), "", "  ")
}

// Unmarshal deserializes a wire-format document into a domain System.
func Unmarshal(data []byte) (*manifold.System, error) {
	var export Export
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, err
	}
	return export.ToSystem(), nil
}
