package manifold

import (
	"math/rand"
	"strings"

	"github.com/google/uuid"
)

// OccurrenceRef locates one occurrence inside the episode tree.
// EpisodeIdx == ConsciousEpisodeIndex means "the conscious episode"
// rather than an index into System.Episodes.
type OccurrenceRef struct {
	EpisodeIdx      int
	NeighborhoodIdx int
	OccurrenceIdx   int
}

// IsConscious reports whether the ref points into the conscious episode.
func (r OccurrenceRef) IsConscious() bool {
	return r.EpisodeIdx == ConsciousEpisodeIndex
}

// NeighborhoodRef locates one neighborhood inside the episode tree.
type NeighborhoodRef struct {
	EpisodeIdx      int
	NeighborhoodIdx int
}

func (r NeighborhoodRef) IsConscious() bool {
	return r.EpisodeIdx == ConsciousEpisodeIndex
}

// System is the top-level container: a list of subconscious episodes, one
// conscious episode, and four transient indexes rebuilt on demand.
type System struct {
	Episodes         []Episode
	ConsciousEpisode Episode
	AgentName        string

	dirty bool

	wordToNeighborhoods map[string]map[uuid.UUID]struct{}
	wordToOccurrences   map[string][]OccurrenceRef
	neighborhoodByID    map[uuid.UUID]NeighborhoodRef
	episodeIdxByNbhdID  map[uuid.UUID]int
}

// New builds an empty system with the given agent name and a fresh
// conscious episode.
func New(agentName string) *System {
	s := &System{
		AgentName:        agentName,
		ConsciousEpisode: NewConsciousEpisode("conscious"),
	}
	s.MarkDirty()
	return s
}

// MarkDirty flags the transient indexes as stale. Any mutation that
// touches occurrences, neighborhoods, or episodes must call this.
func (s *System) MarkDirty() {
	s.dirty = true
}

// Dirty reports whether the indexes need rebuilding.
func (s *System) Dirty() bool {
	return s.dirty
}

// N is the total occurrence count across both manifolds.
func (s *System) N() int {
	n := 0
	for i := range s.Episodes {
		n += s.Episodes[i].Count()
	}
	n += s.ConsciousEpisode.Count()
	return n
}

// AddEpisode appends a subconscious episode and marks the indexes dirty.
func (s *System) AddEpisode(ep Episode) {
	s.Episodes = append(s.Episodes, ep)
	s.MarkDirty()
}

// ensureIndexes rebuilds the four indexes from the episode tree if dirty.
func (s *System) ensureIndexes() {
	if !s.dirty && s.wordToNeighborhoods != nil {
		return
	}
	s.rebuildIndexes()
	s.dirty = false
}

func (s *System) rebuildIndexes() {
	s.wordToNeighborhoods = make(map[string]map[uuid.UUID]struct{})
	s.wordToOccurrences = make(map[string][]OccurrenceRef)
	s.neighborhoodByID = make(map[uuid.UUID]NeighborhoodRef)
	s.episodeIdxByNbhdID = make(map[uuid.UUID]int)

	index := func(episodeIdx int, ep *Episode) {
		for nIdx := range ep.Neighborhoods {
			nbhd := &ep.Neighborhoods[nIdx]
			s.neighborhoodByID[nbhd.ID] = NeighborhoodRef{EpisodeIdx: episodeIdx, NeighborhoodIdx: nIdx}
			s.episodeIdxByNbhdID[nbhd.ID] = episodeIdx
			for oIdx := range nbhd.Occurrences {
				word := nbhd.Occurrences[oIdx].Word
				if s.wordToNeighborhoods[word] == nil {
					s.wordToNeighborhoods[word] = make(map[uuid.UUID]struct{})
				}
				s.wordToNeighborhoods[word][nbhd.ID] = struct{}{}
				s.wordToOccurrences[word] = append(s.wordToOccurrences[word], OccurrenceRef{
					EpisodeIdx:      episodeIdx,
					NeighborhoodIdx: nIdx,
					OccurrenceIdx:   oIdx,
				})
			}
		}
	}

	for i := range s.Episodes {
		index(i, &s.Episodes[i])
	}
	index(ConsciousEpisodeIndex, &s.ConsciousEpisode)
}

// episodeForRef returns the episode a ref belongs to.
func (s *System) episodeForRef(episodeIdx int) *Episode {
	if episodeIdx == ConsciousEpisodeIndex {
		return &s.ConsciousEpisode
	}
	return &s.Episodes[episodeIdx]
}

// Occurrence dereferences an OccurrenceRef.
func (s *System) Occurrence(ref OccurrenceRef) *Occurrence {
	ep := s.episodeForRef(ref.EpisodeIdx)
	return &ep.Neighborhoods[ref.NeighborhoodIdx].Occurrences[ref.OccurrenceIdx]
}

// Neighborhood dereferences an OccurrenceRef to its owning neighborhood.
func (s *System) Neighborhood(ref OccurrenceRef) *Neighborhood {
	ep := s.episodeForRef(ref.EpisodeIdx)
	return &ep.Neighborhoods[ref.NeighborhoodIdx]
}

// NeighborhoodByRef dereferences a NeighborhoodRef.
func (s *System) NeighborhoodByRef(ref NeighborhoodRef) *Neighborhood {
	ep := s.episodeForRef(ref.EpisodeIdx)
	return &ep.Neighborhoods[ref.NeighborhoodIdx]
}

// Episode dereferences an OccurrenceRef to its owning episode.
func (s *System) Episode(ref OccurrenceRef) *Episode {
	return s.episodeForRef(ref.EpisodeIdx)
}

// NeighborhoodCount returns the current number of distinct neighborhoods
// containing word, rebuilding indexes first if needed.
func (s *System) NeighborhoodCount(word string) int {
	s.ensureIndexes()
	return len(s.wordToNeighborhoods[strings.ToLower(word)])
}

// WordWeight is the IDF weight 1 / max(1, distinct-neighborhood-count).
// Unknown words yield 1.0.
func (s *System) WordWeight(word string) float64 {
	k := s.NeighborhoodCount(word)
	if k < 1 {
		k = 1
	}
	return 1.0 / float64(k)
}

// ActivateWord rebuilds indexes if dirty, increments activation_count for
// every occurrence of word, and returns the matching refs partitioned into
// (subconscious, conscious).
func (s *System) ActivateWord(word string) (subconscious, conscious []OccurrenceRef) {
	s.ensureIndexes()
	word = strings.ToLower(word)
	refs := s.wordToOccurrences[word]
	for _, ref := range refs {
		s.Occurrence(ref).Activate()
		if ref.IsConscious() {
			conscious = append(conscious, ref)
		} else {
			subconscious = append(subconscious, ref)
		}
	}
	return subconscious, conscious
}

// AddToConscious builds a neighborhood from tokens, pre-activates every
// occurrence to activation_count 1, pushes it into the conscious episode,
// marks the system dirty, and returns the new neighborhood id.
func (s *System) AddToConscious(tokens []string, sourceText string, r *rand.Rand) uuid.UUID {
	nbhd := NeighborhoodFromTokens(tokens, nil, sourceText, r)
	for i := range nbhd.Occurrences {
		nbhd.Occurrences[i].Activate()
	}
	s.ConsciousEpisode.AddNeighborhood(nbhd)
	s.MarkDirty()
	return nbhd.ID
}

// ContainerActivation returns the total activation of the neighborhood
// that owns ref — the "C" used by Occurrence.DriftRate.
func (s *System) ContainerActivation(ref OccurrenceRef) float64 {
	return float64(s.Neighborhood(ref).TotalActivation())
}

// RemoveNeighborhoodsByID deletes the named neighborhoods from every
// episode (subconscious and conscious), then removes any episode left
// with zero neighborhoods (the conscious episode is never removed). Marks
// the system dirty. Returns the number of neighborhoods removed.
func (s *System) RemoveNeighborhoodsByID(ids map[uuid.UUID]struct{}) int {
	removed := 0

	filterEpisode := func(ep *Episode) {
		kept := ep.Neighborhoods[:0]
		for _, n := range ep.Neighborhoods {
			if _, match := ids[n.ID]; match {
				removed++
				continue
			}
			kept = append(kept, n)
		}
		ep.Neighborhoods = kept
	}

	filterEpisode(&s.ConsciousEpisode)
	for i := range s.Episodes {
		filterEpisode(&s.Episodes[i])
	}

	kept := s.Episodes[:0]
	for _, ep := range s.Episodes {
		if len(ep.Neighborhoods) == 0 {
			continue
		}
		kept = append(kept, ep)
	}
	s.Episodes = kept

	if removed > 0 {
		s.MarkDirty()
	}
	return removed
}

// ForgetTerm hard-deletes every occurrence of term across both manifolds,
// cascading to neighborhoods left with zero occurrences and subconscious
// episodes left with zero neighborhoods (the conscious episode is never
// removed). After this call, OccurrencesByWord(term) returns empty. Marks
// the system dirty if anything was removed.
func (s *System) ForgetTerm(term string) (removedOccurrences, removedNeighborhoods, removedEpisodes int) {
	word := strings.ToLower(term)

	filterNeighborhood := func(n *Neighborhood) {
		kept := n.Occurrences[:0]
		for _, occ := range n.Occurrences {
			if occ.Word == word {
				removedOccurrences++
				continue
			}
			kept = append(kept, occ)
		}
		n.Occurrences = kept
	}

	filterEpisode := func(ep *Episode) {
		for i := range ep.Neighborhoods {
			filterNeighborhood(&ep.Neighborhoods[i])
		}
		kept := ep.Neighborhoods[:0]
		for _, n := range ep.Neighborhoods {
			if len(n.Occurrences) == 0 {
				removedNeighborhoods++
				continue
			}
			kept = append(kept, n)
		}
		ep.Neighborhoods = kept
	}

	filterEpisode(&s.ConsciousEpisode)
	for i := range s.Episodes {
		filterEpisode(&s.Episodes[i])
	}

	kept := s.Episodes[:0]
	for _, ep := range s.Episodes {
		if len(ep.Neighborhoods) == 0 {
			removedEpisodes++
			continue
		}
		kept = append(kept, ep)
	}
	s.Episodes = kept

	if removedOccurrences > 0 {
		s.MarkDirty()
	}
	return
}

// OccurrencesByWord returns every occurrence ref for word across both
// manifolds, rebuilding indexes first if needed.
func (s *System) OccurrencesByWord(word string) []OccurrenceRef {
	s.ensureIndexes()
	return s.wordToOccurrences[strings.ToLower(word)]
}

// TotalNeighborhoodCount is the number of neighborhoods across both
// manifolds, used to compute the drift weight-floor for long queries.
func (s *System) TotalNeighborhoodCount() int {
	total := len(s.ConsciousEpisode.Neighborhoods)
	for i := range s.Episodes {
		total += len(s.Episodes[i].Neighborhoods)
	}
	return total
}

// NeighborhoodIDsByWord returns the distinct neighborhood ids containing
// word.
func (s *System) NeighborhoodIDsByWord(word string) []uuid.UUID {
	s.ensureIndexes()
	set := s.wordToNeighborhoods[strings.ToLower(word)]
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
