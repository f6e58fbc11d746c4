// Package surface selects which activated material "surfaces" from a
// query, classifies neighborhoods and episodes as vivid, ranks candidates
// for recall, and composes the final context block.
package surface

import (
	"strings"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/query"
)

// Surfaced is the outcome of surfacing: which neighborhoods/episodes are
// vivid, and which refs are bare fragments (surfaced but not belonging to
// any vivid neighborhood or episode).
type Surfaced struct {
	VividNeighborhoods map[manifold.NeighborhoodRef]bool
	VividEpisodes      map[int]bool
	Fragments          []manifold.OccurrenceRef
}

// ComputeSurface determines which refs surface from a query result, then
// classifies neighborhoods and episodes as vivid from the surfaced counts.
func ComputeSurface(system *manifold.System, result query.Result) Surfaced {
	consciousWords := wordSet(system, result.Activation.Conscious)

	interferenceSurfaced := make(map[manifold.OccurrenceRef]bool)
	for _, entry := range result.Interference {
		if entry.Value > 0 {
			interferenceSurfaced[entry.SubconsciousRef] = true
		}
	}

	var surfaced []manifold.OccurrenceRef
	seen := make(map[manifold.OccurrenceRef]bool)
	addSurfaced := func(ref manifold.OccurrenceRef) {
		if seen[ref] {
			return
		}
		seen[ref] = true
		surfaced = append(surfaced, ref)
	}

	for ref := range interferenceSurfaced {
		addSurfaced(ref)
	}
	for _, ref := range result.Activation.Subconscious {
		word := strings.ToLower(system.Occurrence(ref).Word)
		if !consciousWords[word] {
			addSurfaced(ref)
		}
	}

	nbhdSurfacedCount := make(map[manifold.NeighborhoodRef]int)
	episodeSurfacedCount := make(map[int]int)
	for _, ref := range surfaced {
		nref := manifold.NeighborhoodRef{EpisodeIdx: ref.EpisodeIdx, NeighborhoodIdx: ref.NeighborhoodIdx}
		nbhdSurfacedCount[nref]++
		episodeSurfacedCount[ref.EpisodeIdx]++
	}

	vividNeighborhoods := make(map[manifold.NeighborhoodRef]bool)
	for nref, count := range nbhdSurfacedCount {
		nbhd := system.NeighborhoodByRef(nref)
		if nbhd.IsVivid(count) {
			vividNeighborhoods[nref] = true
		}
	}

	vividEpisodes := make(map[int]bool)
	n := system.N()
	for episodeIdx, count := range episodeSurfacedCount {
		ep := system.Episode(manifold.OccurrenceRef{EpisodeIdx: episodeIdx})
		total := ep.Count()
		if total == 0 {
			continue
		}
		if float64(count)/float64(total) > manifold.Threshold && ep.Mass(n) > manifold.Threshold {
			vividEpisodes[episodeIdx] = true
		}
	}

	var fragments []manifold.OccurrenceRef
	for _, ref := range surfaced {
		nref := manifold.NeighborhoodRef{EpisodeIdx: ref.EpisodeIdx, NeighborhoodIdx: ref.NeighborhoodIdx}
		if vividNeighborhoods[nref] || vividEpisodes[ref.EpisodeIdx] {
			continue
		}
		fragments = append(fragments, ref)
	}

	return Surfaced{
		VividNeighborhoods: vividNeighborhoods,
		VividEpisodes:      vividEpisodes,
		Fragments:          fragments,
	}
}

func wordSet(system *manifold.System, refs []manifold.OccurrenceRef) map[string]bool {
	set := make(map[string]bool, len(refs))
	for _, ref := range refs {
		set[strings.ToLower(system.Occurrence(ref).Word)] = true
	}
	return set
}
