// Package manifold holds the nested Occurrence/Neighborhood/Episode entity
// tree and the System container with its lazily-rebuilt indexes.
package manifold

// Threshold is the anchoring/vivid-classification cutoff shared across the
// occurrence, neighborhood, and surfacing calculations.
const Threshold = 0.5

// Mass is the constant M in mass = activation_count / N * M.
const Mass = 1.0

// NeighborhoodRadius is π/φ, the angular radius of the spherical cap that
// occurrences are scattered within around their neighborhood's seed.
const NeighborhoodRadius = 1.9416135460476878

// ConsciousEpisodeIndex is the sentinel episode_idx used by OccurrenceRef
// to mean "the conscious episode" rather than an index into the
// subconscious episode list.
const ConsciousEpisodeIndex = -1
