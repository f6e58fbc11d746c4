// Package query implements the activate -> drift -> interference ->
// coupling pipeline that reshapes the manifold in response to a text
// query.
package query

import (
	"math"
	"strings"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/quaternion"
	"github.com/attention-matters/am/internal/tokenize"
)

// centroidThreshold is the mobile-ref count at or above which drift switches
// from O(n^2) pairwise consolidation to O(n) centroid consolidation.
const centroidThreshold = 200

// longQueryTokenLimit is the number of distinct query tokens above which
// drift input is filtered through filterByWeightFloor at weightFloor(system).
const longQueryTokenLimit = 50

// InterferenceEntry pairs a subconscious occurrence with the first
// conscious occurrence sharing its word, and the cosine interference
// between their phases.
type InterferenceEntry struct {
	SubconsciousRef manifold.OccurrenceRef
	ConsciousRef    manifold.OccurrenceRef
	Value           float64
}

// WordGroup is every occurrence of one word, partitioned by manifold.
type WordGroup struct {
	Word         string
	Subconscious []manifold.OccurrenceRef
	Conscious    []manifold.OccurrenceRef
}

// Activation is the set of occurrence refs touched by a query, partitioned
// by manifold.
type Activation struct {
	Subconscious []manifold.OccurrenceRef
	Conscious    []manifold.OccurrenceRef
}

// Result is everything process_query produces: the full activation, the
// interference list, and the word groups used to compute it (also the
// input to Kuramoto coupling).
type Result struct {
	Activation   Activation
	Interference []InterferenceEntry
	WordGroups   []WordGroup
}

// ProcessQuery runs the full pipeline against system and mutates it in
// place: activation counters increase, positions and phases drift and
// couple. The pipeline never fails; empty input yields an empty Result.
func ProcessQuery(system *manifold.System, text string) Result {
	tokens := dedupeTokens(tokenize.Tokenize(text))

	var allSub, allCon []manifold.OccurrenceRef
	for _, tok := range tokens {
		sub, con := system.ActivateWord(tok)
		allSub = append(allSub, sub...)
		allCon = append(allCon, con...)
	}

	driftSub, driftCon := allSub, allCon
	if len(tokens) > longQueryTokenLimit {
		floor := weightFloor(system)
		driftSub = filterByWeightFloor(system, allSub, floor)
		driftCon = filterByWeightFloor(system, allCon, floor)
	}

	driftAndConsolidate(system, driftSub)
	driftAndConsolidate(system, driftCon)

	groups := computeWordGroups(system, allSub, allCon)
	interference := computeInterference(system, groups)
	applyKuramotoCoupling(system, groups)

	return Result{
		Activation:   Activation{Subconscious: allSub, Conscious: allCon},
		Interference: interference,
		WordGroups:   groups,
	}
}

// ActivateResponse runs an activate -> drift -> coupling pass against an
// assistant's own response text, strengthening whatever the reply actually
// touched. Unlike ProcessQuery it drifts subconscious and conscious refs
// together as one set, applies no long-query weight filter, and computes no
// interference.
func ActivateResponse(system *manifold.System, text string) Activation {
	tokens := dedupeTokens(tokenize.Tokenize(text))
	var sub, con []manifold.OccurrenceRef
	for _, tok := range tokens {
		s, c := system.ActivateWord(tok)
		sub = append(sub, s...)
		con = append(con, c...)
	}

	all := append(append([]manifold.OccurrenceRef{}, sub...), con...)
	driftAndConsolidate(system, all)

	groups := computeWordGroups(system, sub, con)
	applyKuramotoCoupling(system, groups)

	return Activation{Subconscious: sub, Conscious: con}
}

// ProcessBatch runs ProcessQuery for every text in one pass, sharing a
// single index rebuild and one stable IDF snapshot across all of them —
// no neighborhood is created during the pipeline, so IDF weights computed
// for the first query remain valid for the last.
func ProcessBatch(system *manifold.System, texts []string) []Result {
	results := make([]Result, len(texts))
	for i, text := range texts {
		results[i] = ProcessQuery(system, text)
	}
	return results
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		lower := strings.ToLower(t)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, lower)
	}
	return out
}

func weightFloor(system *manifold.System) float64 {
	k := int(0.1 * float64(system.TotalNeighborhoodCount()))
	if k < 1 {
		k = 1
	}
	return 1.0 / float64(k)
}

func filterByWeightFloor(system *manifold.System, refs []manifold.OccurrenceRef, floor float64) []manifold.OccurrenceRef {
	var out []manifold.OccurrenceRef
	for _, ref := range refs {
		word := system.Occurrence(ref).Word
		if system.WordWeight(word) >= floor {
			out = append(out, ref)
		}
	}
	return out
}

// driftAndConsolidate filters to mobile refs (drift_rate > 0) and dispatches
// to pairwise or centroid drift depending on how many remain.
func driftAndConsolidate(system *manifold.System, refs []manifold.OccurrenceRef) {
	mobile := make([]manifold.OccurrenceRef, 0, len(refs))
	for _, ref := range refs {
		c := system.ContainerActivation(ref)
		if system.Occurrence(ref).DriftRate(c) > 0 {
			mobile = append(mobile, ref)
		}
	}
	if len(mobile) < 2 {
		return
	}
	if len(mobile) >= centroidThreshold {
		centroidDrift(system, mobile)
	} else {
		pairwiseDrift(system, mobile)
	}
}

type mobileSnapshot struct {
	ref       manifold.OccurrenceRef
	position  quaternion.Quaternion
	phasor    quaternion.Phasor
	driftRate float64
	weight    float64
}

type deferredUpdate struct {
	posTarget    quaternion.Quaternion
	posFactor    float64
	phasorTarget quaternion.Phasor
	phasorFactor float64
}

// pairwiseDrift implements the O(n^2) consolidation: every pair of mobile
// occurrences pulls toward a shared meeting point and exchanges phase,
// weighted by each side's drift_rate * idf_weight.
func pairwiseDrift(system *manifold.System, mobile []manifold.OccurrenceRef) {
	snaps := make([]mobileSnapshot, len(mobile))
	for i, ref := range mobile {
		occ := system.Occurrence(ref)
		snaps[i] = mobileSnapshot{
			ref:       ref,
			position:  occ.Position,
			phasor:    occ.Phasor,
			driftRate: occ.DriftRate(system.ContainerActivation(ref)),
			weight:    system.WordWeight(occ.Word),
		}
	}

	updates := make([][]deferredUpdate, len(snaps))

	for i := 0; i < len(snaps); i++ {
		for j := i + 1; j < len(snaps); j++ {
			ti := snaps[i].driftRate * snaps[i].weight
			tj := snaps[j].driftRate * snaps[j].weight
			if ti <= 0 && tj <= 0 {
				continue
			}

			meeting := quaternion.Slerp(snaps[i].position, snaps[j].position, ti/(ti+tj))

			updates[i] = append(updates[i], deferredUpdate{
				posTarget:    meeting,
				posFactor:    ti * manifold.Threshold,
				phasorTarget: snaps[j].phasor,
				phasorFactor: ti * manifold.Threshold,
			})
			updates[j] = append(updates[j], deferredUpdate{
				posTarget:    meeting,
				posFactor:    tj * manifold.Threshold,
				phasorTarget: snaps[i].phasor,
				phasorFactor: tj * manifold.Threshold,
			})
		}
	}

	for i, snap := range snaps {
		pos := snap.position
		ph := snap.phasor
		for _, u := range updates[i] {
			pos = quaternion.Slerp(pos, u.posTarget, u.posFactor)
			ph = quaternion.SlerpPhasor(ph, u.phasorTarget, u.phasorFactor)
		}
		occ := system.Occurrence(snap.ref)
		occ.Position = pos
		occ.Phasor = ph
	}
}

// centroidDrift implements the O(n) consolidation: each mobile occurrence
// slerps toward the IDF-weighted leave-one-out centroid of the whole set.
func centroidDrift(system *manifold.System, mobile []manifold.OccurrenceRef) {
	snaps := make([]mobileSnapshot, len(mobile))
	var totalW, sumW, sumX, sumY, sumZ float64
	for i, ref := range mobile {
		occ := system.Occurrence(ref)
		w := system.WordWeight(occ.Word)
		snaps[i] = mobileSnapshot{
			ref:       ref,
			position:  occ.Position,
			driftRate: occ.DriftRate(system.ContainerActivation(ref)),
			weight:    w,
		}
		totalW += w
		sumW += w * occ.Position.W
		sumX += w * occ.Position.X
		sumY += w * occ.Position.Y
		sumZ += w * occ.Position.Z
	}

	for _, snap := range snaps {
		p := snap.position
		leaveW := totalW - snap.weight
		if leaveW < quaternion.EPSILON {
			continue
		}
		lw := (sumW - snap.weight*p.W) / leaveW
		lx := (sumX - snap.weight*p.X) / leaveW
		ly := (sumY - snap.weight*p.Y) / leaveW
		lz := (sumZ - snap.weight*p.Z) / leaveW

		norm := math.Sqrt(lw*lw + lx*lx + ly*ly + lz*lz)
		if norm < quaternion.EPSILON {
			continue
		}

		centroid := quaternion.New(lw, lx, ly, lz)
		factor := snap.driftRate * snap.weight * 0.5
		occ := system.Occurrence(snap.ref)
		occ.Position = quaternion.Slerp(snap.position, centroid, factor)
	}
}

// computeWordGroups partitions the given refs by lowercase word, keeping
// only words present in both manifolds.
func computeWordGroups(system *manifold.System, sub, con []manifold.OccurrenceRef) []WordGroup {
	subByWord := groupByWord(system, sub)
	conByWord := groupByWord(system, con)

	var groups []WordGroup
	for word, subRefs := range subByWord {
		conRefs, ok := conByWord[word]
		if !ok {
			continue
		}
		groups = append(groups, WordGroup{Word: word, Subconscious: subRefs, Conscious: conRefs})
	}
	return groups
}

func groupByWord(system *manifold.System, refs []manifold.OccurrenceRef) map[string][]manifold.OccurrenceRef {
	out := make(map[string][]manifold.OccurrenceRef)
	for _, ref := range refs {
		word := strings.ToLower(system.Occurrence(ref).Word)
		out[word] = append(out[word], ref)
	}
	return out
}

// computeInterference computes, per WordGroup, the circular mean phase of
// the conscious side and the cosine interference of each subconscious
// occurrence against it, paired with the first conscious ref for the word.
func computeInterference(system *manifold.System, groups []WordGroup) []InterferenceEntry {
	var entries []InterferenceEntry
	for _, g := range groups {
		if len(g.Conscious) == 0 || len(g.Subconscious) == 0 {
			continue
		}
		mu := circularMeanOf(system, g.Conscious)
		firstCon := g.Conscious[0]
		for _, subRef := range g.Subconscious {
			theta := system.Occurrence(subRef).Phasor.Theta
			value := math.Cos(quaternion.WrapToPi(theta - mu))
			entries = append(entries, InterferenceEntry{
				SubconsciousRef: subRef,
				ConsciousRef:    firstCon,
				Value:           value,
			})
		}
	}
	return entries
}

func circularMeanOf(system *manifold.System, refs []manifold.OccurrenceRef) float64 {
	thetas := make([]float64, len(refs))
	for i, ref := range refs {
		thetas[i] = system.Occurrence(ref).Phasor.Theta
	}
	return quaternion.CircularMean(thetas)
}

// applyKuramotoCoupling pulls the circular-mean phases of the two
// manifolds toward alignment for each shared word, scaled by IDF-squared
// coupling strength and per-occurrence plasticity.
func applyKuramotoCoupling(system *manifold.System, groups []WordGroup) {
	nCon := system.ConsciousEpisode.Count()
	if nCon < 1 {
		nCon = 1
	}
	nTotal := system.N()
	if nTotal < 1 {
		nTotal = 1
	}
	nSub := nTotal - nCon
	if nSub < 1 {
		nSub = 1
	}

	kCon := float64(nSub) / float64(nTotal)
	kSub := float64(nCon) / float64(nTotal)

	for _, g := range groups {
		if len(g.Subconscious) == 0 || len(g.Conscious) == 0 {
			continue
		}
		weight := system.WordWeight(g.Word)
		coupling := weight * weight

		muSub := circularMeanOf(system, g.Subconscious)
		muCon := circularMeanOf(system, g.Conscious)
		delta := quaternion.WrapToPi(muCon - muSub)
		sinDelta := math.Sin(delta)

		subBase := kCon * coupling * sinDelta
		conBase := -kSub * coupling * sinDelta

		for _, ref := range g.Subconscious {
			occ := system.Occurrence(ref)
			occ.Phasor = quaternion.NewPhasor(occ.Phasor.Theta + subBase*occ.Plasticity())
		}
		for _, ref := range g.Conscious {
			occ := system.Occurrence(ref)
			occ.Phasor = quaternion.NewPhasor(occ.Phasor.Theta + conBase*occ.Plasticity())
		}
	}
}
