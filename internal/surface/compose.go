package surface

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/attention-matters/am/internal/manifold"
	"github.com/attention-matters/am/internal/query"
)

// headerOverhead is the fixed per-entry token cost added on top of the
// entry's own text, accounting for its header lines.
const headerOverhead = 20

// Candidate is a scored neighborhood considered for recall.
type Candidate struct {
	Ref            manifold.NeighborhoodRef
	Score          float64
	ActivatedCount int
	MaxWordWeight  float64
	MaxPlasticity  float64
	Words          map[string]struct{}
}

// RankedCandidates groups every scored candidate by category.
type RankedCandidates struct {
	Conscious    []Candidate
	Subconscious []Candidate
	Novel        []Candidate
}

// RankCandidates aggregates activated occurrences per neighborhood and
// produces the three scored candidate categories, each sorted by score
// descending.
func RankCandidates(system *manifold.System, result query.Result) RankedCandidates {
	consciousWords := wordSet(system, result.Activation.Conscious)

	aggConscious := aggregateByNeighborhood(system, result.Activation.Conscious)
	aggSubconscious := aggregateByNeighborhood(system, result.Activation.Subconscious)

	var conscious, subconscious, novel []Candidate

	for ref, agg := range aggConscious {
		conscious = append(conscious, buildCandidate(ref, agg))
	}
	for ref, agg := range aggSubconscious {
		subconscious = append(subconscious, buildCandidate(ref, agg))
		if agg.activatedCount <= 2 && !anyWordIn(agg.words, consciousWords) {
			novel = append(novel, buildNovelCandidate(ref, agg))
		}
	}

	sortByScoreDesc(conscious)
	sortByScoreDesc(subconscious)
	sortByScoreDesc(novel)

	return RankedCandidates{Conscious: conscious, Subconscious: subconscious, Novel: novel}
}

type aggregate struct {
	score          float64
	activatedCount int
	maxWordWeight  float64
	maxPlasticity  float64
	words          map[string]struct{}
}

func aggregateByNeighborhood(system *manifold.System, refs []manifold.OccurrenceRef) map[manifold.NeighborhoodRef]*aggregate {
	out := make(map[manifold.NeighborhoodRef]*aggregate)
	seenOcc := make(map[manifold.OccurrenceRef]bool)
	for _, ref := range refs {
		if seenOcc[ref] {
			continue
		}
		seenOcc[ref] = true

		nref := manifold.NeighborhoodRef{EpisodeIdx: ref.EpisodeIdx, NeighborhoodIdx: ref.NeighborhoodIdx}
		agg, ok := out[nref]
		if !ok {
			agg = &aggregate{words: make(map[string]struct{})}
			out[nref] = agg
		}

		occ := system.Occurrence(ref)
		weight := system.WordWeight(occ.Word)
		plasticity := occ.Plasticity()

		agg.score += weight * float64(occ.ActivationCount)
		agg.activatedCount++
		if weight > agg.maxWordWeight {
			agg.maxWordWeight = weight
		}
		if plasticity > agg.maxPlasticity {
			agg.maxPlasticity = plasticity
		}
		agg.words[strings.ToLower(occ.Word)] = struct{}{}
	}
	return out
}

func buildCandidate(ref manifold.NeighborhoodRef, agg *aggregate) Candidate {
	return Candidate{
		Ref:            ref,
		Score:          agg.score,
		ActivatedCount: agg.activatedCount,
		MaxWordWeight:  agg.maxWordWeight,
		MaxPlasticity:  agg.maxPlasticity,
		Words:          agg.words,
	}
}

func buildNovelCandidate(ref manifold.NeighborhoodRef, agg *aggregate) Candidate {
	denom := agg.activatedCount
	if denom < 1 {
		denom = 1
	}
	c := buildCandidate(ref, agg)
	c.Score = agg.maxWordWeight * agg.maxPlasticity / float64(denom)
	return c
}

func anyWordIn(words map[string]struct{}, set map[string]bool) bool {
	for w := range words {
		if set[w] {
			return true
		}
	}
	return false
}

func sortByScoreDesc(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].Score > cands[j].Score
	})
}

// Composed is the fixed-shape compose result.
type Composed struct {
	Context string
	Metrics Metrics
}

// Metrics reports how many entries of each category were included.
type Metrics struct {
	Conscious    int
	Subconscious int
	Novel        int
}

func candidateText(system *manifold.System, ref manifold.NeighborhoodRef) string {
	nbhd := system.NeighborhoodByRef(ref)
	if nbhd.SourceText != "" {
		return nbhd.SourceText
	}
	words := make([]string, 0, len(nbhd.Occurrences))
	for _, occ := range nbhd.Occurrences {
		words = append(words, occ.Word)
	}
	return strings.Join(words, " ")
}

// ComposeFixed picks the top-1 conscious, top-2 subconscious not already
// selected, and top-1 novel not already selected, and renders them into a
// single text block with fixed per-category headers.
func ComposeFixed(system *manifold.System, surfaced Surfaced, result query.Result) Composed {
	ranked := RankCandidates(system, result)

	var entries []string
	var metrics Metrics
	selected := make(map[manifold.NeighborhoodRef]bool)

	if len(ranked.Conscious) > 0 {
		ref := ranked.Conscious[0].Ref
		entries = append(entries, fmt.Sprintf("CONSCIOUS RECALL:\n[Source: Previously marked salient]\n\"%s\"", candidateText(system, ref)))
		selected[ref] = true
		metrics.Conscious = 1
	}

	subCount := 0
	for _, c := range ranked.Subconscious {
		if subCount >= 2 {
			break
		}
		if selected[c.Ref] {
			continue
		}
		selected[c.Ref] = true
		subCount++
		name := episodeDisplayName(system, c.Ref)
		entries = append(entries, fmt.Sprintf("SUBCONSCIOUS RECALL %d:\n[Source: %s]\n\"%s\"", subCount, name, candidateText(system, c.Ref)))
	}
	metrics.Subconscious = subCount

	for _, c := range ranked.Novel {
		if selected[c.Ref] {
			continue
		}
		selected[c.Ref] = true
		name := episodeDisplayName(system, c.Ref)
		entries = append(entries, fmt.Sprintf("NOVEL CONNECTION:\n[Source: %s]\n\"%s\"", name, candidateText(system, c.Ref)))
		metrics.Novel = 1
		break
	}

	return Composed{Context: strings.Join(entries, "\n\n"), Metrics: metrics}
}

func episodeDisplayName(system *manifold.System, ref manifold.NeighborhoodRef) string {
	ep := system.Episode(manifold.OccurrenceRef{EpisodeIdx: ref.EpisodeIdx})
	return ep.DisplayName()
}

// BudgetParams configures ComposeBudgeted.
type BudgetParams struct {
	MaxTokens       int
	MinConscious    int
	MinSubconscious int
	MinNovel        int
}

// BudgetedComposed is the budgeted compose result.
type BudgetedComposed struct {
	Context       string
	TokensUsed    int
	TokensBudget  int
	Included      []manifold.NeighborhoodRef
	ExcludedCount int
}

type scoredEntry struct {
	category string
	cand     Candidate
	cost     int
}

func tokenCount(text string) int {
	return len(strings.Fields(text))
}

// ComposeBudgeted fills each category's minimum from its top-scored
// candidates while staying within MaxTokens, then greedily fills any
// remaining budget from the highest-scored candidates across all
// categories, deduplicating by neighborhood id.
func ComposeBudgeted(system *manifold.System, surfaced Surfaced, result query.Result, params BudgetParams) BudgetedComposed {
	ranked := RankCandidates(system, result)

	allUnique := make(map[manifold.NeighborhoodRef]bool)
	for _, c := range ranked.Conscious {
		allUnique[c.Ref] = true
	}
	for _, c := range ranked.Subconscious {
		allUnique[c.Ref] = true
	}
	for _, c := range ranked.Novel {
		allUnique[c.Ref] = true
	}

	selected := make(map[manifold.NeighborhoodRef]bool)
	var chosen []scoredEntry
	used := 0

	fillMinimum := func(category string, cands []Candidate, min int) {
		filled := 0
		for _, c := range cands {
			if filled >= min {
				return
			}
			if selected[c.Ref] {
				continue
			}
			cost := tokenCount(candidateText(system, c.Ref)) + headerOverhead
			if used+cost > params.MaxTokens {
				continue
			}
			selected[c.Ref] = true
			used += cost
			filled++
			chosen = append(chosen, scoredEntry{category: category, cand: c, cost: cost})
		}
	}

	fillMinimum("conscious", ranked.Conscious, params.MinConscious)
	fillMinimum("subconscious", ranked.Subconscious, params.MinSubconscious)
	fillMinimum("novel", ranked.Novel, params.MinNovel)

	var remaining []scoredEntry
	addRemaining := func(category string, cands []Candidate) {
		for _, c := range cands {
			if selected[c.Ref] {
				continue
			}
			remaining = append(remaining, scoredEntry{category: category, cand: c})
		}
	}
	addRemaining("conscious", ranked.Conscious)
	addRemaining("subconscious", ranked.Subconscious)
	addRemaining("novel", ranked.Novel)

	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].cand.Score > remaining[j].cand.Score
	})

	for _, e := range remaining {
		if selected[e.cand.Ref] {
			continue
		}
		cost := tokenCount(candidateText(system, e.cand.Ref)) + headerOverhead
		if used+cost > params.MaxTokens {
			continue
		}
		selected[e.cand.Ref] = true
		used += cost
		e.cost = cost
		chosen = append(chosen, e)
	}

	context, included := renderBudgetedEntries(system, chosen)

	return BudgetedComposed{
		Context:       context,
		TokensUsed:    used,
		TokensBudget:  params.MaxTokens,
		Included:      included,
		ExcludedCount: len(allUnique) - len(included),
	}
}

func renderBudgetedEntries(system *manifold.System, chosen []scoredEntry) (string, []manifold.NeighborhoodRef) {
	byCategory := map[string][]scoredEntry{}
	for _, e := range chosen {
		byCategory[e.category] = append(byCategory[e.category], e)
	}

	var entries []string
	var included []manifold.NeighborhoodRef

	for _, c := range byCategory["conscious"] {
		entries = append(entries, fmt.Sprintf("CONSCIOUS RECALL:\n[Source: Previously marked salient]\n\"%s\"", candidateText(system, c.cand.Ref)))
		included = append(included, c.cand.Ref)
	}
	for i, c := range byCategory["subconscious"] {
		name := episodeDisplayName(system, c.cand.Ref)
		entries = append(entries, fmt.Sprintf("SUBCONSCIOUS RECALL %d:\n[Source: %s]\n\"%s\"", i+1, name, candidateText(system, c.cand.Ref)))
		included = append(included, c.cand.Ref)
	}
	for _, c := range byCategory["novel"] {
		name := episodeDisplayName(system, c.cand.Ref)
		entries = append(entries, fmt.Sprintf("NOVEL CONNECTION:\n[Source: %s]\n\"%s\"", name, candidateText(system, c.cand.Ref)))
		included = append(included, c.cand.Ref)
	}

	return strings.Join(entries, "\n\n"), included
}

var salientRe = regexp.MustCompile(`(?s)<salient>(.*?)</salient>`)

// ExtractSalient scans text for <salient>...</salient> regions and calls
// add for each region's trimmed inner text. Returns the number of regions
// found.
func ExtractSalient(text string, add func(content string)) int {
	matches := salientRe.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		add(strings.TrimSpace(m[1]))
	}
	return len(matches)
}
