package tokenize

import (
	"math/rand"
	"strings"

	"github.com/attention-matters/am/internal/manifold"
)

// IngestText splits text into sentences, groups them into chunks of three,
// tokenizes each chunk, and builds one neighborhood per chunk, accumulated
// into a subconscious episode named `name`. If no sentences are produced
// the returned episode has zero neighborhoods.
func IngestText(text, name string, r *rand.Rand) manifold.Episode {
	ep := manifold.NewEpisode(name)

	sentences := SplitSentences(text)
	for _, chunk := range Chunk(sentences, 3) {
		sourceText := joinTrimmed(chunk)
		tokens := Tokenize(sourceText)
		if len(tokens) == 0 {
			continue
		}
		nbhd := manifold.NeighborhoodFromTokens(tokens, nil, sourceText, r)
		ep.AddNeighborhood(nbhd)
	}
	return ep
}

func joinTrimmed(sentences []string) string {
	trimmed := make([]string, len(sentences))
	for i, s := range sentences {
		trimmed[i] = strings.TrimSpace(s)
	}
	return strings.Join(trimmed, " ")
}
