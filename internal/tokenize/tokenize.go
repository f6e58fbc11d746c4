// Package tokenize implements unicode-word tokenization, sentence
// splitting, and the 3-sentence-chunk ingest pipeline. No stemming, no
// stop-word removal, no Unicode normalization beyond lowercasing.
package tokenize

import (
	"regexp"
	"strings"
)

var (
	nonWordRe   = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{Pc}\s']`)
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
	leadApos    = regexp.MustCompile(`^'+`)
	trailApos   = regexp.MustCompile(`'+$`)
)

// Tokenize lowercases text, strips punctuation other than apostrophes
// within words, splits on whitespace, trims leading/trailing apostrophes
// from each token, and discards empties.
func Tokenize(text string) []string {
	stripped := nonWordRe.ReplaceAllString(text, "")
	lowered := strings.ToLower(stripped)
	fields := strings.Fields(lowered)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = leadApos.ReplaceAllString(f, "")
		f = trailApos.ReplaceAllString(f, "")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// SplitSentences breaks text on sentence-ending punctuation followed by
// whitespace, keeping the punctuation with the preceding sentence. Any
// non-empty remainder after the last match is the final sentence.
func SplitSentences(text string) []string {
	var sentences []string
	last := 0
	locs := sentenceEnd.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		sentences = append(sentences, text[last:loc[0]+1])
		last = loc[1]
	}
	if rest := strings.TrimSpace(text[last:]); rest != "" {
		sentences = append(sentences, text[last:])
	}
	return sentences
}

// Chunk groups sentences into chunks of size n (the last chunk may be
// smaller).
func Chunk(sentences []string, n int) [][]string {
	if n <= 0 {
		n = 1
	}
	var chunks [][]string
	for i := 0; i < len(sentences); i += n {
		end := i + n
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, sentences[i:end])
	}
	return chunks
}
