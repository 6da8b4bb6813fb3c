package match

import (
	"regexp"
	"strings"
)

// noisePatterns strip the junk banks append to descriptions before
// similarity is computed: transaction-id fragments, reference numbers,
// originator codes, and runs of masking characters.
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bid[:#]?\s*\d+`),
	regexp.MustCompile(`#\d+`),
	regexp.MustCompile(`(?i)\bref(erence)?[:#]?\s*\w*\d\w*`),
	regexp.MustCompile(`(?i)\b(pos|ach|ppd|ccd|web|tst)\b`),
	regexp.MustCompile(`(?i)[x*]{3,}\d*`),
	regexp.MustCompile(`\b\d{5,}\b`),
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeDescription lowercases, strips noise tokens, and collapses
// whitespace so descriptions from different sources become comparable.
func NormalizeDescription(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range noisePatterns {
		s = p.ReplaceAllString(s, " ")
	}
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// DescriptionSimilarity scores two raw descriptions in [0,1] and names the
// rule that produced the score. The ladder is strict: normalized equality
// (1.0) outranks substring containment (0.8), which outranks word overlap.
func DescriptionSimilarity(a, b string) (float64, string) {
	na := NormalizeDescription(a)
	nb := NormalizeDescription(b)

	if na == nb {
		return 1.0, "descriptions match"
	}

	if na != "" && nb != "" && (strings.Contains(na, nb) || strings.Contains(nb, na)) {
		return 0.8, "one description contains the other"
	}

	return wordOverlap(na, nb)
}

// wordOverlap computes Jaccard similarity over words longer than two
// characters. Two empty word sets are considered identical; exactly one empty
// set scores zero.
func wordOverlap(a, b string) (float64, string) {
	wordsA := significantWords(a)
	wordsB := significantWords(b)

	if len(wordsA) == 0 && len(wordsB) == 0 {
		return 1.0, "descriptions match"
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0, "no comparable words"
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection

	score := float64(intersection) / float64(union)
	return score, "shared description words"
}

func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		if len(w) > 2 {
			words[w] = true
		}
	}
	return words
}
