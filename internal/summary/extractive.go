package summary

import (
	"cmp"
	"context"
	"math"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"
)

// Extractive tuning.
const (
	minSentenceLen   = 5 // characters, exclusive
	minKeywordLen    = 3 // characters, exclusive
	keywordCount     = 10
	maxPicked        = 5
	pickedFraction   = 0.3
	maxVerbatimCount = 3
)

const extractiveFootnote = "*Resumo gerado automaticamente baseado nos pontos mais relevantes da conversa.*"

var sentenceSplit = regexp.MustCompile(`[.!?]+`)

var stopwords = func() map[string]struct{} {
	words := strings.Fields("a o e de que do da em um para com não uma os no se na por mais as dos como mas ao ele das seu sua ou quando muito nos já eu também só pelo pela até isso ela entre depois sem mesmo aos seus quem nas me esse eles você")
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// LocalExtractive picks the sentences that mention the most frequent
// keywords and returns them in source order. It always succeeds.
type LocalExtractive struct{}

func (LocalExtractive) Tier() Tier { return TierLocalExtractive }

func (LocalExtractive) Summarize(_ context.Context, text string, _ Style) (Summary, error) {
	return Summary{Body: Extract(text), Tier: TierLocalExtractive}, nil
}

// Extract builds the extractive summary of text.
func Extract(text string) string {
	sentences := splitSentences(text)
	if len(sentences) <= maxVerbatimCount {
		return "# Resumo\n\n" + text
	}

	keywords := topKeywords(text, keywordCount)

	type scored struct {
		pos   int
		text  string
		score int
	}
	ranked := make([]scored, len(sentences))
	for i, s := range sentences {
		lower := strings.ToLower(s)
		n := 0
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				n++
			}
		}
		ranked[i] = scored{pos: i, text: s, score: n}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	n := min(maxPicked, int(math.Ceil(float64(len(sentences))*pickedFraction)))
	picked := ranked[:n]
	slices.SortFunc(picked, func(a, b scored) int { return cmp.Compare(a.pos, b.pos) })

	parts := make([]string, len(picked))
	for i, p := range picked {
		parts[i] = p.text
	}
	return "# Resumo da Conversa\n\n" + strings.Join(parts, ". ") + ".\n\n" + extractiveFootnote
}

// splitSentences splits on runs of sentence punctuation and keeps trimmed
// sentences longer than minSentenceLen characters.
func splitSentences(text string) []string {
	var out []string
	for _, s := range sentenceSplit.Split(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minSentenceLen {
			out = append(out, s)
		}
	}
	return out
}

// topKeywords returns the n most frequent lowercase whitespace-separated
// words longer than minKeywordLen characters that are not stopwords.
// Punctuation stays attached to its word. Ties keep first occurrence order.
func topKeywords(text string, n int) []string {
	counts := make(map[string]int)
	var order []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) <= minKeywordLen {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	slices.SortStableFunc(order, func(a, b string) int { return cmp.Compare(counts[b], counts[a]) })
	if len(order) > n {
		order = order[:n]
	}
	return order
}
