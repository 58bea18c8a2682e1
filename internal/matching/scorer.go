// Package matching ranks FAQ entries against a customer query and decides
// whether the best candidates are confident enough to answer automatically.
package matching

// Scorer computes textual closeness between a query and an FAQ.
// Larger is more similar; implementations must be safe for concurrent use.
type Scorer interface {
	Score(query, question, answer string) (float64, error)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(query, question, answer string) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(query, question, answer string) (float64, error) {
	return f(query, question, answer)
}

// TrigramScorer scores by trigram set overlap. It never fails.
type TrigramScorer struct{}

// NewTrigramScorer returns the default lexical scorer.
func NewTrigramScorer() TrigramScorer {
	return TrigramScorer{}
}

// Score implements Scorer.
func (TrigramScorer) Score(query, question, answer string) (float64, error) {
	return Similarity(query, question, answer), nil
}

// Similarity is the trigram Jaccard similarity of query against the question,
// or against question and answer together, whichever is higher. The result is
// in [0, 1]; a verbatim question scores 1 and empty input scores 0.
func Similarity(query, question, answer string) float64 {
	q := Trigrams(query)
	if len(q) == 0 {
		return 0
	}

	best := jaccard(q, Trigrams(question))
	if answer != "" {
		if combined := jaccard(q, Trigrams(question+" "+answer)); combined > best {
			best = combined
		}
	}
	return best
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) > len(b) {
		a, b = b, a
	}

	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
