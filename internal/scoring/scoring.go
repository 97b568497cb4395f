// internal/scoring/scoring.go
//
// Round scorers. Each scorer satisfies game.Scorer: deterministic
// similarity in [0,1] for an ordered pair of words, plus a vocabulary
// check for submissions.
//
// Two implementations:
//   - Exact: string equality (1.0 or 0.0), unrestricted vocabulary.
//     Used in tests and as the fallback when no embeddings are configured.
//   - Embeddings (embedding.go): cosine similarity over a GloVe-format
//     vector file, with the "optimal middle word" computation.

package scoring

import "strings"

// Exact scores 1.0 for identical words and 0.0 otherwise.
type Exact struct{}

// NewExact returns the equality scorer.
func NewExact() Exact { return Exact{} }

// Score compares the two words; keyPhrase is unused by this scorer.
func (Exact) Score(wordA, wordB, keyPhrase string) (float64, string, error) {
	a := strings.ToLower(strings.TrimSpace(wordA))
	b := strings.ToLower(strings.TrimSpace(wordB))
	if a == b {
		return 1.0, a, nil
	}
	return 0.0, "", nil
}

// Validate accepts any non-empty word.
func (Exact) Validate(word string) bool {
	return strings.TrimSpace(word) != ""
}
