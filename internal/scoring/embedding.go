// internal/scoring/embedding.go
//
// Embedding-based scorer backed by a GloVe-format text file
// (one "word v1 v2 ... vn" line per word).
//
// Responsibilities:
//   - Load vectors from EMBEDDINGS_FILE or fall back to a small embedded
//     sample so the server runs without external data.
//   - Score a word pair by cosine similarity, clamped to [0,1].
//     Identical words short-circuit to exactly 1.0 so the convergence
//     threshold is reachable despite float rounding.
//   - Find the optimal "middle word": the vocabulary word closest to the
//     midpoint of the two submitted vectors, excluding the inputs.
//   - Vocabulary membership check for move validation.
//
// Environment variables:
//   EMBEDDINGS_FILE=/path/to/glove.6B.100d.txt

package scoring

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed default_small_vectors.txt
var embeddedVectors string

// Embeddings holds the loaded vocabulary. Read-only after construction,
// safe for concurrent use.
type Embeddings struct {
	dims    int
	vectors map[string][]float64
	words   []string // load order, for deterministic midpoint scans
}

// NewEmbeddings loads vectors from path, or from the embedded sample when
// path is empty.
func NewEmbeddings(path string) (*Embeddings, error) {
	e := &Embeddings{vectors: make(map[string][]float64)}

	if path == "" {
		if err := e.load(strings.NewReader(embeddedVectors)); err != nil {
			return nil, err
		}
		log.Warn().Int("words", len(e.words)).
			Msg("EMBEDDINGS_FILE not set, using embedded sample vocabulary")
		return e, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open embeddings: %w", err)
	}
	defer f.Close()
	if err := e.load(bufio.NewReader(f)); err != nil {
		return nil, err
	}
	log.Info().Str("file", path).Int("words", len(e.words)).Int("dims", e.dims).
		Msg("embeddings loaded")
	return e, nil
}

func (e *Embeddings) load(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 2 {
			continue
		}
		word := strings.ToLower(parts[0])
		vec := make([]float64, len(parts)-1)
		for i, p := range parts[1:] {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return fmt.Errorf("parse vector for %q: %w", word, err)
			}
			vec[i] = v
		}
		if e.dims == 0 {
			e.dims = len(vec)
		} else if len(vec) != e.dims {
			return fmt.Errorf("vector for %q has %d dims, want %d", word, len(vec), e.dims)
		}
		if _, dup := e.vectors[word]; !dup {
			e.words = append(e.words, word)
		}
		e.vectors[word] = vec
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if len(e.words) == 0 {
		return errors.New("scoring: empty embeddings file")
	}
	return nil
}

// Score returns the clamped cosine similarity of the two words and the
// optimal middle word. Both words must be in the vocabulary; keyPhrase is
// not consulted by this scorer.
func (e *Embeddings) Score(wordA, wordB, keyPhrase string) (float64, string, error) {
	a := strings.ToLower(strings.TrimSpace(wordA))
	b := strings.ToLower(strings.TrimSpace(wordB))
	if a == b {
		return 1.0, a, nil
	}

	av, ok := e.vectors[a]
	if !ok {
		return 0, "", fmt.Errorf("score %q: not in vocabulary", a)
	}
	bv, ok := e.vectors[b]
	if !ok {
		return 0, "", fmt.Errorf("score %q: not in vocabulary", b)
	}

	score := cosine(av, bv)
	// Cosine lies in [-1,1]; the round score contract is [0,1].
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, e.optimalWord(a, b, av, bv), nil
}

// Validate reports whether word is in the vocabulary.
func (e *Embeddings) Validate(word string) bool {
	_, ok := e.vectors[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// Stats returns the vocabulary size and vector dimensionality.
func (e *Embeddings) Stats() (words, dims int) { return len(e.words), e.dims }

// optimalWord finds the vocabulary word whose vector is closest (by
// cosine) to the midpoint of av and bv, excluding the two inputs.
func (e *Embeddings) optimalWord(a, b string, av, bv []float64) string {
	mid := make([]float64, e.dims)
	for i := range mid {
		mid[i] = (av[i] + bv[i]) / 2
	}

	best := ""
	bestSim := math.Inf(-1)
	for _, w := range e.words {
		if w == a || w == b {
			continue
		}
		if sim := cosine(mid, e.vectors[w]); sim > bestSim {
			bestSim = sim
			best = w
		}
	}
	return best
}

// cosine computes dot(a,b) / (|a|*|b|). Zero vectors score 0.
func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
