// internal/keyphrase/keyphrase.go
//
// Codename-style key phrase generation ("brisk-otter"). The phrase is both
// the shared prompt shown to the players and the join token, so it needs to
// be memorable and easy to type; uniqueness among waiting games is the
// repository's job, and callers regenerate on conflict.

package keyphrase

import (
	"crypto/rand"
	_ "embed"
	"math/big"
	"strings"
)

//go:embed adjectives.txt
var rawAdjectives string

//go:embed nouns.txt
var rawNouns string

var (
	adjectives = splitLines(rawAdjectives)
	nouns      = splitLines(rawNouns)
)

// New returns a random "adjective-noun" phrase.
func New() string {
	return pick(adjectives) + "-" + pick(nouns)
}

// Combinations returns the size of the phrase space, useful for judging
// collision-retry behavior.
func Combinations() int { return len(adjectives) * len(nouns) }

func pick(list []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	return list[n.Int64()]
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		w := strings.TrimSpace(strings.ToLower(line))
		if w != "" && !strings.HasPrefix(w, "#") {
			out = append(out, w)
		}
	}
	return out
}
