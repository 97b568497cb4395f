package scoring_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-game/go-server/internal/scoring"
)

func writeVectors(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestNewEmbeddingsFromFile(t *testing.T) {
	path := writeVectors(t, "alpha 1 0\nbeta 0 1\ngamma 1 1\n")

	e, err := scoring.NewEmbeddings(path)
	require.NoError(t, err)

	words, dims := e.Stats()
	assert.Equal(t, 3, words)
	assert.Equal(t, 2, dims)
	assert.True(t, e.Validate("alpha"))
	assert.True(t, e.Validate("  GAMMA "))
	assert.False(t, e.Validate("delta"))
}

func TestNewEmbeddingsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		lines string
	}{
		{"empty file", ""},
		{"non-numeric component", "alpha 1 x\n"},
		{"mixed dimensions", "alpha 1 0\nbeta 1 0 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scoring.NewEmbeddings(writeVectors(t, tt.lines))
			require.Error(t, err)
		})
	}
}

func TestEmbeddedSampleFallback(t *testing.T) {
	e, err := scoring.NewEmbeddings("")
	require.NoError(t, err)
	words, _ := e.Stats()
	assert.Greater(t, words, 0)
	assert.True(t, e.Validate("tree"))
}

func TestScore(t *testing.T) {
	path := writeVectors(t,
		"east 1 0\nnorth 0 1\nnortheast 1 1\nwest -1 0\nfar -5 -5\n")
	e, err := scoring.NewEmbeddings(path)
	require.NoError(t, err)

	t.Run("identical words score exactly one", func(t *testing.T) {
		score, optimal, err := e.Score("east", "east", "compass")
		require.NoError(t, err)
		assert.Equal(t, 1.0, score)
		assert.Equal(t, "east", optimal)
	})

	t.Run("orthogonal vectors score zero", func(t *testing.T) {
		score, _, err := e.Score("east", "north", "compass")
		require.NoError(t, err)
		assert.InDelta(t, 0.0, score, 1e-9)
	})

	t.Run("negative cosine clamps to zero", func(t *testing.T) {
		score, _, err := e.Score("east", "west", "compass")
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	})

	t.Run("optimal word is nearest the midpoint", func(t *testing.T) {
		// Midpoint of east(1,0) and north(0,1) is (0.5,0.5); the closest
		// remaining word is northeast(1,1).
		_, optimal, err := e.Score("east", "north", "compass")
		require.NoError(t, err)
		assert.Equal(t, "northeast", optimal)
	})

	t.Run("deterministic for repeated calls", func(t *testing.T) {
		s1, o1, err := e.Score("east", "northeast", "compass")
		require.NoError(t, err)
		s2, o2, err := e.Score("east", "northeast", "compass")
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
		assert.Equal(t, o1, o2)
	})

	t.Run("unknown word errors", func(t *testing.T) {
		_, _, err := e.Score("east", "nowhere", "compass")
		require.Error(t, err)
	})
}

func TestExact(t *testing.T) {
	sc := scoring.NewExact()

	score, optimal, err := sc.Score("Tree", " tree", "forest")
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
	assert.Equal(t, "tree", optimal)

	score, optimal, err = sc.Score("tree", "oak", "forest")
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	assert.Empty(t, optimal)

	assert.True(t, sc.Validate("anything"))
	assert.False(t, sc.Validate("  "))
}
