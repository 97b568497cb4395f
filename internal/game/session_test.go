package game_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/scoring"
)

func newStartedGame(t *testing.T) *game.Game {
	t.Helper()
	g := game.New("u1", "forest")
	require.NoError(t, g.Join("u2"))
	return g
}

func TestNew(t *testing.T) {
	g := game.New("u1", "brisk-otter")

	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "brisk-otter", g.KeyPhrase)
	assert.Equal(t, "u1", g.Player1)
	assert.Empty(t, g.Player2)
	assert.Equal(t, game.StateWaiting, g.State)
	assert.Empty(t, g.Player1Moves)
	assert.Empty(t, g.Player2Moves)
	assert.Empty(t, g.Scores)
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name    string
		setup   func() *game.Game
		joiner  string
		wantErr error
	}{
		{
			name:   "second user joins waiting game",
			setup:  func() *game.Game { return game.New("u1", "forest") },
			joiner: "u2",
		},
		{
			name:    "creator cannot join own game",
			setup:   func() *game.Game { return game.New("u1", "forest") },
			joiner:  "u1",
			wantErr: game.ErrSelfJoin,
		},
		{
			name: "cannot join a started game",
			setup: func() *game.Game {
				g := game.New("u1", "forest")
				_ = g.Join("u2")
				return g
			},
			joiner:  "u3",
			wantErr: game.ErrInvalidState,
		},
		{
			name: "cannot join a finished game",
			setup: func() *game.Game {
				g := game.New("u1", "forest")
				_ = g.Join("u2")
				_ = g.Quit("u1")
				return g
			},
			joiner:  "u3",
			wantErr: game.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.setup()
			err := g.Join(tt.joiner)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.joiner, g.Player2)
			assert.Equal(t, game.StateInProgress, g.State)
		})
	}
}

func TestSubmitMoveValidation(t *testing.T) {
	sc := scoring.NewExact()

	tests := []struct {
		name    string
		setup   func() *game.Game
		player  string
		word    string
		wantErr error
	}{
		{
			name:    "waiting game rejects moves",
			setup:   func() *game.Game { return game.New("u1", "forest") },
			player:  "u1",
			word:    "tree",
			wantErr: game.ErrInvalidState,
		},
		{
			name:    "outsider rejected",
			setup:   func() *game.Game { return newStartedGame(t) },
			player:  "u3",
			word:    "tree",
			wantErr: game.ErrUnauthorized,
		},
		{
			name:    "empty word rejected",
			setup:   func() *game.Game { return newStartedGame(t) },
			player:  "u1",
			word:    "   ",
			wantErr: game.ErrInvalidWord,
		},
		{
			name: "second move before opponent answers",
			setup: func() *game.Game {
				g := newStartedGame(t)
				require.NoError(t, g.SubmitMove("u1", "oak", sc, 1.0))
				return g
			},
			player:  "u1",
			word:    "pine",
			wantErr: game.ErrOutOfTurn,
		},
		{
			name: "finished game rejects moves",
			setup: func() *game.Game {
				g := newStartedGame(t)
				require.NoError(t, g.SubmitMove("u1", "tree", sc, 1.0))
				require.NoError(t, g.SubmitMove("u2", "tree", sc, 1.0))
				return g
			},
			player:  "u2",
			word:    "oak",
			wantErr: game.ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.setup()
			before := g.Clone()

			err := g.SubmitMove(tt.player, tt.word, sc, 1.0)
			require.ErrorIs(t, err, tt.wantErr)

			// A rejected call leaves the document unchanged.
			assert.Equal(t, before.Player1Moves, g.Player1Moves)
			assert.Equal(t, before.Player2Moves, g.Player2Moves)
			assert.Equal(t, before.Scores, g.Scores)
			assert.Equal(t, before.State, g.State)
		})
	}
}

func TestSubmitMoveNormalizesWord(t *testing.T) {
	g := newStartedGame(t)
	sc := scoring.NewExact()

	require.NoError(t, g.SubmitMove("u1", "  TREE ", sc, 1.0))
	assert.Equal(t, []string{"tree"}, g.Player1Moves)
}

func TestQuit(t *testing.T) {
	g := newStartedGame(t)

	require.ErrorIs(t, g.Quit("u3"), game.ErrUnauthorized)

	require.NoError(t, g.Quit("u2"))
	assert.Equal(t, game.StateFinished, g.State)

	require.ErrorIs(t, g.Quit("u1"), game.ErrInvalidState)
}
