package store_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/converge-game/go-server/internal/game"
	"github.com/converge-game/go-server/internal/scoring"
	"github.com/converge-game/go-server/internal/store"
)

func TestMemoryCreateAndGet(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	g := game.New("u1", "forest")
	require.NoError(t, st.Create(ctx, g))

	got, err := st.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)
	assert.Equal(t, "forest", got.KeyPhrase)

	_, err = st.Get(ctx, "missing")
	require.ErrorIs(t, err, game.ErrNotFound)
}

func TestMemoryWaitingPhraseUnique(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	first := game.New("u1", "forest")
	require.NoError(t, st.Create(ctx, first))

	// Same phrase while the first game is waiting: conflict.
	require.ErrorIs(t, st.Create(ctx, game.New("u2", "forest")), game.ErrConflict)

	// Once the first game starts, the phrase is free again.
	_, err := st.AtomicUpdate(ctx, first.ID, func(g *game.Game) error {
		return g.Join("u2")
	})
	require.NoError(t, err)
	require.NoError(t, st.Create(ctx, game.New("u3", "forest")))
}

func TestMemoryGetByKeyPhrase(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	g := game.New("u1", "hidden-otter")
	require.NoError(t, st.Create(ctx, g))

	got, err := st.GetByKeyPhrase(ctx, "hidden-otter")
	require.NoError(t, err)
	assert.Equal(t, g.ID, got.ID)

	// Started games are no longer joinable by phrase.
	_, err = st.AtomicUpdate(ctx, g.ID, func(g *game.Game) error { return g.Join("u2") })
	require.NoError(t, err)
	_, err = st.GetByKeyPhrase(ctx, "hidden-otter")
	require.ErrorIs(t, err, game.ErrNotFound)
}

func TestMemoryListByPlayer(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	mine := game.New("u1", "alpha")
	require.NoError(t, st.Create(ctx, mine))
	joined := game.New("u2", "beta")
	require.NoError(t, st.Create(ctx, joined))
	_, err := st.AtomicUpdate(ctx, joined.ID, func(g *game.Game) error { return g.Join("u1") })
	require.NoError(t, err)
	other := game.New("u3", "gamma")
	require.NoError(t, st.Create(ctx, other))

	games, err := st.ListByPlayer(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, games, 2, "u1 participates in both seats across two games")
}

func TestMemoryMutatorErrorLeavesStoredStateUntouched(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()

	g := game.New("u1", "forest")
	require.NoError(t, st.Create(ctx, g))

	_, err := st.AtomicUpdate(ctx, g.ID, func(g *game.Game) error {
		g.Player1Moves = append(g.Player1Moves, "oak") // mutates the copy...
		return game.ErrOutOfTurn                       // ...then fails
	})
	require.ErrorIs(t, err, game.ErrOutOfTurn)

	got, err := st.Get(ctx, g.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Player1Moves, "aborted mutation must not commit")
}

// TestMemoryConcurrentRoundCompletion drives the §5 guarantee: when both
// players' round-completing submissions race, exactly one committed
// mutation observes the completed round and scores it — never zero, never
// two.
func TestMemoryConcurrentRoundCompletion(t *testing.T) {
	ctx := context.Background()
	sc := scoring.NewExact()

	for iter := 0; iter < 50; iter++ {
		st := store.NewMemory()
		g := game.New("u1", "forest")
		require.NoError(t, st.Create(ctx, g))
		_, err := st.AtomicUpdate(ctx, g.ID, func(g *game.Game) error { return g.Join("u2") })
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, p := range []struct{ id, word string }{{"u1", "tree"}, {"u2", "tree"}} {
			p := p
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := st.AtomicUpdate(ctx, g.ID, func(g *game.Game) error {
					return g.SubmitMove(p.id, p.word, sc, 1.0)
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := st.Get(ctx, g.ID)
		require.NoError(t, err)
		require.Len(t, got.Scores, 1, "exactly one score for the completed round")
		assert.Equal(t, 1.0, got.Scores[0])
		assert.Equal(t, game.StateFinished, got.State)
		assert.Len(t, got.Player1Moves, 1)
		assert.Len(t, got.Player2Moves, 1)
	}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	us := store.NewMemoryUsers()

	u := &store.User{ID: "sub-1", Provider: "google", Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, us.Create(ctx, u))
	require.ErrorIs(t, us.Create(ctx, u), game.ErrConflict)

	got, err := us.Get(ctx, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	updated, err := us.Update(ctx, "sub-1", map[string]any{"name": "Ada L."})
	require.NoError(t, err)
	assert.Equal(t, "Ada L.", updated.Name)
	assert.Equal(t, "ada@example.com", updated.Email)

	_, err = us.Get(ctx, "sub-2")
	require.ErrorIs(t, err, game.ErrNotFound)
}
