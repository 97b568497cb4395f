// internal/store/redis.go
//
// Redis-backed Store.
//
// Layout:
//   converge:game:<id>     — JSON document
//   converge:phrase:<kp>   — phrase reservation → game id, present only
//                            while the game is waiting (SETNX on create,
//                            deleted when the game leaves waiting)
//   converge:player:<uid>  — set of game ids the user participates in
//
// Concurrency: AtomicUpdate runs under WATCH on the game key; the
// MULTI/EXEC commit fails if any other writer touched the key since the
// read, and the cycle is retried. This is the compare-and-swap flavor of
// the serialization contract in store.go.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/converge-game/go-server/internal/game"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedis constructs a game Store backed by the given client.
func NewRedis(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func gameKey(id string) string    { return "converge:game:" + id }
func phraseKey(kp string) string  { return "converge:phrase:" + kp }
func playerKey(uid string) string { return "converge:player:" + uid }

func (s *redisStore) Create(ctx context.Context, g *game.Game) error {
	// Reserve the phrase first; only one waiting game may hold it.
	ok, err := s.rdb.SetNX(ctx, phraseKey(g.KeyPhrase), g.ID, 0).Result()
	if err != nil {
		return fmt.Errorf("reserve phrase: %w", err)
	}
	if !ok {
		return game.ErrConflict
	}

	raw, err := json.Marshal(g)
	if err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, gameKey(g.ID), raw, 0)
	pipe.SAdd(ctx, playerKey(g.Player1), g.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		// Roll back the reservation so the phrase is not stranded.
		_ = s.rdb.Del(ctx, phraseKey(g.KeyPhrase)).Err()
		return fmt.Errorf("store game: %w", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (*game.Game, error) {
	raw, err := s.rdb.Get(ctx, gameKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeGame(raw)
}

func (s *redisStore) GetByKeyPhrase(ctx context.Context, phrase string) (*game.Game, error) {
	id, err := s.rdb.Get(ctx, phraseKey(phrase)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// The reservation is cleared on join; a stale mapping to a started
	// game means there is no longer a joinable game for this phrase.
	if g.State != game.StateWaiting {
		return nil, game.ErrNotFound
	}
	return g, nil
}

func (s *redisStore) ListByPlayer(ctx context.Context, userID string) ([]*game.Game, error) {
	ids, err := s.rdb.SMembers(ctx, playerKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := []*game.Game{}
	for _, id := range ids {
		g, err := s.Get(ctx, id)
		if errors.Is(err, game.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *redisStore) AtomicUpdate(ctx context.Context, id string, mutate func(*game.Game) error) (*game.Game, error) {
	var updated *game.Game

	txn := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, gameKey(id)).Bytes()
		if errors.Is(err, redis.Nil) {
			return game.ErrNotFound
		}
		if err != nil {
			return err
		}
		g, err := decodeGame(raw)
		if err != nil {
			return err
		}
		wasWaiting := g.State == game.StateWaiting

		if err := mutate(g); err != nil {
			return err
		}
		g.Version++

		next, err := json.Marshal(g)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, gameKey(id), next, 0)
			if wasWaiting && g.State != game.StateWaiting {
				pipe.Del(ctx, phraseKey(g.KeyPhrase))
			}
			if g.Player2 != "" {
				pipe.SAdd(ctx, playerKey(g.Player2), id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = g
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txn, gameKey(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue // another writer committed first
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("atomic update %s: %w", id, game.ErrConflict)
}

func decodeGame(raw []byte) (*game.Game, error) {
	var g game.Game
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("decode game: %w", err)
	}
	return &g, nil
}
