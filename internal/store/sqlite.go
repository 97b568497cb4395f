// internal/store/sqlite.go
//
// SQLite-backed Store and UserStore.
//
// Concurrency: AtomicUpdate uses a version column as an optimistic guard —
// the UPDATE is conditioned on the version read, and zero affected rows
// means another writer committed first, so the cycle is retried. Key phrase
// uniqueness among waiting games rides on a partial unique index
// (sql/001_init.sql).
//
// Move/score lists are stored as JSON text columns; the document is small
// and always read and written whole, so per-element columns buy nothing.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/converge-game/go-server/internal/game"
	"github.com/rs/zerolog/log"
)

type sqliteStore struct {
	db *sql.DB
}

// NewSQLite constructs a game Store on top of an opened, migrated database.
func NewSQLite(db *sql.DB) Store {
	return &sqliteStore{db: db}
}

const gameColumns = `id, key_phrase, player1, COALESCE(player2,''),
	player1_moves, player2_moves, optimal_moves, scores,
	game_state, version, created_at, updated_at`

func (s *sqliteStore) Create(ctx context.Context, g *game.Game) error {
	p1m, p2m, opt, sc := mustJSON(g.Player1Moves), mustJSON(g.Player2Moves),
		mustJSON(g.OptimalMoves), mustJSON(g.Scores)
	var player2 any
	if g.Player2 != "" {
		player2 = g.Player2
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, key_phrase, player1, player2,
			player1_moves, player2_moves, optimal_moves, scores,
			game_state, version, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		g.ID, g.KeyPhrase, g.Player1, player2, p1m, p2m, opt, sc,
		string(g.State), g.Version,
		g.CreatedAt.Format(time.RFC3339Nano), g.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return game.ErrConflict
		}
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id=?`, id)
	return scanGame(row)
}

func (s *sqliteStore) GetByKeyPhrase(ctx context.Context, phrase string) (*game.Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM games WHERE key_phrase=? AND game_state='waiting'`, phrase)
	return scanGame(row)
}

func (s *sqliteStore) ListByPlayer(ctx context.Context, userID string) ([]*game.Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM games
		 WHERE player1=? OR player2=? ORDER BY created_at DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*game.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqliteStore) AtomicUpdate(ctx context.Context, id string, mutate func(*game.Game) error) (*game.Game, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		g, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		readVersion := g.Version

		if err := mutate(g); err != nil {
			return nil, err
		}
		g.Version = readVersion + 1

		res, err := s.db.ExecContext(ctx, `
			UPDATE games SET player2=?, player1_moves=?, player2_moves=?,
				optimal_moves=?, scores=?, game_state=?, version=?, updated_at=?
			WHERE id=? AND version=?`,
			nullable(g.Player2), mustJSON(g.Player1Moves), mustJSON(g.Player2Moves),
			mustJSON(g.OptimalMoves), mustJSON(g.Scores), string(g.State),
			g.Version, g.UpdatedAt.Format(time.RFC3339Nano),
			id, readVersion)
		if err != nil {
			return nil, fmt.Errorf("update game: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 1 {
			return g, nil
		}
		// Lost the race; reread and try again.
		log.Debug().Str("gameId", id).Int("attempt", attempt+1).Msg("update conflict, retrying")
	}
	return nil, fmt.Errorf("atomic update %s: %w", id, game.ErrConflict)
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (*game.Game, error) {
	var g game.Game
	var state, created, updated string
	var p1m, p2m, opt, sc []byte
	err := row.Scan(&g.ID, &g.KeyPhrase, &g.Player1, &g.Player2,
		&p1m, &p2m, &opt, &sc, &state, &g.Version, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	g.State = game.State(state)
	g.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	g.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{p1m, &g.Player1Moves}, {p2m, &g.Player2Moves},
		{opt, &g.OptimalMoves}, {sc, &g.Scores},
	} {
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return nil, fmt.Errorf("decode game %s: %w", g.ID, err)
		}
	}
	return &g, nil
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ----------------------------- users ---------------------------------

type sqliteUsers struct {
	db *sql.DB
}

// NewSQLiteUsers constructs a UserStore on top of an opened, migrated
// database.
func NewSQLiteUsers(db *sql.DB) UserStore {
	return &sqliteUsers{db: db}
}

func (s *sqliteUsers) Create(ctx context.Context, u *User) error {
	details := "{}"
	if len(u.Details) > 0 {
		details = string(u.Details)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (provider_id, provider, name, email, details, created_at)
		VALUES (?,?,?,?,?,?)`,
		u.ID, u.Provider, u.Name, u.Email, details, u.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return game.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *sqliteUsers) Get(ctx context.Context, id string) (*User, error) {
	var u User
	var details, created string
	err := s.db.QueryRowContext(ctx, `
		SELECT provider_id, provider, name, email, details, created_at
		FROM users WHERE provider_id=?`, id).
		Scan(&u.ID, &u.Provider, &u.Name, &u.Email, &details, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, game.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Details = json.RawMessage(details)
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return &u, nil
}

func (s *sqliteUsers) Update(ctx context.Context, id string, changes map[string]any) (*User, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	applyUserChanges(u, changes)
	details := "{}"
	if len(u.Details) > 0 {
		details = string(u.Details)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET name=?, email=?, details=? WHERE provider_id=?`,
		u.Name, u.Email, details, id); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
