// internal/store/store.go
//
// Persistence contracts for game documents and users.
// Implementations may be backed by memory (memory.go), SQLite (sqlite.go),
// or Redis (redis.go).
//
// The one hard requirement is AtomicUpdate: the read-mutate-write cycle for
// a given game id must be serialized against every other concurrent
// AtomicUpdate on the same id. That is the sole mechanism preventing two
// near-simultaneous moves from both observing an incomplete round and
// skipping its score. Updates to different ids are independent.

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/converge-game/go-server/internal/game"
)

// maxUpdateAttempts bounds optimistic-concurrency retries before the
// conflict surfaces to the caller.
const maxUpdateAttempts = 5

// Store is the game repository.
type Store interface {
	// Create persists a new document. Returns game.ErrConflict if another
	// waiting game already holds the same key phrase.
	Create(ctx context.Context, g *game.Game) error

	// Get retrieves a game by id. Returns game.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*game.Game, error)

	// GetByKeyPhrase finds the waiting game holding phrase (the only state
	// in which a phrase is reserved). Returns game.ErrNotFound if none.
	GetByKeyPhrase(ctx context.Context, phrase string) (*game.Game, error)

	// ListByPlayer returns all games where userID holds either seat,
	// newest first.
	ListByPlayer(ctx context.Context, userID string) ([]*game.Game, error)

	// AtomicUpdate loads the game, applies mutate to a private copy, and
	// commits the copy — serialized against concurrent updates to the same
	// id. A mutator error aborts without writing and is returned verbatim.
	// Write races are retried internally; after maxUpdateAttempts the call
	// fails with game.ErrConflict.
	AtomicUpdate(ctx context.Context, id string, mutate func(*game.Game) error) (*game.Game, error)
}

// User is the identity collaborator's document. Users arrive already
// authenticated by an external provider; ID is the provider-issued subject
// and doubles as the stable per-request identifier.
type User struct {
	ID        string          `json:"provider_id"`
	Provider  string          `json:"provider"`
	Name      string          `json:"name"`
	Email     string          `json:"email"`
	Details   json.RawMessage `json:"details,omitempty"` // raw provider profile
	CreatedAt time.Time       `json:"created_at"`
}

// Mutable user fields; provider identity is immutable once created.
var userBlockedKeys = map[string]bool{"provider": true, "provider_id": true}

// BlockedUserKey reports whether key may not appear in an update.
func BlockedUserKey(key string) bool { return userBlockedKeys[key] }

// applyUserChanges copies the mutable fields out of a validated changes
// map. Unknown keys were rejected upstream and are ignored here.
func applyUserChanges(u *User, changes map[string]any) {
	for k, v := range changes {
		switch k {
		case "name":
			if s, ok := v.(string); ok {
				u.Name = s
			}
		case "email":
			if s, ok := v.(string); ok {
				u.Email = s
			}
		case "details":
			if raw, err := json.Marshal(v); err == nil {
				u.Details = raw
			}
		}
	}
}

// UserStore persists users.
type UserStore interface {
	// Create inserts a new user. Returns game.ErrConflict if the id is
	// already taken.
	Create(ctx context.Context, u *User) error

	// Get loads a user by provider id. Returns game.ErrNotFound if missing.
	Get(ctx context.Context, id string) (*User, error)

	// Update applies changes (field name → new value) to an existing user.
	// Blocked keys and unknown fields are rejected by the caller; the
	// store only persists name/email/details.
	Update(ctx context.Context, id string, changes map[string]any) (*User, error)
}
