// internal/store/memory.go
//
// In-memory implementation of the Store and UserStore interfaces.
// This is a lightweight persistence layer used for ephemeral sessions,
// primarily in development/testing, or when durability is not required.
//
// Characteristics:
//   - Stores deep copies keyed by ID; callers never share memory with the
//     map, so a mutator that fails cannot corrupt stored state.
//   - A per-game mutex serializes AtomicUpdate cycles for one id while
//     updates to different ids proceed in parallel.
//   - State is lost when the process restarts.

package store

import (
	"context"
	"sort"
	"sync"

	"github.com/converge-game/go-server/internal/game"
)

type memory struct {
	mu    sync.RWMutex      // guards games map and phrase index
	games map[string]*entry // keyed by game.ID
}

type entry struct {
	mu sync.Mutex // serializes AtomicUpdate for this game
	g  *game.Game
}

// NewMemory constructs an in-memory game Store.
func NewMemory() Store {
	return &memory{games: make(map[string]*entry)}
}

func (m *memory) Create(ctx context.Context, g *game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.games {
		e.mu.Lock()
		clash := e.g.State == game.StateWaiting && e.g.KeyPhrase == g.KeyPhrase
		e.mu.Unlock()
		if clash {
			return game.ErrConflict
		}
	}
	m.games[g.ID] = &entry{g: g.Clone()}
	return nil
}

func (m *memory) Get(ctx context.Context, id string) (*game.Game, error) {
	m.mu.RLock()
	e, ok := m.games[id]
	m.mu.RUnlock()
	if !ok {
		return nil, game.ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.g.Clone(), nil
}

func (m *memory) GetByKeyPhrase(ctx context.Context, phrase string) (*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.games {
		e.mu.Lock()
		match := e.g.State == game.StateWaiting && e.g.KeyPhrase == phrase
		g := e.g.Clone()
		e.mu.Unlock()
		if match {
			return g, nil
		}
	}
	return nil, game.ErrNotFound
}

func (m *memory) ListByPlayer(ctx context.Context, userID string) ([]*game.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*game.Game{}
	for _, e := range m.games {
		e.mu.Lock()
		if e.g.IsParticipant(userID) {
			out = append(out, e.g.Clone())
		}
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memory) AtomicUpdate(ctx context.Context, id string, mutate func(*game.Game) error) (*game.Game, error) {
	m.mu.RLock()
	e, ok := m.games[id]
	m.mu.RUnlock()
	if !ok {
		return nil, game.ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.g.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.Version++
	e.g = next
	return next.Clone(), nil
}

// ----------------------------- users ---------------------------------

type memoryUsers struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryUsers constructs an in-memory UserStore.
func NewMemoryUsers() UserStore {
	return &memoryUsers{users: make(map[string]*User)}
}

func (m *memoryUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.ID]; exists {
		return game.ErrConflict
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUsers) Get(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) Update(ctx context.Context, id string, changes map[string]any) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, game.ErrNotFound
	}
	applyUserChanges(u, changes)
	cp := *u
	return &cp, nil
}
