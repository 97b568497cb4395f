// internal/game/errors.go
//
// Error kinds shared by the state machine, repositories, and the HTTP
// layer. Handlers dispatch on these with errors.Is and translate them
// to {"error": ...} payloads.

package game

import "errors"

var (
	// ErrConflict: the key phrase is already held by another waiting game,
	// or a repository write lost an optimistic-concurrency race after
	// exhausting retries.
	ErrConflict = errors.New("conflict")

	// ErrInvalidState: the action is not legal in the game's current state
	// (e.g. joining a started game, moving in a finished one).
	ErrInvalidState = errors.New("invalid game state")

	// ErrUnauthorized: the actor holds neither seat in the game.
	ErrUnauthorized = errors.New("not a participant")

	// ErrOutOfTurn: the actor is already a full round ahead of the
	// opponent and must wait for the round to complete.
	ErrOutOfTurn = errors.New("out of turn")

	// ErrSelfJoin: the creator tried to take the second seat.
	ErrSelfJoin = errors.New("cannot join own game")

	// ErrNotFound: no game (or user) for the given id or key phrase.
	ErrNotFound = errors.New("not found")

	// ErrInvalidWord: the submitted word is empty or outside the
	// scorer's vocabulary.
	ErrInvalidWord = errors.New("invalid word")
)
