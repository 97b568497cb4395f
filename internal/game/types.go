// internal/game/types.go
//
// Core type definitions for a Converge session.
// Defines:
//   - State: lifecycle of a game (waiting/in_progress/finished).
//   - Game: the persisted document for a single two-player session.

package game

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// State is the lifecycle phase of a game.
// Transitions are strictly waiting → in_progress → finished;
// finished is terminal.
type State string

const (
	StateWaiting    State = "waiting"     // created, second seat open
	StateInProgress State = "in_progress" // both seats taken, rounds running
	StateFinished   State = "finished"    // converged or abandoned
)

// Game is the document for one session. Both players submit one word per
// round; a round is scored once both words for it are present.
//
// Structural invariants (hold after every successful operation):
//   - len(Player1Moves) and len(Player2Moves) never differ by more than 1.
//   - len(Scores) == min(len(Player1Moves), len(Player2Moves)).
//   - len(OptimalMoves) == len(Scores).
//   - State == StateWaiting iff Player2 == "".
type Game struct {
	ID           string    `json:"_id"`        // assigned at creation, immutable
	KeyPhrase    string    `json:"key_phrase"` // shared prompt + join token
	Player1      string    `json:"player1"`    // creator's user ID
	Player2      string    `json:"player2"`    // empty until someone joins
	Player1Moves []string  `json:"player1_moves"`
	Player2Moves []string  `json:"player2_moves"`
	OptimalMoves []string  `json:"optimal_moves"` // "middle word" per scored round
	Scores       []float64 `json:"scores"`        // one per completed round, each in [0,1]
	State        State     `json:"game_state"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Version is the repository's optimistic-concurrency counter.
	// Bumped on every committed update; not part of the wire shape.
	Version int64 `json:"-"`
}

// New constructs a fresh document in the waiting state.
// Key phrase uniqueness among waiting games is enforced by the repository.
func New(creatorID, keyPhrase string) *Game {
	now := time.Now().UTC()
	return &Game{
		ID:           randomID(),
		KeyPhrase:    keyPhrase,
		Player1:      creatorID,
		Player1Moves: []string{},
		Player2Moves: []string{},
		OptimalMoves: []string{},
		Scores:       []float64{},
		State:        StateWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}
}

// IsParticipant reports whether userID holds one of the two seats.
func (g *Game) IsParticipant(userID string) bool {
	return userID != "" && (userID == g.Player1 || userID == g.Player2)
}

// Rounds returns the number of completed (scored) rounds.
func (g *Game) Rounds() int { return len(g.Scores) }

// Clone returns a deep copy. Repositories hand clones to mutators so a
// failed mutation never leaks partial state into a stored document.
func (g *Game) Clone() *Game {
	cp := *g
	cp.Player1Moves = append([]string{}, g.Player1Moves...)
	cp.Player2Moves = append([]string{}, g.Player2Moves...)
	cp.OptimalMoves = append([]string{}, g.OptimalMoves...)
	cp.Scores = append([]float64{}, g.Scores...)
	return &cp
}

// randomID returns a compact 16-hex-char identifier.
// Collisions are extremely unlikely given crypto/rand entropy.
func randomID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
