// internal/game/session.go
//
// Session state machine for a Converge game.
// Responsibilities:
//   - Validate and apply the three mutations a session supports:
//     join, submit-move, quit.
//   - Enforce the lockstep-round invariant (nobody gets a full round ahead).
//   - Delegate round completion to completeRound (rounds.go).
//
// All methods mutate the receiver only after validation passes; a returned
// error means the document is unchanged. Callers are expected to run these
// inside the repository's AtomicUpdate so concurrent submissions for the
// same game are serialized.

package game

import (
	"fmt"
	"strings"
	"time"
)

// Scorer grades a completed round. Implementations live in
// internal/scoring; the state machine treats scores as opaque except for
// the convergence threshold comparison.
//
// Score must be deterministic for equal ordered inputs. Equal words should
// score 1.0.
type Scorer interface {
	// Score returns the similarity of the two words in [0,1] and the
	// optimal "middle word" between them ("" when none applies).
	Score(wordA, wordB, keyPhrase string) (score float64, optimal string, err error)

	// Validate reports whether word is playable under this scorer.
	Validate(word string) bool
}

// Join seats joinerID as player2 and starts the game.
// Fails with ErrInvalidState unless the game is still waiting, and with
// ErrSelfJoin if the creator tries to take their own second seat.
func (g *Game) Join(joinerID string) error {
	if g.State != StateWaiting {
		return fmt.Errorf("join: %w", ErrInvalidState)
	}
	if joinerID == g.Player1 {
		return fmt.Errorf("join: %w", ErrSelfJoin)
	}
	g.Player2 = joinerID
	g.State = StateInProgress
	g.UpdatedAt = time.Now().UTC()
	return nil
}

// SubmitMove appends playerID's word for the current round and, when the
// word completes the round, scores it and evaluates termination.
//
// Rejections (document untouched):
//   - ErrInvalidState: game not in progress.
//   - ErrUnauthorized: playerID holds neither seat.
//   - ErrOutOfTurn: player already a full round ahead of the opponent.
//   - ErrInvalidWord: empty word or outside the scorer's vocabulary.
//
// Submissions are not deduplicated; a caller retrying a transient failure
// resubmits the same logical move and relies on at-most-one commit per
// successful atomic update.
func (g *Game) SubmitMove(playerID, word string, sc Scorer, threshold float64) error {
	switch g.State {
	case StateFinished:
		return fmt.Errorf("submit move: game finished: %w", ErrInvalidState)
	case StateWaiting:
		return fmt.Errorf("submit move: waiting for opponent: %w", ErrInvalidState)
	}
	if !g.IsParticipant(playerID) {
		return fmt.Errorf("submit move: %w", ErrUnauthorized)
	}

	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" || !sc.Validate(word) {
		return fmt.Errorf("submit move %q: %w", word, ErrInvalidWord)
	}

	own, other := &g.Player1Moves, &g.Player2Moves
	if playerID == g.Player2 {
		own, other = other, own
	}
	// One move per round: a player may be at most one ahead.
	if len(*own) > len(*other) {
		return fmt.Errorf("submit move: %w", ErrOutOfTurn)
	}

	*own = append(*own, word)
	g.UpdatedAt = time.Now().UTC()

	return g.completeRound(sc, threshold)
}

// Quit marks the game abandoned by a participant. The game moves to
// finished regardless of round progress; no further moves are accepted.
func (g *Game) Quit(playerID string) error {
	if g.State == StateFinished {
		return fmt.Errorf("quit: %w", ErrInvalidState)
	}
	if !g.IsParticipant(playerID) {
		return fmt.Errorf("quit: %w", ErrUnauthorized)
	}
	g.State = StateFinished
	g.UpdatedAt = time.Now().UTC()
	return nil
}
