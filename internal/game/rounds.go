// internal/game/rounds.go
//
// Round coordination: detect a freshly completed round, score it exactly
// once, and evaluate the convergence termination condition.

package game

// DefaultThreshold is the score at which a round ends the game.
const DefaultThreshold = 1.0

// completeRound runs after every accepted move. Round i is complete when
// both move lists have reached i+1 entries with i == len(Scores); the score
// and optimal word are appended under the same mutation as the move itself,
// so two near-simultaneous submissions can never both observe "incomplete"
// and skip scoring — the repository serializes the mutators, and whichever
// commits second sees the completed round.
func (g *Game) completeRound(sc Scorer, threshold float64) error {
	i := len(g.Scores)
	if len(g.Player1Moves) != i+1 || len(g.Player2Moves) != i+1 {
		return nil // round still open
	}

	score, optimal, err := sc.Score(g.Player1Moves[i], g.Player2Moves[i], g.KeyPhrase)
	if err != nil {
		return err
	}
	g.Scores = append(g.Scores, score)
	g.OptimalMoves = append(g.OptimalMoves, optimal)

	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if score >= threshold {
		g.State = StateFinished
	}
	return nil
}
