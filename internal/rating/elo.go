// Package rating implements the ELO update, rank bands, streak/XP
// bookkeeping, and idempotent achievement grants that run after a duel
// completes with a winner.
//
// The ELO formula uses the standard logistic expected-score curve on
// the rating difference, with a symmetric update for both sides.
package rating

import "math"

// Update applies one K-factor ELO exchange and returns the new ratings
// for the winner and loser.
func Update(winnerElo, loserElo, kFactor int) (newWinnerElo, newLoserElo int) {
	expectedWinner := 1.0 / (1.0 + math.Pow(10, float64(loserElo-winnerElo)/400.0))
	expectedLoser := 1.0 - expectedWinner

	newWinnerElo = winnerElo + int(math.Round(float64(kFactor)*(1.0-expectedWinner)))
	newLoserElo = loserElo + int(math.Round(float64(kFactor)*(0.0-expectedLoser)))
	return newWinnerElo, newLoserElo
}
