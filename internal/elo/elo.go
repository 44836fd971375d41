package elo

import (
	"arena-bot/internal/constants"
	"arena-bot/internal/domain"
	"math"
)

// ExpectedScore returns the probability that a player rated a beats one rated b.
func ExpectedScore(a, b int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(b-a)/400.0))
}

// NewRating applies one result. actual is 1 for a win, 0 for a loss.
func NewRating(old int, expected, actual float64) int {
	return int(math.Round(float64(old) + constants.EloKFactor*(actual-expected)))
}

// Update returns the post-match ratings. Both sides use pre-match ratings.
func Update(winner, loser int) (int, int) {
	newWinner := NewRating(winner, ExpectedScore(winner, loser), 1)
	newLoser := NewRating(loser, ExpectedScore(loser, winner), 0)
	return newWinner, newLoser
}

func TierFor(rating int) domain.Tier {
	switch {
	case rating < 800:
		return domain.TierBronze
	case rating < 950:
		return domain.TierSilver
	case rating < 1050:
		return domain.TierGold
	case rating < 1200:
		return domain.TierPlatinum
	case rating < 1300:
		return domain.TierDiamond
	default:
		return domain.TierMaster
	}
}
