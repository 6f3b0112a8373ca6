package rating

import "codeduel/internal/models"

// aiFixedElo is the difficulty-scaled fixed rating standing in for the
// AI opponent in human-vs-AI ELO exchanges. rating.Service never
// creates or updates a PlayerRating row for the AI; it recognizes the
// AI participant by Participant.IsAI.
var aiFixedElo = map[models.Difficulty]int{
	models.DifficultyEasy:   1000,
	models.DifficultyMedium: 1200,
	models.DifficultyHard:   1500,
	models.DifficultyExpert: 1800,
}

// AIFixedElo returns the fixed ELO for an AI opponent of the given
// difficulty, defaulting to the Medium rating for an unrecognized value.
func AIFixedElo(difficulty models.Difficulty) int {
	if elo, ok := aiFixedElo[difficulty]; ok {
		return elo
	}
	return aiFixedElo[models.DifficultyMedium]
}
