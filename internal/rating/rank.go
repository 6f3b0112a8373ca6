package rating

import "codeduel/internal/models"

// rankThreshold is one (floor, rank) pair; bands are evaluated highest
// floor first: Bronze I below 800, Bronze II from 800, 100-point bands
// up to Platinum III at 1800, then Diamond at 2000, Master at 2200 and
// Grandmaster at 2400.
type rankThreshold struct {
	floor int
	rank  models.PlayerRank
}

var rankThresholds = []rankThreshold{
	{2400, models.RankGrandmaster},
	{2200, models.RankMaster},
	{2000, models.RankDiamond},
	{1800, models.RankPlatinumIII},
	{1700, models.RankPlatinumII},
	{1600, models.RankPlatinumI},
	{1500, models.RankGoldIII},
	{1400, models.RankGoldII},
	{1300, models.RankGoldI},
	{1200, models.RankSilverIII},
	{1100, models.RankSilverII},
	{1000, models.RankSilverI},
	{900, models.RankBronzeIII},
	{800, models.RankBronzeII},
	{0, models.RankBronzeI},
}

// RankFor derives the labeled rank band for an ELO value.
func RankFor(elo int) models.PlayerRank {
	for _, t := range rankThresholds {
		if elo >= t.floor {
			return t.rank
		}
	}
	return models.RankBronzeI
}

// xpPerLevel applies a flat 500-xp-per-level curve.
const xpPerLevel = 500

// LevelFor derives the level from accumulated XP.
func LevelFor(xp int) int {
	return 1 + xp/xpPerLevel
}
