package interstitial

import "github.com/vovakirdan/arcade-interstitial/internal/config"

// ShouldPresent decides whether a game start is interrupted by the upgrade
// interstitial. Players who own the full game are never interrupted.
func ShouldPresent(policy config.UpgradeInterstitialConfig, gamesPlayed int, hasFullGame bool) bool {
	if hasFullGame {
		return false
	}
	return gamesPlayed >= policy.PlayedGamesTriggerCount
}
