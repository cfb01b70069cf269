package config

import (
	_ "embed"
)

//go:embed defaults/server.yaml
var defaultServerYAML []byte

// DefaultServerConfig returns the built-in configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ProductIdentifiers: ProductIdentifiers{
			FullGame: "co.arcade.full_game",
		},
		UpgradeInterstitial: UpgradeInterstitialConfig{
			Duration:                10,
			AllowDismissBeforeLimit: false,
			StopTickingAtLimit:      false,
			PlayedGamesTriggerCount: 6,
		},
	}
}

// DefaultYAML returns the embedded default server config.
func DefaultYAML() []byte {
	return defaultServerYAML
}
