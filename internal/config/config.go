// Package config provides the server-driven configuration of the arcade:
// which product unlocks the full game and how the upgrade interstitial behaves.
// Values come from YAML files (hot reloaded) or a redis hash.
package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid server config")

// ServerConfig is the remote configuration served to clients.
type ServerConfig struct {
	ProductIdentifiers  ProductIdentifiers        `yaml:"product_identifiers"`
	UpgradeInterstitial UpgradeInterstitialConfig `yaml:"upgrade_interstitial"`
}

// ProductIdentifiers names the store products the arcade sells.
type ProductIdentifiers struct {
	FullGame string `yaml:"full_game"`
}

// UpgradeInterstitialConfig is the policy of the upgrade interstitial.
type UpgradeInterstitialConfig struct {
	// Duration is the countdown, in seconds, after which "maybe later" unlocks.
	Duration                int  `yaml:"duration"`
	AllowDismissBeforeLimit bool `yaml:"allow_dismiss_before_limit"`
	// StopTickingAtLimit freezes the countdown once it reaches Duration.
	// When false the clock keeps running until the interstitial ends.
	StopTickingAtLimit      bool `yaml:"stop_ticking_at_limit"`
	PlayedGamesTriggerCount int  `yaml:"played_games_trigger_count"`
}

// Validate checks the config for values the client cannot work with.
func (c ServerConfig) Validate() error {
	if c.ProductIdentifiers.FullGame == "" {
		return fmt.Errorf("%w: product_identifiers.full_game is empty", ErrInvalidConfig)
	}
	if c.UpgradeInterstitial.Duration < 0 {
		return fmt.Errorf("%w: upgrade_interstitial.duration must not be negative", ErrInvalidConfig)
	}
	if c.UpgradeInterstitial.PlayedGamesTriggerCount < 0 {
		return fmt.Errorf("%w: upgrade_interstitial.played_games_trigger_count must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Static is a fixed configuration source.
type Static ServerConfig

// Current returns the wrapped config.
func (s Static) Current() ServerConfig { return ServerConfig(s) }
