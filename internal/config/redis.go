package config

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the server config fields.
const DefaultRedisKey = "arcade:server_config"

// Hash fields understood by RedisSource.
const (
	FieldFullGame                = "product_identifiers.full_game"
	FieldDuration                = "upgrade_interstitial.duration"
	FieldAllowDismissBeforeLimit = "upgrade_interstitial.allow_dismiss_before_limit"
	FieldStopTickingAtLimit      = "upgrade_interstitial.stop_ticking_at_limit"
	FieldPlayedGamesTriggerCount = "upgrade_interstitial.played_games_trigger_count"
)

// RedisSource serves a server config stored in a redis hash.
// Fields missing from the hash fall back to the base config.
type RedisSource struct {
	client redis.UniversalClient
	key    string
	base   ServerConfig

	mu      sync.RWMutex
	current ServerConfig
	fetched time.Time
}

// NewRedisSource creates a source reading key (DefaultRedisKey if empty).
// Until the first Refresh, Current returns base.
func NewRedisSource(client redis.UniversalClient, key string, base ServerConfig) *RedisSource {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisSource{
		client:  client,
		key:     key,
		base:    base,
		current: base,
	}
}

// Current returns the last fetched config.
func (s *RedisSource) Current() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// FetchedAt reports when the config was last refreshed; zero if never.
func (s *RedisSource) FetchedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetched
}

// Refresh reads the hash. On any error the cached config is kept.
func (s *RedisSource) Refresh(ctx context.Context) error {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("config: cannot read %s: %w", s.key, err)
	}

	cfg, err := applyFields(s.base, fields)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	s.fetched = time.Now()
	s.mu.Unlock()
	return nil
}

// Poll refreshes every interval until ctx is done. Errors go to onError.
func (s *RedisSource) Poll(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Publish writes cfg into the hash. Used by operators and tests.
func Publish(ctx context.Context, client redis.UniversalClient, key string, cfg ServerConfig) error {
	if key == "" {
		key = DefaultRedisKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	err := client.HSet(ctx, key,
		FieldFullGame, cfg.ProductIdentifiers.FullGame,
		FieldDuration, strconv.Itoa(cfg.UpgradeInterstitial.Duration),
		FieldAllowDismissBeforeLimit, strconv.FormatBool(cfg.UpgradeInterstitial.AllowDismissBeforeLimit),
		FieldStopTickingAtLimit, strconv.FormatBool(cfg.UpgradeInterstitial.StopTickingAtLimit),
		FieldPlayedGamesTriggerCount, strconv.Itoa(cfg.UpgradeInterstitial.PlayedGamesTriggerCount),
	).Err()
	if err != nil {
		return fmt.Errorf("config: cannot write %s: %w", key, err)
	}
	return nil
}

func applyFields(cfg ServerConfig, fields map[string]string) (ServerConfig, error) {
	for name, raw := range fields {
		var err error
		switch name {
		case FieldFullGame:
			cfg.ProductIdentifiers.FullGame = raw
		case FieldDuration:
			cfg.UpgradeInterstitial.Duration, err = strconv.Atoi(raw)
		case FieldAllowDismissBeforeLimit:
			cfg.UpgradeInterstitial.AllowDismissBeforeLimit, err = strconv.ParseBool(raw)
		case FieldStopTickingAtLimit:
			cfg.UpgradeInterstitial.StopTickingAtLimit, err = strconv.ParseBool(raw)
		case FieldPlayedGamesTriggerCount:
			cfg.UpgradeInterstitial.PlayedGamesTriggerCount, err = strconv.Atoi(raw)
		}
		if err != nil {
			return cfg, fmt.Errorf("%w: field %s: %v", ErrInvalidConfig, name, err)
		}
	}
	return cfg, nil
}
