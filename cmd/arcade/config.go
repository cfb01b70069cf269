package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vovakirdan/arcade-interstitial/internal/config"
)

const configPollInterval = 30 * time.Second

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or publish the server config",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective server config as YAML",
	Long: `Print the server config the arcade would use right now.

With --redis the redis hash is merged over the local YAML, exactly as the
running arcade does.`,
	RunE: runConfigShow,
}

var configPublishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Write the local server config into redis",
	Long: `Load the server config from --config (or the usual search path) and
write it into the redis hash every arcade reads with --redis.

Examples:
  arcade config publish --redis localhost:6379
  arcade config publish --redis localhost:6379 --config ./configs/server.yaml`,
	RunE: runConfigPublish,
}

var configDefaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the built-in server config",
	Long: `Print the server config compiled into the binary. Redirect it to
~/.arcade/configs/server.yaml or ./configs/server.yaml to start editing.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
		return err
	},
}

func init() {
	configCmd.AddCommand(configDefaultsCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPublishCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	if flagRedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: flagRedisAddr})
		defer client.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		src := config.NewRedisSource(client, flagRedisKey, cfg)
		if err := src.Refresh(ctx); err != nil {
			return err
		}
		cfg = src.Current()
	}

	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(cfg)
}

func runConfigPublish(cmd *cobra.Command, _ []string) error {
	if flagRedisAddr == "" {
		return fmt.Errorf("--redis is required")
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	client := redis.NewClient(&redis.Options{Addr: flagRedisAddr})
	defer client.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	defer cancel()
	if err := config.Publish(ctx, client, flagRedisKey, cfg); err != nil {
		return err
	}

	key := flagRedisKey
	if key == "" {
		key = config.DefaultRedisKey
	}
	fmt.Printf("Published server config to %s (%s)\n", flagRedisAddr, key)
	return nil
}
