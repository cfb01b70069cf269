package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Parse decodes YAML on top of the defaults, so omitted keys keep their default values.
func Parse(data []byte) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: failed to parse server config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Load loads the server configuration.
// Search order: customPath -> ~/.arcade/configs/server.yaml -> ./configs/server.yaml -> embedded default
func Load(customPath string) (ServerConfig, error) {
	// Try custom path first
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return DefaultServerConfig(), fmt.Errorf("config: failed to read %s: %w", customPath, err)
		}
		return Parse(data)
	}

	// Unreadable or invalid files fall through to the next candidate
	for _, path := range searchPaths() {
		if cfg, err := readFile(path); err == nil {
			return cfg, nil
		}
	}

	// Use embedded default YAML
	cfg, err := Parse(defaultServerYAML)
	if err != nil {
		return DefaultServerConfig(), nil // Fallback to hardcoded if embed fails
	}
	return cfg, nil
}

// ResolvePath returns the file Load would read for customPath, or "" when
// only the embedded default applies.
func ResolvePath(customPath string) string {
	if customPath != "" {
		return customPath
	}
	for _, path := range searchPaths() {
		if _, err := readFile(path); err == nil {
			return path
		}
	}
	return ""
}

func searchPaths() []string {
	var paths []string
	if p := userConfigPath("server.yaml"); p != "" {
		paths = append(paths, p)
	}
	return append(paths, filepath.Join("configs", "server.yaml"))
}

func readFile(path string) (ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultServerConfig(), err
	}
	return Parse(data)
}

// userConfigPath returns the path to user config file, or empty if home is unavailable.
func userConfigPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".arcade", "configs", filename)
}
