package config

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// FileSource serves a server config read from a YAML file and reloads it
// whenever the file changes. A broken edit keeps the last good config.
type FileSource struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	current ServerConfig

	onReload func(ServerConfig)
}

// NewFileSource loads path once. An empty path serves the embedded default
// and never reloads.
func NewFileSource(path string, logger *log.Logger) (*FileSource, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &FileSource{path: path, logger: logger}

	if path == "" {
		cfg, err := Parse(defaultServerYAML)
		if err != nil {
			cfg = DefaultServerConfig()
		}
		s.current = cfg
		return s, nil
	}

	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	s.current = cfg
	return s, nil
}

// Current returns the most recently loaded config.
func (s *FileSource) Current() ServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// OnReload registers a callback run after every successful reload.
func (s *FileSource) OnReload(fn func(ServerConfig)) {
	s.mu.Lock()
	s.onReload = fn
	s.mu.Unlock()
}

// Reload re-reads the file. On error the previous config stays current.
func (s *FileSource) Reload() error {
	if s.path == "" {
		return nil
	}
	cfg, err := s.read()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = cfg
	fn := s.onReload
	s.mu.Unlock()

	s.logger.Info("server config reloaded",
		"path", s.path,
		"duration", cfg.UpgradeInterstitial.Duration,
		"trigger", cfg.UpgradeInterstitial.PlayedGamesTriggerCount,
	)
	if fn != nil {
		fn(cfg)
	}
	return nil
}

// Watch reloads the file on every write until ctx is done.
// The parent directory is watched so editors that replace the file are seen too.
func (s *FileSource) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: cannot create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("config: cannot watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("keeping previous server config", "path", s.path, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (s *FileSource) read() (ServerConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return ServerConfig{}, fmt.Errorf("config: failed to read %s: %w", s.path, err)
	}
	return Parse(data)
}
