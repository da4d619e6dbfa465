package docsmcp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// ServerConfig describes how to launch one MCP server: the command, its
// arguments, and environment entries overlaid on the parent environment. It
// is opaque to the session core beyond being handed to the process launcher.
type ServerConfig struct {
	Command     string            `json:"command" yaml:"command"`
	Args        []string          `json:"args,omitempty" yaml:"args"`
	Env         map[string]string `json:"env,omitempty" yaml:"env"`
	Disabled    bool              `json:"disabled,omitempty" yaml:"disabled"`
	AutoApprove []string          `json:"autoApprove,omitempty" yaml:"autoApprove"`
}

// Settings is the server registry, conventionally stored in
// mcp-settings.json with a top-level mcpServers map keyed by server name.
type Settings struct {
	MCPServers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`
}

// LoadSettings reads a registry file. The format is chosen by extension:
// .yaml/.yml files are parsed as YAML, everything else as JSON.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &settings); err != nil {
			return nil, fmt.Errorf("failed to parse settings file: %w", err)
		}
	}
	return &settings, nil
}

// DefaultSettingsPath returns mcp-settings.json in the working directory,
// matching the convention the registry file is usually written with.
func DefaultSettingsPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "mcp-settings.json"
	}
	return filepath.Join(cwd, "mcp-settings.json")
}

// Server returns the named server's launch configuration. Disabled servers
// are rejected.
func (s *Settings) Server(name string) (ServerConfig, error) {
	cfg, ok := s.MCPServers[name]
	if !ok {
		return ServerConfig{}, fmt.Errorf("server config not found: %s", name)
	}
	if cfg.Disabled {
		return ServerConfig{}, fmt.Errorf("server is disabled: %s", name)
	}
	return cfg, nil
}

// ServerNames returns the names of all configured servers, including
// disabled ones.
func (s *Settings) ServerNames() []string {
	names := make([]string, 0, len(s.MCPServers))
	for name := range s.MCPServers {
		names = append(names, name)
	}
	return names
}

// SettingsWatcher reloads a registry file whenever it changes on disk and
// hands each successfully parsed version to the onChange callback. Parse
// failures are logged and the previous version stays in effect.
type SettingsWatcher struct {
	watcher   *fsnotify.Watcher
	path      string
	onChange  func(*Settings)
	logger    *slog.Logger
	done      chan struct{}
	closeOnce sync.Once
}

// SettingsWatcherOption configures a SettingsWatcher.
type SettingsWatcherOption func(*SettingsWatcher)

// WithWatcherLogger sets the logger for watch events.
func WithWatcherLogger(logger *slog.Logger) SettingsWatcherOption {
	return func(w *SettingsWatcher) {
		w.logger = logger
	}
}

// WatchSettings starts watching the given registry file. The directory is
// watched rather than the file itself so editors that replace the file
// atomically still trigger a reload.
func WatchSettings(path string, onChange func(*Settings), options ...SettingsWatcherOption) (*SettingsWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch settings directory: %w", err)
	}

	w := &SettingsWatcher{
		watcher:  fw,
		path:     abs,
		onChange: onChange,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range options {
		opt(w)
	}

	go w.loop()
	return w, nil
}

// Close stops watching. Idempotent.
func (w *SettingsWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *SettingsWatcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			settings, err := LoadSettings(w.path)
			if err != nil {
				w.logger.Warn("failed to reload settings", "path", w.path, "err", err)
				continue
			}
			w.logger.Info("settings reloaded", "path", w.path)
			w.onChange(settings)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("settings watcher error", "err", err)
		}
	}
}
