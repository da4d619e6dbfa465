package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/pptxagent/docsmcp"
)

var (
	settingsPath string
	serverName   string
	callTimeout  time.Duration
	verbose      bool
)

// fileDefaults are read from ~/.docsmcp.toml before flags are applied, so a
// user can pin their registry path and server without repeating flags.
type fileDefaults struct {
	Settings string `toml:"settings"`
	Server   string `toml:"server"`
	Timeout  string `toml:"timeout"`
}

var rootCmd = &cobra.Command{
	Use:   "docsmcp",
	Short: "Talk to an MCP documentation server",
	Long: `docsmcp launches an MCP tool server from the registry file
(mcp-settings.json by convention), performs the initialize handshake, and
runs tool operations against it over stdio.`,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	defaults := loadFileDefaults()

	if defaults.Settings == "" {
		defaults.Settings = docsmcp.DefaultSettingsPath()
	}
	timeout := 30 * time.Second
	if defaults.Timeout != "" {
		if d, err := time.ParseDuration(defaults.Timeout); err == nil {
			timeout = d
		}
	}

	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", defaults.Settings, "server registry file (.json or .yaml)")
	rootCmd.PersistentFlags().StringVar(&serverName, "server", defaults.Server, "server name in the registry")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "timeout", timeout, "per-call timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func loadFileDefaults() fileDefaults {
	var defaults fileDefaults
	home, err := os.UserHomeDir()
	if err != nil {
		return defaults
	}
	path := filepath.Join(home, ".docsmcp.toml")
	if _, err := os.Stat(path); err != nil {
		return defaults
	}
	if _, err := toml.DecodeFile(path, &defaults); err != nil {
		fmt.Fprintf(os.Stderr, "ignoring %s: %v\n", path, err)
	}
	return defaults
}

// connectClient launches the configured server and completes the handshake.
// The caller must Close the returned client.
func connectClient(ctx context.Context) (*docsmcp.Client, error) {
	if serverName == "" {
		return nil, fmt.Errorf("--server is required")
	}

	settings, err := docsmcp.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	cfg, err := settings.Server(serverName)
	if err != nil {
		return nil, err
	}

	transport := docsmcp.NewStdIOProcess(cfg)
	client := docsmcp.NewClient(
		docsmcp.Info{Name: "docsmcp", Version: "1.0.0"},
		transport,
		docsmcp.WithCallTimeout(callTimeout),
	)
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverName, err)
	}
	return client, nil
}
