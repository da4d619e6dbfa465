package docsmcp_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pptxagent/docsmcp"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadSettingsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-settings.json")
	writeFile(t, path, `{
		"mcpServers": {
			"awslabs.aws-documentation-mcp-server": {
				"command": "uvx",
				"args": ["awslabs.aws-documentation-mcp-server@latest"],
				"env": {"FASTMCP_LOG_LEVEL": "ERROR"},
				"autoApprove": ["search_documentation"]
			},
			"broken": {
				"command": "false",
				"disabled": true
			}
		}
	}`)

	settings, err := docsmcp.LoadSettings(path)
	require.NoError(t, err)

	cfg, err := settings.Server("awslabs.aws-documentation-mcp-server")
	require.NoError(t, err)
	assert.Equal(t, "uvx", cfg.Command)
	assert.Equal(t, []string{"awslabs.aws-documentation-mcp-server@latest"}, cfg.Args)
	assert.Equal(t, "ERROR", cfg.Env["FASTMCP_LOG_LEVEL"])
	assert.Equal(t, []string{"search_documentation"}, cfg.AutoApprove)

	_, err = settings.Server("broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")

	_, err = settings.Server("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	assert.ElementsMatch(t,
		[]string{"awslabs.aws-documentation-mcp-server", "broken"},
		settings.ServerNames())
}

func TestLoadSettingsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp-settings.yaml")
	writeFile(t, path, `
mcpServers:
  docs:
    command: uvx
    args:
      - docs-server
    env:
      LOG_LEVEL: ERROR
`)

	settings, err := docsmcp.LoadSettings(path)
	require.NoError(t, err)

	cfg, err := settings.Server("docs")
	require.NoError(t, err)
	assert.Equal(t, "uvx", cfg.Command)
	assert.Equal(t, []string{"docs-server"}, cfg.Args)
	assert.Equal(t, "ERROR", cfg.Env["LOG_LEVEL"])
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := docsmcp.LoadSettings(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadSettingsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, `{"mcpServers": `)

	_, err := docsmcp.LoadSettings(path)
	assert.Error(t, err)
}

func TestDefaultSettingsPath(t *testing.T) {
	assert.Equal(t, "mcp-settings.json", filepath.Base(docsmcp.DefaultSettingsPath()))
}

func TestWatchSettingsReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-settings.json")
	writeFile(t, path, `{"mcpServers":{"a":{"command":"one"}}}`)

	reloaded := make(chan *docsmcp.Settings, 4)
	watcher, err := docsmcp.WatchSettings(path, func(s *docsmcp.Settings) {
		reloaded <- s
	})
	require.NoError(t, err)
	defer watcher.Close()

	writeFile(t, path, `{"mcpServers":{"a":{"command":"two"}}}`)

	select {
	case settings := <-reloaded:
		cfg, err := settings.Server("a")
		require.NoError(t, err)
		assert.Equal(t, "two", cfg.Command)
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after settings write")
	}
}

func TestWatchSettingsIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-settings.json")
	writeFile(t, path, `{"mcpServers":{}}`)

	reloaded := make(chan *docsmcp.Settings, 1)
	watcher, err := docsmcp.WatchSettings(path, func(s *docsmcp.Settings) {
		reloaded <- s
	})
	require.NoError(t, err)
	defer watcher.Close()

	writeFile(t, filepath.Join(dir, "unrelated.json"), `{}`)

	select {
	case <-reloaded:
		t.Fatal("reload triggered by an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatchSettingsCloseIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mcp-settings.json")
	writeFile(t, path, `{"mcpServers":{}}`)

	watcher, err := docsmcp.WatchSettings(path, func(*docsmcp.Settings) {})
	require.NoError(t, err)

	require.NoError(t, watcher.Close())
	require.NoError(t, watcher.Close())
}
