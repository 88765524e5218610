package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_DefaultsAppliedWhenFileAbsent(t *testing.T) {
	_, cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gridconnect", cfg.Transport.Kind)
	assert.Equal(t, "pool", cfg.Executor.Kind)
	assert.Equal(t, ":8787", cfg.Monitor.BindAddr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
node:
  node_id: "01.02.03.04.05.06"
transport:
  kind: spican
  bitrate: 500000
executor:
  kind: inline
`)
	_, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "spican", cfg.Transport.Kind)
	assert.Equal(t, 500000, cfg.Transport.Bitrate)
	assert.Equal(t, "inline", cfg.Executor.Kind)

	nid, err := cfg.Node.ParsedNodeID()
	require.NoError(t, err)
	assert.Equal(t, "01.02.03.04.05.06", nid.String())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "executor:\n  kind: inline\n")
	t.Setenv("LCC_EXECUTOR_KIND", "pool")

	_, cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "pool", cfg.Executor.Kind)
}

func TestWatchAndReload_InvokesHookOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "executor:\n  kind: inline\n")

	loader, _, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan NodeProfile, 1)
	loader.OnChange(func(cfg NodeProfile) { reloaded <- cfg })
	loader.WatchAndReload()

	// Give the watcher time to start before mutating the file.
	time.Sleep(50 * time.Millisecond)
	writeConfig(t, dir, "executor:\n  kind: pool\n")

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "pool", cfg.Executor.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
