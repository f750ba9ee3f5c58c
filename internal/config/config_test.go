package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SIMWATCH_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.APIURL)
	assert.Equal(t, 2*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, "jsonl", cfg.JournalFormat)
	assert.Equal(t, "ws://localhost:8000/ws/simulation/abc", cfg.FeedURL("abc"))
	assert.Equal(t, "localhost:8080", cfg.DashboardAddr())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "simwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_url: https://sim.example.com
ws_url: wss://sim.example.com/
reconnect_delay: 500ms
journal_format: sqlite
dashboard_port: 9090
`), 0o644))

	t.Setenv("SIMWATCH_CONFIG", path)
	t.Setenv("DASHBOARD_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://sim.example.com", cfg.APIURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay)
	assert.Equal(t, "sqlite", cfg.JournalFormat)
	assert.Equal(t, 9191, cfg.DashboardPort)
	assert.Equal(t, "wss://sim.example.com/ws/simulation/x", cfg.FeedURL("x"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"ws scheme for api", func(c *Config) { c.APIURL = "ws://localhost:8000" }, true},
		{"http scheme for feed", func(c *Config) { c.WSURL = "http://localhost:8000" }, true},
		{"missing host", func(c *Config) { c.APIURL = "http://" }, true},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }, true},
		{"bad journal format", func(c *Config) { c.JournalFormat = "csv" }, true},
		{"zero rate", func(c *Config) { c.RequestsPerSec = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
