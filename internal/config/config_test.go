package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
[server]
base_url = "https://assets.example.com/world/"

[assets]
workers = 4
strict_components = true

[redis]
enabled = true
ttl = "2m"
`), "inline")
	require.NoError(t, err)

	assert.Equal(t, "https://assets.example.com/world/", cfg.Server.BaseURL)
	assert.Equal(t, 50*time.Millisecond, cfg.Server.TickRate)
	assert.Equal(t, 4, cfg.Assets.Workers)
	assert.True(t, cfg.Assets.StrictComponents)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Minute, cfg.Redis.TTL)
	assert.Equal(t, "objectd:asset:", cfg.Redis.Prefix)
	assert.Empty(t, cfg.Database.DSN)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestParseRejectsInvalid(t *testing.T) {
	for name, src := range map[string]string{
		"syntax":  `[server`,
		"workers": "[assets]\nworkers = 0",
		"tick":    "[server]\ntick_rate = \"0s\"",
		"profile": "[profile]\nmode = \"block\"",
		"base":    "[server]\nbase_url = \"\"",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(src), name)
			assert.Error(t, err)
		})
	}
}

func TestLoadAndPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objectd.toml")
	require.NoError(t, os.WriteFile(path, []byte("[logging]\nlevel = \"debug\"\n"), 0o644))

	t.Setenv(EnvPath, path)
	assert.Equal(t, path, Path())

	cfg, err := Load(Path())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
