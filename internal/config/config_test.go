package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "uistudio", cfg.App.Name)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 1000, cfg.Client.DebounceMillis)
	assert.Equal(t, 10, cfg.Client.RequestTimeoutSeconds)
	assert.Contains(t, cfg.Preview.ReactURL, "react@18.3.1")
	assert.True(t, cfg.Client.AutoSave)
}

func TestAutoSaveFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[client]\nauto_save = false\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Client.AutoSave)

	t.Setenv("UISTUDIO_AUTO_SAVE", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Client.AutoSave)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[app]
port = 9090

[mysql]
db = "from_file"
user = "studio"

[generation]
rate_limit_rps = 2.5
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("APP_PORT", "7070")
	t.Setenv("GENERATION_RATE_LIMIT_BURST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, 2.5, cfg.Generation.RateLimitRPS)
	assert.Equal(t, 5, cfg.Generation.RateLimitBurst)
	assert.Contains(t, cfg.MySQLDSN(), "studio:@tcp(127.0.0.1:3306)/from_file?")
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[app\nport = "), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}
