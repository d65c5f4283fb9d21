package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, []string{"npx", "tsc", "--noEmit", "--pretty", "false", "--incremental"}, cfg.CheckerCommand)
	assert.Equal(t, 60, cfg.CheckTimeoutSecs)
	assert.Equal(t, "pnpm", cfg.PackageManager)
	assert.True(t, cfg.WriteMigrations)
	assert.Equal(t, "supabase/migrations", cfg.MigrationsDir)
	assert.True(t, cfg.EnableCompileCheck)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope", "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesKeepUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"package_manager: yarn\ncheck_timeout_secs: 5\nenable_compile_check: false\n",
	), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "yarn", cfg.PackageManager)
	assert.Equal(t, 5, cfg.CheckTimeoutSecs)
	assert.False(t, cfg.EnableCompileCheck)
	// Unset fields keep defaults.
	assert.Equal(t, "supabase/migrations", cfg.MigrationsDir)
	assert.True(t, cfg.WriteMigrations)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("package_manager: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestSaveRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	in := Default()
	in.PackageManager = "bun"
	in.RemoteEndpoint = "https://api.example.com"
	require.NoError(t, in.Save(path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
