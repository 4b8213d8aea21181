package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesDocumentedValues(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
	assert.Equal(t, DefaultRegisteredPlayerLimit, cfg.RegisteredPlayerLimit)
	assert.Equal(t, MessageScopeServerWide, cfg.MessageScope)
}

func TestLoadWithNoFileAppliesOverrides(t *testing.T) {
	cfg, err := Load("", []string{"server_port:9090", "message_scope:game-only"})
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, MessageScopeGameOnly, cfg.MessageScope)
}

func TestLoadInvalidOverrideFormat(t *testing.T) {
	_, err := Load("", []string{"malformed-override"})
	assert.Error(t, err)
}

func TestLoadFileThenOverridesLayering(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("server_port=7000\nregistered_player_limit=42\n"), 0o644))

	cfg, err := Load(envFile, []string{"registered_player_limit:99"})
	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.ServerPort, "file value should apply")
	assert.Equal(t, 99, cfg.RegisteredPlayerLimit, "override should win over file")
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.PlayerIdleThreshMin, int(cfg.PlayerIdleThresh().Minutes()))
	assert.Equal(t, cfg.GameRetentionThreshMin, int(cfg.GameRetentionThresh().Minutes()))
}

func TestEnvFileExists(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.env")
	require.NoError(t, os.WriteFile(present, []byte(""), 0o644))
	assert.True(t, EnvFileExists(present))
	assert.False(t, EnvFileExists(filepath.Join(dir, "absent.env")))
}
