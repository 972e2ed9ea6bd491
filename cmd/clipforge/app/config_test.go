package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]string{"clipforge"}, "/work")
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 1, cfg.MaxConcurrent)
	assert.Equal(t, "/work/data", cfg.DataDir)
	assert.Equal(t, "/work/prompts", cfg.PromptDir)
	assert.Equal(t, "ffmpeg", cfg.FFmpegPath)
}

func TestLoadConfigFlags(t *testing.T) {
	args := []string{"clipforge", "--port", "9000", "--datadir", "/var/lib/clipforge", "--maxconcurrent", "2"}
	cfg, err := LoadConfig(args, "/work")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "/var/lib/clipforge", cfg.DataDir)
	assert.Equal(t, 2, cfg.MaxConcurrent)
}

func TestLoadConfigEnvOverridesFlags(t *testing.T) {
	t.Setenv("CLIPFORGE_PORT", "9999")
	t.Setenv("CLIPFORGE_LOGLEVEL", "debug")
	args := []string{"clipforge", "--port", "9000"}
	cfg, err := LoadConfig(args, "/work")
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigBadFlag(t *testing.T) {
	_, err := LoadConfig([]string{"clipforge", "--nosuchflag"}, "/work")
	assert.Error(t, err)
}
