package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carevox/internal/nlu"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "OPENAI_API_KEY", "CAREVOX_NLU", "CAREVOX_MODEL", "CAREVOX_DATA_DIR", "CAREVOX_BUS_URL", "CAREVOX_HTTP_ADDR"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noEnvFile(t *testing.T) string {
	return "--env=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g-key")

	c, err := Load([]string{noEnvFile(t)})
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, c.Backend)
	assert.Equal(t, nlu.DefaultGeminiModel, c.Model)
	assert.Equal(t, "g-key", c.APIKey)
	assert.Equal(t, 30*time.Second, c.Tick)
	assert.Equal(t, 15*time.Minute, c.Lead)
	assert.Equal(t, 20*time.Second, c.NLUTimeout)
	assert.True(t, c.Notifications)
}

func TestEnvFileAndPrecedence(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"OPENAI_API_KEY=o-key\nCAREVOX_NLU=openai\nCAREVOX_DATA_DIR=/from/env\nCAREVOX_HTTP_ADDR=:9000\n",
	), 0o600))

	c, err := Load([]string{"--env", envFile, "--data", "/from/flag", "--tick", "5s"})
	require.NoError(t, err)

	assert.Equal(t, BackendOpenAI, c.Backend)
	assert.Equal(t, "o-key", c.APIKey)
	assert.Equal(t, nlu.DefaultOpenAIModel, c.Model)
	assert.Equal(t, "/from/flag", c.DataDir)
	assert.Equal(t, ":9000", c.HTTPAddr)
	assert.Equal(t, 5*time.Second, c.Tick)
}

func TestMissingKey(t *testing.T) {
	clearEnv(t)

	_, err := Load([]string{noEnvFile(t)})
	assert.ErrorContains(t, err, "GEMINI_API_KEY not set")
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "g")

	_, err := Load([]string{noEnvFile(t), "--nlu", "llama"})
	assert.ErrorContains(t, err, `unknown nlu backend "llama"`)

	_, err = Load([]string{noEnvFile(t), "--tick", "10ms", "--lead", "0s"})
	assert.ErrorContains(t, err, "shorter than 1s")
	assert.ErrorContains(t, err, "must be positive")
}

func TestBadFlag(t *testing.T) {
	clearEnv(t)
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}
