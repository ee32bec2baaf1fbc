package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ProviderElevenLabs, cfg.TTSProvider)
	assert.Equal(t, 60*time.Second, cfg.ElevenLabs.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, StorageMemory, cfg.NarrationStorage)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "narrator", cfg.Mongo.Database)
	assert.Equal(t, 24*time.Hour, cfg.NarrationTTL)
	assert.Equal(t, 30*time.Minute, cfg.NarrationCleanupInterval)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("TTS_PROVIDER", "Mock")
	t.Setenv("ELEVEN_LABS_API_KEY", "key")
	t.Setenv("ELEVEN_LABS_VOICE", "rachel")
	t.Setenv("ELEVEN_LABS_TIMEOUT", "5s")
	t.Setenv("NARRATION_STORAGE", "mongo")
	t.Setenv("MONGODB_DATABASE", "narrator_dev")
	t.Setenv("NARRATION_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, ProviderMock, cfg.TTSProvider)
	assert.Equal(t, "key", cfg.ElevenLabs.APIKey)
	assert.Equal(t, "rachel", cfg.ElevenLabs.Voice)
	assert.Equal(t, 5*time.Second, cfg.ElevenLabs.Timeout)
	assert.Equal(t, StorageMongo, cfg.NarrationStorage)
	assert.Equal(t, "narrator_dev", cfg.Mongo.Database)
	assert.Equal(t, time.Hour, cfg.NarrationTTL)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nLOG_LEVEL=debug\n"), 0o600))

	// godotenv does not override variables that are already set
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.env")

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown provider", "TTS_PROVIDER", "polly"},
		{"unknown storage", "NARRATION_STORAGE", "redis"},
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad duration", "NARRATION_TTL", "forever"},
		{"zero ttl", "NARRATION_TTL", "0s"},
		{"negative interval", "NARRATION_CLEANUP_INTERVAL", "-1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	cfg := &Config{LogLevel: "debug"}
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	cfg = &Config{LogLevel: "error"}
	logger, err = cfg.NewLogger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))

	cfg = &Config{LogLevel: "nope"}
	_, err = cfg.NewLogger()
	assert.Error(t, err)
}
