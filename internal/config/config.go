package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/satriahrh/narrator/server/adapters/mongo"
	"github.com/satriahrh/narrator/server/adapters/tts"
)

// Supported TTS providers
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderMock       = "mock"
)

// Supported narration storages
const (
	StorageMemory = "memory"
	StorageMongo  = "mongo"
)

// Config holds the server configuration read from the environment
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	TTSProvider string               `env:"TTS_PROVIDER" envDefault:"elevenlabs"`
	ElevenLabs  tts.ElevenLabsConfig `envPrefix:"ELEVEN_LABS_"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	NarrationStorage         string        `env:"NARRATION_STORAGE" envDefault:"memory"`
	Mongo                    mongo.Config
	NarrationTTL             time.Duration `env:"NARRATION_TTL" envDefault:"24h"`
	NarrationCleanupInterval time.Duration `env:"NARRATION_CLEANUP_INTERVAL" envDefault:"30m"`
}

// Load reads the given env files, or .env when present, and parses the environment into a Config.
// Explicitly named files must exist.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that env parsing cannot
func (c *Config) Validate() error {
	c.TTSProvider = strings.ToLower(strings.TrimSpace(c.TTSProvider))
	switch c.TTSProvider {
	case ProviderElevenLabs, ProviderMock:
	default:
		return fmt.Errorf("unsupported TTS_PROVIDER %q, expected %s or %s", c.TTSProvider, ProviderElevenLabs, ProviderMock)
	}

	c.NarrationStorage = strings.ToLower(strings.TrimSpace(c.NarrationStorage))
	switch c.NarrationStorage {
	case StorageMemory, StorageMongo:
	default:
		return fmt.Errorf("unsupported NARRATION_STORAGE %q, expected %s or %s", c.NarrationStorage, StorageMemory, StorageMongo)
	}

	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive, got %s", c.JWTTTL)
	}
	if c.NarrationTTL <= 0 {
		return fmt.Errorf("NARRATION_TTL must be positive, got %s", c.NarrationTTL)
	}
	if c.NarrationCleanupInterval <= 0 {
		return fmt.Errorf("NARRATION_CLEANUP_INTERVAL must be positive, got %s", c.NarrationCleanupInterval)
	}

	return nil
}

// NewLogger builds a production logger at the configured level,
// or a development logger when the level is debug
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}
