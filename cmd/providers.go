package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/adapters"
	"github.com/satriahrh/narrator/server/adapters/mongo"
	"github.com/satriahrh/narrator/server/adapters/tts"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/config"
)

// newTextToSpeech builds the configured speech provider and its default voice
func newTextToSpeech(cfg *config.Config, logger *zap.Logger) (repositories.TextToSpeech, entities.Voice, error) {
	switch cfg.TTSProvider {
	case config.ProviderMock:
		logger.Info("Using mock text-to-speech provider")
		voice, err := entities.ParseVoice(cfg.ElevenLabs.Voice)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid ELEVEN_LABS_VOICE: %w", err)
		}
		return tts.NewMockTextToSpeech(logger), voice.OrDefault(entities.DefaultVoice), nil

	default:
		elevenLabs, err := tts.NewElevenLabsTTS(cfg.ElevenLabs, logger)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create ElevenLabs client: %w", err)
		}
		return elevenLabs, elevenLabs.DefaultVoice(), nil
	}
}

// newNarrationRepository builds the configured storage. The returned close function releases it.
func newNarrationRepository(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.NarrationRepository, func(context.Context) error, error) {
	switch cfg.NarrationStorage {
	case config.StorageMongo:
		client, err := mongo.NewClient(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		return adapters.NewMongoNarrationRepository(client.Database, logger), client.Close, nil

	default:
		logger.Info("Using in-memory narration storage")
		return adapters.NewMemoryNarrationRepository(logger), func(context.Context) error { return nil }, nil
	}
}
