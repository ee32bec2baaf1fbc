package repositories

import (
	"context"

	"github.com/satriahrh/narrator/server/domain/entities"
)

// TextToSpeech abstracts a speech synthesis provider
type TextToSpeech interface {
	// Generate speaks text with voice and returns the provider's encoded audio and its duration.
	// A zero voice selects the provider's default voice.
	Generate(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error)
	// ListAvailableVoices returns the voices this provider can speak with
	ListAvailableVoices() []entities.Voice
}
