package tts

import (
	"context"
	"math"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/audio"
)

const (
	mockSampleRate    = 22050
	mockFramesPerRune = mockSampleRate * 60 / 1000 // 60ms per character
	mockMinFrames     = mockSampleRate / 5         // 200ms
	mockAmplitude     = 0.3
)

// MockTextToSpeech is an offline implementation for text-to-speech.
// It speaks every text as a sine tone whose pitch depends on the voice.
type MockTextToSpeech struct {
	logger *zap.Logger
}

// Ensure MockTextToSpeech implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*MockTextToSpeech)(nil)

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{
		logger: logger,
	}
}

// Generate implements repositories.TextToSpeech
func (t *MockTextToSpeech) Generate(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	voice = voice.OrDefault(entities.DefaultVoice)

	frames := max(utf8.RuneCountInString(text)*mockFramesPerRune, mockMinFrames)
	pcm := entities.NewDecodedAudio(1, frames, mockSampleRate)

	frequency := 180 + 20*float64(voice)
	for i := range pcm.Channels[0] {
		phase := 2 * math.Pi * frequency * float64(i) / mockSampleRate
		pcm.Channels[0][i] = float32(mockAmplitude * math.Sin(phase))
	}

	result := &entities.SynthesisResult{
		Audio:       audio.EncodeWAV(pcm),
		AudioLength: pcm.Duration(),
	}

	t.logger.Debug("Audio generated with mock provider",
		zap.String("text", text),
		zap.String("voiceId", voice.ID()),
		zap.Float64("audioLength", result.AudioLength))

	return result, nil
}

// ListAvailableVoices implements repositories.TextToSpeech
func (t *MockTextToSpeech) ListAvailableVoices() []entities.Voice {
	return entities.Voices()
}
