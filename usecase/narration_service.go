package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/audio"
)

// ErrNoSegments is returned when a narration is requested without any text
var ErrNoSegments = errors.New("narration requires at least one segment")

// NarrateRequest is a list of text segments spoken with one voice
type NarrateRequest struct {
	Segments []string       `json:"segments"`
	Voice    entities.Voice `json:"voice,omitempty"`
}

// NarrationService orchestrates synthesis, concatenation and storage of narrations
type NarrationService struct {
	textToSpeech repositories.TextToSpeech
	decoder      repositories.AudioDecoder
	narrations   repositories.NarrationRepository
	defaultVoice entities.Voice
	ttl          time.Duration
	logger       *zap.Logger
}

// NarrationOption customizes a NarrationService
type NarrationOption func(*NarrationService)

// WithNarrationTTL sets how long assembled audio is kept
func WithNarrationTTL(ttl time.Duration) NarrationOption {
	return func(s *NarrationService) {
		s.ttl = ttl
	}
}

// WithDefaultVoice sets the voice recorded when a request names none
func WithDefaultVoice(voice entities.Voice) NarrationOption {
	return func(s *NarrationService) {
		s.defaultVoice = voice
	}
}

// NewNarrationService creates a new narration service
func NewNarrationService(
	tts repositories.TextToSpeech,
	decoder repositories.AudioDecoder,
	narrations repositories.NarrationRepository,
	logger *zap.Logger,
	opts ...NarrationOption,
) *NarrationService {
	s := &NarrationService{
		textToSpeech: tts,
		decoder:      decoder,
		narrations:   narrations,
		defaultVoice: entities.DefaultVoice,
		ttl:          entities.DefaultNarrationTTL,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Synthesize speaks a single text
func (s *NarrationService) Synthesize(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error) {
	return s.textToSpeech.Generate(ctx, text, voice.OrDefault(s.defaultVoice))
}

// Narrate synthesizes every segment in order, joins the audio and stores the result
func (s *NarrationService) Narrate(ctx context.Context, req NarrateRequest) (*entities.Narration, error) {
	if len(req.Segments) == 0 {
		return nil, ErrNoSegments
	}

	narration := entities.NewNarration(req.Voice.OrDefault(s.defaultVoice), s.ttl)

	s.logger.Info("Starting narration",
		zap.String("voice", narration.Voice.String()),
		zap.Int("segments", len(req.Segments)))

	buffers := make([][]byte, 0, len(req.Segments))
	for i, text := range req.Segments {
		result, err := s.textToSpeech.Generate(ctx, text, narration.Voice)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize segment %d: %w", i, err)
		}
		narration.AddSegment(text, result)
		buffers = append(buffers, result.Audio)
	}

	return s.assemble(ctx, narration, buffers)
}

// Assemble joins already synthesized segments into a stored narration
func (s *NarrationService) Assemble(ctx context.Context, voice entities.Voice, texts []string, results []*entities.SynthesisResult) (*entities.Narration, error) {
	if len(results) == 0 {
		return nil, ErrNoSegments
	}
	if len(texts) != len(results) {
		return nil, fmt.Errorf("got %d texts for %d audio segments", len(texts), len(results))
	}

	narration := entities.NewNarration(voice.OrDefault(s.defaultVoice), s.ttl)
	buffers := make([][]byte, len(results))
	for i, result := range results {
		narration.AddSegment(texts[i], result)
		buffers[i] = result.Audio
	}

	return s.assemble(ctx, narration, buffers)
}

func (s *NarrationService) assemble(ctx context.Context, narration *entities.Narration, buffers [][]byte) (*entities.Narration, error) {
	joined, err := audio.Concat(ctx, s.decoder, buffers)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate narration audio: %w", err)
	}

	narration.SetAudio(joined, audio.DetectFormat(joined).ContentType())

	if err := s.narrations.Create(ctx, narration); err != nil {
		return nil, fmt.Errorf("failed to store narration: %w", err)
	}

	s.logger.Info("Narration ready",
		zap.String("narrationId", narration.ID),
		zap.Int("segments", len(narration.Segments)),
		zap.Float64("durationSeconds", narration.DurationSeconds),
		zap.String("contentType", narration.ContentType))

	return narration, nil
}

// Concat joins encoded audio buffers into one WAV buffer
func (s *NarrationService) Concat(ctx context.Context, buffers [][]byte) ([]byte, error) {
	return audio.Concat(ctx, s.decoder, buffers)
}

// Get retrieves a stored narration
func (s *NarrationService) Get(ctx context.Context, id string) (*entities.Narration, error) {
	if strings.TrimSpace(id) == "" {
		return nil, repositories.ErrNarrationNotFound
	}
	return s.narrations.GetByID(ctx, id)
}

// List retrieves the most recent narrations
func (s *NarrationService) List(ctx context.Context, limit int) ([]*entities.Narration, error) {
	return s.narrations.List(ctx, limit)
}

// Voices returns the voices offered by the provider
func (s *NarrationService) Voices() []entities.Voice {
	return s.textToSpeech.ListAvailableVoices()
}

// DefaultVoice returns the voice used when a request names none
func (s *NarrationService) DefaultVoice() entities.Voice {
	return s.defaultVoice
}
