package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/adapters/audio"
	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultOutputFormat = "mp3_44100_128"          // MP3 44.1kHz 128kbps
	defaultModelID      = "eleven_multilingual_v2" // Default model ID
	maxErrorBodySize    = 1024
)

// ElevenLabsConfig holds configuration for the ElevenLabsTTS adapter
// Required fields:
// - APIKey: Your Eleven Labs API key
// Optional fields with defaults:
// - APIBaseURL: The base URL for the Eleven Labs API (default: "https://api.elevenlabs.io/v1")
// - ModelID: The model ID to use (default: "eleven_multilingual_v2")
// - OutputFormat: The output codec (default: "mp3_44100_128")
// - Voice: Voice name or provider ID used when a call names none (default: "finn")
// - Timeout: HTTP client timeout when no client is injected (default: 60s, 0 disables)
type ElevenLabsConfig struct {
	APIKey       string        `env:"API_KEY"`
	APIBaseURL   string        `env:"API_BASE_URL"`
	ModelID      string        `env:"MODEL_ID"`
	OutputFormat string        `env:"OUTPUT_FORMAT"`
	Voice        string        `env:"VOICE"`
	Timeout      time.Duration `env:"TIMEOUT" envDefault:"60s"`
}

// ElevenLabsTTS implements TextToSpeech interface using Eleven Labs API
type ElevenLabsTTS struct {
	apiKey       string
	apiBaseURL   string
	modelID      string
	outputFormat string
	voice        entities.Voice
	httpClient   *http.Client
	decoder      repositories.AudioDecoder
	logger       *zap.Logger
}

// Ensure ElevenLabsTTS implements the TextToSpeech interface
var _ repositories.TextToSpeech = (*ElevenLabsTTS)(nil)

// ElevenLabsRequest represents the request payload for Eleven Labs TTS API
type ElevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Option customizes an ElevenLabsTTS
type Option func(*ElevenLabsTTS)

// WithHTTPClient replaces the HTTP client used to reach the API
func WithHTTPClient(client *http.Client) Option {
	return func(e *ElevenLabsTTS) {
		e.httpClient = client
	}
}

// WithDecoder replaces the decoder used to measure audio duration
func WithDecoder(decoder repositories.AudioDecoder) Option {
	return func(e *ElevenLabsTTS) {
		e.decoder = decoder
	}
}

// ValidateElevenLabsConfig validates the ElevenLabsConfig
func ValidateElevenLabsConfig(config ElevenLabsConfig) error {
	if strings.TrimSpace(config.APIKey) == "" {
		return domain.NewConfigurationError("ElevenLabs API key is required")
	}

	if _, err := entities.ParseVoice(config.Voice); err != nil {
		return domain.NewConfigurationError("invalid default voice: %v", err)
	}

	if config.Timeout < 0 {
		return domain.NewConfigurationError("timeout must not be negative, got %s", config.Timeout)
	}

	if config.APIBaseURL != "" {
		if _, err := url.ParseRequestURI(config.APIBaseURL); err != nil {
			return domain.NewConfigurationError("invalid API base URL: %v", err)
		}
	}

	return nil
}

// NewElevenLabsTTS creates a new Eleven Labs TTS instance
func NewElevenLabsTTS(config ElevenLabsConfig, logger *zap.Logger, opts ...Option) (*ElevenLabsTTS, error) {
	// Validate required configuration
	if err := ValidateElevenLabsConfig(config); err != nil {
		return nil, err
	}

	// Apply defaults where needed
	apiBaseURL := strings.TrimRight(config.APIBaseURL, "/")
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
		logger.Debug("Using default API base URL", zap.String("apiBaseURL", apiBaseURL))
	}

	modelID := config.ModelID
	if modelID == "" {
		modelID = defaultModelID
		logger.Debug("Using default model ID", zap.String("modelID", modelID))
	}

	outputFormat := config.OutputFormat
	if outputFormat == "" {
		outputFormat = defaultOutputFormat
		logger.Debug("Using default output format", zap.String("outputFormat", outputFormat))
	}

	voice, _ := entities.ParseVoice(config.Voice)
	voice = voice.OrDefault(entities.DefaultVoice)

	e := &ElevenLabsTTS{
		apiKey:       config.APIKey,
		apiBaseURL:   apiBaseURL,
		modelID:      modelID,
		outputFormat: outputFormat,
		voice:        voice,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.httpClient == nil {
		e.httpClient = &http.Client{Timeout: config.Timeout}
	}
	if e.decoder == nil {
		e.decoder = audio.NewDecoder()
	}

	return e, nil
}

// NewElevenLabsConfigFromEnv reads ELEVEN_LABS_* environment variables into an ElevenLabsConfig
func NewElevenLabsConfigFromEnv() (ElevenLabsConfig, error) {
	return env.ParseAsWithOptions[ElevenLabsConfig](env.Options{Prefix: "ELEVEN_LABS_"})
}

// Generate converts text to speech using Eleven Labs API.
// The encoded audio is returned untouched; it is decoded only to measure its length.
func (e *ElevenLabsTTS) Generate(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error) {
	voice = voice.OrDefault(e.voice)

	result, err := e.generate(ctx, text, voice)
	if err != nil {
		e.logger.Error("Failed to generate audio with ElevenLabs",
			zap.Error(err),
			zap.String("text", text),
			zap.String("voiceId", voice.ID()))
		return nil, err
	}

	e.logger.Debug("Audio generated with ElevenLabs",
		zap.String("text", text),
		zap.String("voiceId", voice.ID()),
		zap.Float64("audioLength", result.AudioLength))

	return result, nil
}

func (e *ElevenLabsTTS) generate(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error) {
	requestBody, err := json.Marshal(ElevenLabsRequest{
		Text:    text,
		ModelID: e.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.speechURL(voice), bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	httpReq.Header.Set("Accept", "audio/mpeg")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, &domain.RemoteError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
			Body:       string(errorBody),
		}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	decoded, err := e.decoder.Decode(audioData)
	if err != nil {
		var decodeErr *domain.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, err
		}
		return nil, &domain.DecodeError{Index: -1, Err: err}
	}

	return &entities.SynthesisResult{
		Audio:       audioData,
		AudioLength: decoded.Duration(),
	}, nil
}

func (e *ElevenLabsTTS) speechURL(voice entities.Voice) string {
	return fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s",
		e.apiBaseURL, url.PathEscape(voice.ID()), url.QueryEscape(e.outputFormat))
}

// ListAvailableVoices returns every voice this adapter can request
func (e *ElevenLabsTTS) ListAvailableVoices() []entities.Voice {
	return entities.Voices()
}

// DefaultVoice returns the voice used when a call names none
func (e *ElevenLabsTTS) DefaultVoice() entities.Voice {
	return e.voice
}

// statusText returns the reason phrase of resp, e.g. "Unauthorized".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
