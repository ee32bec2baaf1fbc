// Package audio provides PCM decoders for the encoded buffers returned by speech providers.
package audio

import (
	"errors"
	"math"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/audio"
)

// ErrEmptyAudio is returned for zero-length payloads.
var ErrEmptyAudio = errors.New("empty audio payload")

// Decoder picks a container decoder by sniffing the payload.
// WAV files go to the WAV decoder; anything else is treated as MP3.
type Decoder struct {
	wav *WAVDecoder
	mp3 *MP3Decoder
}

// Ensure Decoder implements the AudioDecoder interface
var _ repositories.AudioDecoder = (*Decoder)(nil)

// NewDecoder creates a decoder for the containers ElevenLabs and this service produce.
func NewDecoder() *Decoder {
	return &Decoder{
		wav: NewWAVDecoder(),
		mp3: NewMP3Decoder(),
	}
}

// Decode implements repositories.AudioDecoder
func (d *Decoder) Decode(data []byte) (*entities.DecodedAudio, error) {
	if len(data) == 0 {
		return nil, &domain.DecodeError{Index: -1, Err: ErrEmptyAudio}
	}
	if audio.DetectFormat(data) == audio.FormatWAV {
		return d.wav.Decode(data)
	}
	return d.mp3.Decode(data)
}

// int16ToSample maps 16-bit PCM to a float sample that audio.SampleToInt16 maps back to n.
func int16ToSample(n int) float32 {
	if n < 0 {
		return float32(n) / 0x8000
	}
	s := float32(n) / 0x7fff
	if float64(s)*0x7fff < float64(n) {
		s = math.Nextafter32(s, 1)
	}
	return s
}

// deinterleave splits interleaved integer samples into planar float channels.
func deinterleave(data []int, numChannels, sampleRate int, toSample func(int) float32) *entities.DecodedAudio {
	frames := len(data) / numChannels
	pcm := entities.NewDecodedAudio(numChannels, frames, sampleRate)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChannels; ch++ {
			pcm.Channels[ch][i] = toSample(data[i*numChannels+ch])
		}
	}
	return pcm
}
