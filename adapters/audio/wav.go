package audio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-audio/wav"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
)

const wavFormatExtensible = 0xfffe

// WAVDecoder decodes integer PCM WAV files
type WAVDecoder struct{}

// NewWAVDecoder creates a new WAV decoder
func NewWAVDecoder() *WAVDecoder {
	return &WAVDecoder{}
}

// Decode implements repositories.AudioDecoder
func (d *WAVDecoder) Decode(data []byte) (*entities.DecodedAudio, error) {
	pcm, err := d.decode(data)
	if err != nil {
		return nil, &domain.DecodeError{Index: -1, Err: err}
	}
	return pcm, nil
}

func (d *WAVDecoder) decode(data []byte) (*entities.DecodedAudio, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("invalid wav file: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, errors.New("invalid wav file")
	}

	if dec.WavAudioFormat != 1 && dec.WavAudioFormat != wavFormatExtensible {
		return nil, fmt.Errorf("unsupported wav audio format %d", dec.WavAudioFormat)
	}

	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		return nil, errors.New("wav file has no channels")
	}

	toSample, err := sampleScaler(int(dec.BitDepth))
	if err != nil {
		return nil, err
	}

	return deinterleave(buf.Data, numChannels, buf.Format.SampleRate, toSample), nil
}

func sampleScaler(bitDepth int) (func(int) float32, error) {
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned with 128 as silence
		return func(n int) float32 { return float32(n-128) / 128 }, nil
	case 16:
		return int16ToSample, nil
	case 24:
		return scaleSigned(1 << 23), nil
	case 32:
		return scaleSigned(1 << 31), nil
	default:
		return nil, fmt.Errorf("unsupported wav bit depth %d", bitDepth)
	}
}

func scaleSigned(fullScale float64) func(int) float32 {
	return func(n int) float32 {
		if n < 0 {
			return float32(float64(n) / fullScale)
		}
		return float32(float64(n) / (fullScale - 1))
	}
}
