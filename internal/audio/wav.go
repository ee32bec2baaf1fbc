// Package audio assembles decoded speech into a single PCM WAV buffer.
package audio

import (
	"encoding/binary"

	"github.com/satriahrh/narrator/server/domain/entities"
)

// WAV format constants.
const (
	// HeaderSize is the size of the canonical WAV header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1

	// BitsPerSample is the only sample width produced by EncodeWAV.
	BitsPerSample = 16

	bytesPerSample = BitsPerSample / 8
)

// EncodeWAV serializes planar PCM into a 16-bit little-endian PCM WAV file.
//
// Negative samples are scaled by 32768 and non-negative ones by 32767, then
// truncated toward zero. Input outside [-1, 1] wraps around instead of clipping.
func EncodeWAV(pcm *entities.DecodedAudio) []byte {
	numChannels := pcm.NumberOfChannels()
	frames := pcm.Length()
	dataSize := frames * numChannels * bytesPerSample

	buf := make([]byte, HeaderSize+dataSize)
	le := binary.LittleEndian

	// RIFF header
	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt subchunk
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], FormatPCM)
	le.PutUint16(buf[22:24], uint16(numChannels))
	le.PutUint32(buf[24:28], uint32(pcm.SampleRate))
	le.PutUint32(buf[28:32], uint32(pcm.SampleRate*bytesPerSample*numChannels))
	le.PutUint16(buf[32:34], uint16(numChannels*bytesPerSample))
	le.PutUint16(buf[34:36], BitsPerSample)

	// data subchunk
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataSize))

	offset := HeaderSize
	for i := 0; i < frames; i++ {
		for ch := 0; ch < numChannels; ch++ {
			le.PutUint16(buf[offset:offset+2], uint16(SampleToInt16(pcm.Channels[ch][i])))
			offset += bytesPerSample
		}
	}

	return buf
}

// SampleToInt16 converts one float sample to 16-bit PCM.
func SampleToInt16(s float32) int16 {
	v := float64(s)
	if v < 0 {
		v *= 0x8000
	} else {
		v *= 0x7fff
	}
	// int64 truncates toward zero; narrowing to int16 wraps like a 16-bit store.
	return int16(int64(v))
}
