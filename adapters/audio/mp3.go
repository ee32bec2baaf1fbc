package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
)

// go-mp3 always produces 16-bit little-endian stereo, duplicating mono input.
const (
	mp3OutputChannels = 2
	mp3BytesPerFrame  = mp3OutputChannels * 2

	id3HeaderSize   = 10
	channelModeMono = 3
)

// MP3Decoder decodes MPEG-1/2 layer III streams such as ElevenLabs' mp3_44100_128
type MP3Decoder struct{}

// NewMP3Decoder creates a new MP3 decoder
func NewMP3Decoder() *MP3Decoder {
	return &MP3Decoder{}
}

// Decode implements repositories.AudioDecoder
func (d *MP3Decoder) Decode(data []byte) (*entities.DecodedAudio, error) {
	pcm, err := d.decode(data)
	if err != nil {
		return nil, &domain.DecodeError{Index: -1, Err: err}
	}
	return pcm, nil
}

func (d *MP3Decoder) decode(data []byte) (*entities.DecodedAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to read mp3 samples: %w", err)
	}

	frames := len(raw) / mp3BytesPerFrame
	if frames == 0 {
		return nil, errors.New("mp3 stream has no audio frames")
	}

	channels := mp3ChannelCount(data)
	samples := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = int(int16(binary.LittleEndian.Uint16(raw[i*mp3BytesPerFrame+ch*2:])))
		}
	}

	return deinterleave(samples, channels, dec.SampleRate(), int16ToSample), nil
}

// mp3ChannelCount reads the channel mode of the first frame header after any ID3v2 tag.
// Streams whose header cannot be found are treated as stereo.
func mp3ChannelCount(data []byte) int {
	pos := 0
	if len(data) >= id3HeaderSize && bytes.Equal(data[:3], []byte("ID3")) {
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		pos = id3HeaderSize + size
		// footer present
		if data[5]&0x10 != 0 {
			pos += id3HeaderSize
		}
	}

	for ; pos+4 <= len(data); pos++ {
		if !isFrameHeader(data[pos : pos+4]) {
			continue
		}
		if data[pos+3]>>6 == channelModeMono {
			return 1
		}
		return mp3OutputChannels
	}
	return mp3OutputChannels
}

// isFrameHeader checks the sync word and rejects reserved version, layer, bitrate and sample rate bits.
func isFrameHeader(h []byte) bool {
	if h[0] != 0xff || h[1]&0xe0 != 0xe0 {
		return false
	}
	version := (h[1] >> 3) & 0x03
	layer := (h[1] >> 1) & 0x03
	bitrate := h[2] >> 4
	sampleRate := (h[2] >> 2) & 0x03
	return version != 1 && layer != 0 && bitrate != 0x0f && sampleRate != 0x03
}
