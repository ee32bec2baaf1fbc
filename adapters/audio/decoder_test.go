package audio

import (
	"context"
	"encoding/binary"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/internal/audio"
)

func randomPCM(rng *rand.Rand, channels, length, rate int) *entities.DecodedAudio {
	pcm := entities.NewDecodedAudio(channels, length, rate)
	for ch := range pcm.Channels {
		for i := range pcm.Channels[ch] {
			pcm.Channels[ch][i] = rng.Float32()*2 - 1
		}
	}
	return pcm
}

func TestWAVRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	decoder := NewDecoder()

	for _, shape := range []struct{ channels, length, rate int }{
		{1, 2205, 22050},
		{2, 4410, 44100},
		{3, 100, 8000},
	} {
		in := randomPCM(rng, shape.channels, shape.length, shape.rate)
		encoded := audio.EncodeWAV(in)

		out, err := decoder.Decode(encoded)
		require.NoError(t, err)

		assert.Equal(t, shape.rate, out.SampleRate)
		assert.Equal(t, shape.channels, out.NumberOfChannels())
		assert.Equal(t, shape.length, out.Length())
		assert.InDelta(t, in.Duration(), out.Duration(), 1e-9)

		for ch := range in.Channels {
			for i := range in.Channels[ch] {
				if diff := math.Abs(float64(in.Channels[ch][i] - out.Channels[ch][i])); diff > 1.0/32767 {
					t.Fatalf("channel %d sample %d: |%f - %f| exceeds 16-bit precision", ch, i, in.Channels[ch][i], out.Channels[ch][i])
				}
			}
		}

		assert.Equal(t, encoded, audio.EncodeWAV(out), "re-encoding decoded PCM must be bit-exact")
	}
}

func TestInt16ToSampleInvertsEncoder(t *testing.T) {
	for n := math.MinInt16; n <= math.MaxInt16; n++ {
		s := int16ToSample(n)
		if s < -1 || s > 1 {
			t.Fatalf("sample for %d out of range: %f", n, s)
		}
		if got := audio.SampleToInt16(s); int(got) != n {
			t.Fatalf("SampleToInt16(int16ToSample(%d)) = %d", n, got)
		}
	}
}

func TestConcatWAVBuffers(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	decoder := NewDecoder()

	a := audio.EncodeWAV(randomPCM(rng, 2, 300, 24000))
	b := audio.EncodeWAV(randomPCM(rng, 2, 120, 24000))

	out, err := audio.Concat(context.Background(), decoder, [][]byte{a, b})
	require.NoError(t, err)

	joined, err := decoder.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 420, joined.Length())
	assert.Equal(t, 2, joined.NumberOfChannels())
	assert.Equal(t, 24000, joined.SampleRate)

	// the PCM payload is the two inputs' payloads back to back
	assert.Equal(t, a[audio.HeaderSize:], out[audio.HeaderSize:audio.HeaderSize+len(a)-audio.HeaderSize])
	assert.Equal(t, b[audio.HeaderSize:], out[len(a):])
	assert.Equal(t, uint32(len(out)-audio.HeaderSize), binary.LittleEndian.Uint32(out[40:44]))
}

func TestConcatSingleBufferMatchesInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	decoder := NewDecoder()
	in := audio.EncodeWAV(randomPCM(rng, 1, 500, 16000))

	out, err := audio.Concat(context.Background(), decoder, [][]byte{in})
	require.NoError(t, err)

	before, err := decoder.Decode(in)
	require.NoError(t, err)
	after, err := decoder.Decode(out)
	require.NoError(t, err)

	assert.Equal(t, before.Length(), after.Length())
	assert.Equal(t, before.Duration(), after.Duration())
}

func readMonoMP3(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "speech_mono.mp3"))
	require.NoError(t, err)
	return data
}

func TestDecodeMonoMP3(t *testing.T) {
	out, err := NewDecoder().Decode(readMonoMP3(t))
	require.NoError(t, err)

	assert.Equal(t, 22050, out.SampleRate)
	assert.Equal(t, 1, out.NumberOfChannels())
	assert.Greater(t, out.Length(), 0)
	assert.Greater(t, out.Duration(), 0.0)
}

func TestConcatMP3Buffers(t *testing.T) {
	decoder := NewDecoder()
	mp3 := readMonoMP3(t)

	single, err := decoder.Decode(mp3)
	require.NoError(t, err)

	out, err := audio.Concat(context.Background(), decoder, [][]byte{mp3, mp3})
	require.NoError(t, err)
	assert.Equal(t, audio.FormatWAV, audio.DetectFormat(out))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(out[22:24]))

	joined, err := decoder.Decode(out)
	require.NoError(t, err)
	assert.Equal(t, 1, joined.NumberOfChannels())
	assert.Equal(t, single.SampleRate, joined.SampleRate)
	assert.Equal(t, 2*single.Length(), joined.Length())
	assert.Equal(t, audio.HeaderSize+2*single.Length()*2, len(out))
}

func TestMP3ChannelCount(t *testing.T) {
	id3 := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 2, 0xff, 0xfb}

	tests := []struct {
		name string
		data []byte
		want int
	}{
		{"stereo", []byte{0xff, 0xfb, 0x90, 0x00}, 2},
		{"joint stereo", []byte{0xff, 0xfb, 0x90, 0x40}, 2},
		{"mono", []byte{0xff, 0xfb, 0x90, 0xc0}, 1},
		{"mono after id3", append(append([]byte{}, id3...), 0xff, 0xf3, 0x60, 0xc4), 1},
		{"reserved bitrate skipped", []byte{0xff, 0xfb, 0xf0, 0xc0, 0xff, 0xfb, 0x90, 0x00}, 2},
		{"no header", []byte("not an mp3"), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mp3ChannelCount(tt.data))
		})
	}
}

func TestDecodeEightBitWAV(t *testing.T) {
	data := []byte{0x00, 0x80, 0xff, 0x80}
	header := audio.EncodeWAV(entities.NewDecodedAudio(1, 0, 8000))[:audio.HeaderSize]
	wav := append([]byte{}, header...)
	le := binary.LittleEndian
	le.PutUint32(wav[4:8], uint32(36+len(data)))
	le.PutUint32(wav[28:32], 8000)
	le.PutUint16(wav[32:34], 1)
	le.PutUint16(wav[34:36], 8)
	le.PutUint32(wav[40:44], uint32(len(data)))
	wav = append(wav, data...)

	out, err := NewDecoder().Decode(wav)
	require.NoError(t, err)
	require.Equal(t, 4, out.Length())
	assert.Equal(t, []float32{-1, 0, 127.0 / 128, 0}, out.Channels[0])
}

func TestDecodeInvalidPayloads(t *testing.T) {
	decoder := NewDecoder()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an audio file")},
		{"truncated wav", []byte("RIFF\x00\x00\x00\x00WAVEfmt ")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := decoder.Decode(tt.data)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, domain.KindDecode, domain.Kind(err))
		})
	}
}
