package entities

// SynthesisRequest is one text segment to be spoken with one voice.
type SynthesisRequest struct {
	Text  string `json:"text"`
	Voice Voice  `json:"voice,omitempty"`
}

// SynthesisResult carries the provider's encoded audio untouched, plus its
// duration measured by decoding it.
type SynthesisResult struct {
	Audio       []byte  `json:"-"`
	AudioLength float64 `json:"audio_length"`
}

// DecodedAudio is planar PCM: one float32 slice per channel, samples in [-1, 1].
// All channels have the same length.
type DecodedAudio struct {
	SampleRate int
	Channels   [][]float32
}

// NewDecodedAudio allocates silent PCM of the given shape.
func NewDecodedAudio(numberOfChannels, length, sampleRate int) *DecodedAudio {
	channels := make([][]float32, numberOfChannels)
	for i := range channels {
		channels[i] = make([]float32, length)
	}
	return &DecodedAudio{
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// NumberOfChannels returns the channel count.
func (a *DecodedAudio) NumberOfChannels() int {
	return len(a.Channels)
}

// Length returns the number of frames, taken from the first channel.
func (a *DecodedAudio) Length() int {
	if len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// Duration returns the length in seconds.
func (a *DecodedAudio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Length()) / float64(a.SampleRate)
}
