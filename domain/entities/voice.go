package entities

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Voice is a synthetic speaker offered by ElevenLabs.
// The zero value means "not chosen" and resolves to the configured default.
type Voice int

const (
	VoiceRachel Voice = iota + 1
	VoiceFinn
	VoiceDrew
	VoiceClayde
	VoicePaul
	VoiceAria
	VoiceDomi
	VoiceDave
	VoiceRoger
	VoiceFin
)

// DefaultVoice is used when a request does not name a voice.
const DefaultVoice = VoiceFinn

type voiceInfo struct {
	name string
	id   string
}

var voiceTable = map[Voice]voiceInfo{
	VoiceRachel: {"rachel", "21m00Tcm4TlvDq8ikWAM"},
	VoiceFinn:   {"finn", "vBKc2FfBKJfcZNyEt1n6"},
	VoiceDrew:   {"drew", "29vD33N1CtxCmqQRPOHJ"},
	VoiceClayde: {"clayde", "2EiwWnXFnvU5JabPnv8n"},
	VoicePaul:   {"paul", "5Q0t7uMcjvnagumLfvZi"},
	VoiceAria:   {"aria", "9BWtsMINqrJLrRacOk9x"},
	VoiceDomi:   {"domi", "AZnzlk1XvdvUeBnXmlld"},
	VoiceDave:   {"dave", "CYw3kZ02Hs0563khs1Fj"},
	VoiceRoger:  {"roger", "CwhRBWXzGAHq8TQ4Fs17"},
	VoiceFin:    {"fin", "D38z5RcWu1voky8WS1ja"},
}

// Voices returns every known voice in declaration order.
func Voices() []Voice {
	return lo.RangeFrom(VoiceRachel, len(voiceTable))
}

// String returns the symbolic name, e.g. "rachel".
func (v Voice) String() string {
	if info, ok := voiceTable[v]; ok {
		return info.name
	}
	return fmt.Sprintf("Voice(%d)", int(v))
}

// ID returns the provider-specific voice identifier.
func (v Voice) ID() string {
	return voiceTable[v].id
}

// IsValid reports whether v is one of the known voices.
func (v Voice) IsValid() bool {
	_, ok := voiceTable[v]
	return ok
}

// OrDefault returns v, or DefaultVoice when v is unset.
func (v Voice) OrDefault(fallback Voice) Voice {
	if v.IsValid() {
		return v
	}
	if fallback.IsValid() {
		return fallback
	}
	return DefaultVoice
}

// ParseVoice accepts either a symbolic name (case-insensitive) or a provider id.
// An empty string yields the zero Voice without error.
func ParseVoice(s string) (Voice, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	for v, info := range voiceTable {
		if strings.EqualFold(info.name, s) || info.id == s {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown voice %q", s)
}

// MarshalText encodes the voice by name.
func (v Voice) MarshalText() ([]byte, error) {
	if v == 0 {
		return []byte{}, nil
	}
	if !v.IsValid() {
		return nil, fmt.Errorf("unknown voice %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText decodes a voice name or provider id.
func (v *Voice) UnmarshalText(text []byte) error {
	parsed, err := ParseVoice(string(text))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
