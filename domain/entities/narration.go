package entities

import (
	"errors"
	"time"

	"github.com/samber/lo"
)

// NarrationStatus represents the lifecycle state of a stored narration
type NarrationStatus string

const (
	NarrationStatusReady   NarrationStatus = "ready"
	NarrationStatusExpired NarrationStatus = "expired"
)

// DefaultNarrationTTL is how long assembled audio is kept when no TTL is configured
const DefaultNarrationTTL = 24 * time.Hour

// NarrationSegment is one synthesized piece of a narration
type NarrationSegment struct {
	Text        string  `json:"text" bson:"text"`
	AudioLength float64 `json:"audio_length" bson:"audio_length"`
	SizeBytes   int     `json:"size_bytes" bson:"size_bytes"`
}

// Narration is a set of text segments spoken with one voice and assembled into one audio buffer
type Narration struct {
	ID              string             `json:"id" bson:"-"`
	Voice           Voice              `json:"voice" bson:"voice"`
	Segments        []NarrationSegment `json:"segments" bson:"segments"`
	ContentType     string             `json:"content_type" bson:"content_type"`
	Audio           []byte             `json:"-" bson:"audio,omitempty"`
	DurationSeconds float64            `json:"duration_seconds" bson:"duration_seconds"`
	SizeBytes       int                `json:"size_bytes" bson:"size_bytes"`
	Status          NarrationStatus    `json:"status" bson:"status"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	ExpiresAt       time.Time          `json:"expires_at" bson:"expires_at"`
}

// NewNarration creates a ready narration expiring ttl from now
func NewNarration(voice Voice, ttl time.Duration) *Narration {
	if ttl <= 0 {
		ttl = DefaultNarrationTTL
	}
	now := time.Now()
	return &Narration{
		Voice:     voice,
		Segments:  make([]NarrationSegment, 0),
		Status:    NarrationStatusReady,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// AddSegment records a synthesized segment
func (n *Narration) AddSegment(text string, result *SynthesisResult) {
	n.Segments = append(n.Segments, NarrationSegment{
		Text:        text,
		AudioLength: result.AudioLength,
		SizeBytes:   len(result.Audio),
	})
}

// SetAudio attaches the assembled audio buffer
func (n *Narration) SetAudio(audio []byte, contentType string) {
	n.Audio = audio
	n.ContentType = contentType
	n.SizeBytes = len(audio)
	n.DurationSeconds = lo.SumBy(n.Segments, func(s NarrationSegment) float64 {
		return s.AudioLength
	})
}

// IsExpired checks if the narration audio is no longer available
func (n *Narration) IsExpired(now time.Time) bool {
	return n.Status == NarrationStatusExpired || now.After(n.ExpiresAt)
}

// Expire marks the narration as expired and releases its audio
func (n *Narration) Expire() {
	n.Status = NarrationStatusExpired
	n.Audio = nil
}

// Validate validates the narration data
func (n *Narration) Validate() error {
	if !n.Voice.IsValid() {
		return errors.New("voice is required")
	}
	if len(n.Segments) == 0 {
		return errors.New("at least one segment is required")
	}
	if n.Status != NarrationStatusReady && n.Status != NarrationStatusExpired {
		return errors.New("invalid narration status")
	}
	return nil
}
