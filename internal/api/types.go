package api

import (
	"github.com/satriahrh/narrator/server/domain/entities"
)

// SpeechRequest represents the request payload for single text synthesis
type SpeechRequest struct {
	Text  string         `json:"text"`
	Voice entities.Voice `json:"voice,omitempty"`
}

// NarrationRequest represents the request payload for creating a narration
type NarrationRequest struct {
	Segments []string       `json:"segments"`
	Voice    entities.Voice `json:"voice,omitempty"`
}

// VoiceResponse describes one available voice
type VoiceResponse struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Default bool   `json:"default,omitempty"`
}

// NarrationListResponse wraps a page of narrations
type NarrationListResponse struct {
	Narrations []*entities.Narration `json:"narrations"`
	Count      int                   `json:"count"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
