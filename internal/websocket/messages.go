package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/satriahrh/narrator/server/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Client to server
	MessageTypeNarrationStart MessageType = "narration_start"
	MessageTypeSegment        MessageType = "segment"
	MessageTypeNarrationEnd   MessageType = "narration_end"
	MessageTypePing           MessageType = "ping"

	// Server to client
	MessageTypeNarrationStarted MessageType = "narration_started"
	MessageTypeSegmentReady     MessageType = "segment_ready"
	MessageTypeNarrationReady   MessageType = "narration_ready"
	MessageTypePong             MessageType = "pong"
	MessageTypeError            MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
	MessageID string      `json:"message_id,omitempty"`
}

// NarrationStartMessage opens a narration session
type NarrationStartMessage struct {
	BaseMessage
	Voice entities.Voice `json:"voice,omitempty"`
}

// SegmentMessage carries one text segment to synthesize
type SegmentMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// NarrationEndMessage closes a narration session and requests the assembled audio
type NarrationEndMessage struct {
	BaseMessage
}

// PingMessage represents a ping message for connection health check
type PingMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// PongMessage represents a pong response
type PongMessage struct {
	BaseMessage
	Data string `json:"data,omitempty"`
}

// NarrationStartedMessage acknowledges a narration session
type NarrationStartedMessage struct {
	BaseMessage
	SessionID string         `json:"session_id"`
	Voice     entities.Voice `json:"voice"`
}

// SegmentReadyMessage reports a synthesized segment
type SegmentReadyMessage struct {
	BaseMessage
	SessionID   string  `json:"session_id"`
	Index       int     `json:"index"`
	AudioLength float64 `json:"audio_length"`
}

// NarrationReadyMessage carries the stored narration record.
// The assembled audio follows as one binary message.
type NarrationReadyMessage struct {
	BaseMessage
	SessionID string              `json:"session_id"`
	Narration *entities.Narration `json:"narration"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage validates an incoming message
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	// First parse as base message to get type
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	// Validate specific message type
	switch base.Type {
	case MessageTypeNarrationStart:
		var msg NarrationStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid narration start message: %w", err)
		}
		return &msg, nil

	case MessageTypeSegment:
		var msg SegmentMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid segment message: %w", err)
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, fmt.Errorf("text is required")
		}
		return &msg, nil

	case MessageTypeNarrationEnd:
		var msg NarrationEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid narration end message: %w", err)
		}
		return &msg, nil

	case MessageTypePing:
		var msg PingMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid ping message: %w", err)
		}
		return &msg, nil

	case "":
		return nil, fmt.Errorf("type is required")

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func newBaseMessage(t MessageType) BaseMessage {
	return BaseMessage{
		Type:      t,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message, details string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: newBaseMessage(MessageTypeError),
		Code:        code,
		Message:     message,
		Details:     details,
	}
}

// CreatePongMessage creates a pong response message
func CreatePongMessage(data string) *PongMessage {
	return &PongMessage{
		BaseMessage: newBaseMessage(MessageTypePong),
		Data:        data,
	}
}

// CreateNarrationStartedMessage creates a narration started acknowledgement
func CreateNarrationStartedMessage(sessionID string, voice entities.Voice) *NarrationStartedMessage {
	return &NarrationStartedMessage{
		BaseMessage: newBaseMessage(MessageTypeNarrationStarted),
		SessionID:   sessionID,
		Voice:       voice,
	}
}

// CreateSegmentReadyMessage creates a segment ready notification
func CreateSegmentReadyMessage(sessionID string, index int, audioLength float64) *SegmentReadyMessage {
	return &SegmentReadyMessage{
		BaseMessage: newBaseMessage(MessageTypeSegmentReady),
		SessionID:   sessionID,
		Index:       index,
		AudioLength: audioLength,
	}
}

// CreateNarrationReadyMessage creates a narration ready notification
func CreateNarrationReadyMessage(sessionID string, narration *entities.Narration) *NarrationReadyMessage {
	return &NarrationReadyMessage{
		BaseMessage: newBaseMessage(MessageTypeNarrationReady),
		SessionID:   sessionID,
		Narration:   narration,
	}
}
