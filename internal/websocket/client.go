package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain/entities"
)

// SessionResult is what a completed narration session returns to the client
type SessionResult struct {
	SessionID string
	Segments  []*SegmentReadyMessage
	Narration *entities.Narration
	Audio     []byte
}

// NarrationClient drives one narration session against a running server
type NarrationClient struct {
	url    string
	token  string
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewNarrationClient creates a client for the websocket endpoint at url
func NewNarrationClient(url, token string, logger *zap.Logger) *NarrationClient {
	return &NarrationClient{
		url:    url,
		token:  token,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Narrate opens a connection, sends every segment in order and waits for the assembled audio
func (n *NarrationClient) Narrate(ctx context.Context, voice entities.Voice, segments []string) (*SessionResult, error) {
	headers := http.Header{}
	headers.Add("Authorization", "Bearer "+n.token)

	conn, resp, err := n.dialer.DialContext(ctx, n.url, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %s", n.url, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", n.url, err)
	}
	defer conn.Close()

	// Unblock reads when the context ends
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n.logger.Info("Connected to narration server", zap.String("url", n.url))

	if err := conn.WriteJSON(NarrationStartMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNarrationStart},
		Voice:       voice,
	}); err != nil {
		return nil, fmt.Errorf("failed to send narration start: %w", err)
	}

	var started NarrationStartedMessage
	if err := readReply(conn, MessageTypeNarrationStarted, &started); err != nil {
		return nil, err
	}

	result := &SessionResult{SessionID: started.SessionID}

	for i, text := range segments {
		if err := conn.WriteJSON(SegmentMessage{
			BaseMessage: BaseMessage{Type: MessageTypeSegment},
			Text:        text,
		}); err != nil {
			return nil, fmt.Errorf("failed to send segment %d: %w", i, err)
		}

		var ready SegmentReadyMessage
		if err := readReply(conn, MessageTypeSegmentReady, &ready); err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		result.Segments = append(result.Segments, &ready)

		n.logger.Info("Segment ready",
			zap.Int("index", ready.Index),
			zap.Float64("audioLength", ready.AudioLength))
	}

	if err := conn.WriteJSON(NarrationEndMessage{
		BaseMessage: BaseMessage{Type: MessageTypeNarrationEnd},
	}); err != nil {
		return nil, fmt.Errorf("failed to send narration end: %w", err)
	}

	var ready NarrationReadyMessage
	if err := readReply(conn, MessageTypeNarrationReady, &ready); err != nil {
		return nil, err
	}
	result.Narration = ready.Narration

	messageType, audio, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read narration audio: %w", err)
	}
	if messageType != websocket.BinaryMessage {
		return nil, fmt.Errorf("expected binary audio message, got type %d", messageType)
	}
	result.Audio = audio

	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		n.logger.Debug("Failed to send close message", zap.Error(err))
	}

	return result, nil
}

// readReply reads the next text message and decodes it into out when it has the wanted type.
// An error message from the server is returned as an error.
func readReply(conn *websocket.Conn, want MessageType, out interface{}) error {
	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", want, err)
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var base BaseMessage
		if err := json.Unmarshal(payload, &base); err != nil {
			return fmt.Errorf("invalid server message: %w", err)
		}

		switch base.Type {
		case want:
			if err := json.Unmarshal(payload, out); err != nil {
				return fmt.Errorf("invalid %s message: %w", want, err)
			}
			return nil
		case MessageTypeError:
			var msg ErrorMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				return fmt.Errorf("invalid error message: %w", err)
			}
			return fmt.Errorf("server error %s: %s", msg.Code, msg.Message)
		}
	}
}
