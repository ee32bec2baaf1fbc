package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024

	// Time allowed for one synthesis or assembly call.
	defaultRequestTimeout = 2 * time.Minute
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Narrator synthesizes segments and assembles them into stored narrations
type Narrator interface {
	Synthesize(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error)
	Assemble(ctx context.Context, voice entities.Voice, texts []string, results []*entities.SynthesisResult) (*entities.Narration, error)
}

// Hub maintains the set of active clients.
type Hub struct {
	// Registered clients, keyed by connection ID.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	narrator  Narrator
	validator *MessageValidator

	// Read deadline between pongs, and the limit on one narrator call.
	pongWait       time.Duration
	requestTimeout time.Duration

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(narrator Narrator, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		narrator:       narrator,
		validator:      NewMessageValidator(),
		pongWait:       defaultPongWait,
		requestTimeout: defaultRequestTimeout,
		logger:         logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled and closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("clientId", client.clientID),
				zap.String("connectionId", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered",
				zap.String("clientId", client.clientID),
				zap.String("connectionId", client.id))

		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.clients {
				client.cancel()
				client.conn.Close()
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.logger.Info("Hub stopped")
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// narrationSession accumulates synthesized segments until narration_end
type narrationSession struct {
	id      string
	voice   entities.Voice
	texts   []string
	results []*entities.SynthesisResult
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	hub *Hub

	// Connection ID
	id string

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	// Client ID from the authenticated token
	clientID string

	// Cancels in-flight synthesis when the connection goes away
	ctx    context.Context
	cancel context.CancelFunc

	logger *zap.Logger

	// Current narration, nil between sessions. Only touched by readPump.
	session *narrationSession
}

// HandleWebSocketWithAuth handles websocket requests with a pre-authenticated client ID
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, clientID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:      hub,
		id:       uuid.New().String(),
		conn:     conn,
		send:     make(chan WriteData, 256),
		clientID: clientID,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.With(zap.String("clientId", clientID)),
	}

	select {
	case hub.register <- client:
	case <-hub.done:
		cancel()
		conn.Close()
		return errors.New("websocket hub is not running")
	}

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	return nil
}

// readPump reads messages from the websocket connection and handles them in order.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	pongWait := c.hub.pongWait
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Pongs are not read while a narrator call runs
			c.conn.SetReadDeadline(time.Now().Add(c.hub.requestTimeout + pongWait))
			c.processMessage(message)
			c.conn.SetReadDeadline(time.Now().Add(pongWait))
		default:
			c.logger.Warn("Received unsupported message type", zap.Int("type", messageType))
			c.sendError("unsupported_message", "Only text messages are accepted", "")
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	// Ping period must be less than pongWait.
	ticker := time.NewTicker(c.hub.pongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage processes incoming messages from the client
func (c *Client) processMessage(message []byte) {
	msg, err := c.hub.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Invalid message", zap.Error(err))
		c.sendError("invalid_message", "Message could not be processed", err.Error())
		return
	}

	switch m := msg.(type) {
	case *NarrationStartMessage:
		c.handleNarrationStart(m)
	case *SegmentMessage:
		c.handleSegment(m)
	case *NarrationEndMessage:
		c.handleNarrationEnd()
	case *PingMessage:
		c.sendJSON(CreatePongMessage(m.Data))
	}
}

// handleNarrationStart opens a new narration, discarding any unfinished one
func (c *Client) handleNarrationStart(msg *NarrationStartMessage) {
	if c.session != nil {
		c.logger.Warn("Discarding unfinished narration",
			zap.String("sessionId", c.session.id),
			zap.Int("segments", len(c.session.results)))
	}

	c.session = &narrationSession{
		id:    uuid.New().String(),
		voice: msg.Voice,
	}

	c.logger.Info("Narration session started",
		zap.String("sessionId", c.session.id),
		zap.String("voice", msg.Voice.String()))

	c.sendJSON(CreateNarrationStartedMessage(c.session.id, msg.Voice))
}

// handleSegment synthesizes one segment of the open narration
func (c *Client) handleSegment(msg *SegmentMessage) {
	if c.session == nil {
		c.sendError("no_active_narration", "Send narration_start before segments", "")
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.requestTimeout)
	defer cancel()

	result, err := c.hub.narrator.Synthesize(ctx, msg.Text, c.session.voice)
	if err != nil {
		c.logger.Error("Failed to synthesize segment",
			zap.String("sessionId", c.session.id),
			zap.Int("index", len(c.session.results)),
			zap.Error(err))
		c.sendError(errorCode(err), "Failed to synthesize segment", err.Error())
		return
	}

	index := len(c.session.results)
	c.session.texts = append(c.session.texts, msg.Text)
	c.session.results = append(c.session.results, result)

	c.logger.Debug("Segment synthesized",
		zap.String("sessionId", c.session.id),
		zap.Int("index", index),
		zap.Float64("audioLength", result.AudioLength))

	c.sendJSON(CreateSegmentReadyMessage(c.session.id, index, result.AudioLength))
}

// handleNarrationEnd assembles and stores the narration, then streams its audio
func (c *Client) handleNarrationEnd() {
	if c.session == nil {
		c.sendError("no_active_narration", "Send narration_start before narration_end", "")
		return
	}

	session := c.session
	c.session = nil

	ctx, cancel := context.WithTimeout(c.ctx, c.hub.requestTimeout)
	defer cancel()

	narration, err := c.hub.narrator.Assemble(ctx, session.voice, session.texts, session.results)
	if err != nil {
		c.logger.Error("Failed to assemble narration",
			zap.String("sessionId", session.id),
			zap.Error(err))
		c.sendError(errorCode(err), "Failed to assemble narration", err.Error())
		return
	}

	c.logger.Info("Narration session completed",
		zap.String("sessionId", session.id),
		zap.String("narrationId", narration.ID),
		zap.Int("segments", len(narration.Segments)),
		zap.Int("sizeBytes", narration.SizeBytes))

	c.sendJSON(CreateNarrationReadyMessage(session.id, narration))
	c.send <- WriteData{
		Type:    websocket.BinaryMessage,
		Payload: narration.Audio,
	}
}

func (c *Client) sendJSON(v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	c.send <- WriteData{
		Type:    websocket.TextMessage,
		Payload: payload,
	}
}

func (c *Client) sendError(code, message, details string) {
	c.sendJSON(CreateErrorMessage(code, message, details))
}

// errorCode maps a failure to the error_code sent to clients
func errorCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, usecase.ErrNoSegments):
		return "no_segments"
	}

	switch domain.Kind(err) {
	case domain.KindConfiguration:
		return "configuration_error"
	case domain.KindRemote:
		return "remote_error"
	case domain.KindDecode:
		return "decode_error"
	default:
		return "internal_error"
	}
}
