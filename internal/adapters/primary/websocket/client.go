package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lorrc/severino-relay/internal/core/domain"
)

// ClientConfig holds per-connection transport settings.
type ClientConfig struct {
	// Depth of the outbound frame buffer.
	SendBufferSize int

	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration

	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration

	// Maximum message size allowed from peer.
	MaxMessageSize int64
}

// DefaultClientConfig returns the transport settings used when nothing is
// configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBufferSize: 64,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 1024,
	}
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	// ID is the opaque connection handle.
	ID uuid.UUID

	// Identity captured at handshake; never re-verified.
	Identity domain.Identity

	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of encoded outbound frames.
	send chan []byte

	// closeOnce ensures the send channel is only closed once
	closeOnce sync.Once

	cfg    ClientConfig
	logger *slog.Logger
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, identity domain.Identity, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = DefaultClientConfig().SendBufferSize
	}
	id := uuid.New()
	return &Client{
		ID:       id,
		Identity: identity,
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, cfg.SendBufferSize),
		cfg:      cfg,
		logger: logger.With(
			"connection_id", id.String(),
			"user_id", identity.UserID,
		),
	}
}

// closeSend closes the send channel exactly once. Callers hold the hub's
// write lock.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Start runs the read and write pumps in their own goroutines.
func (c *Client) Start() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump reads control frames and client pings until the connection
// closes, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
			c.logger.Error("failed to set read deadline in pong handler", "error", err)
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump drains the send channel to the connection and keeps it alive
// with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// --- Incoming Message Handling ---

// ClientMessage is the structure for messages sent from the browser.
// Rooms are never chosen by the client; only keep-alive pings are honoured.
type ClientMessage struct {
	Type string `json:"type"`
}

var pongFrame = mustFrame(domain.Message{Event: domain.EventPong})

func (c *Client) handleIncomingMessage(message []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("ignoring malformed client message", "error", err)
		return
	}

	switch msg.Type {
	case "ping":
		c.hub.SendToClient(c, pongFrame)
	default:
		c.logger.Debug("ignoring client message", "type", msg.Type)
	}
}

// ReadyFrame builds the frame announcing a registered connection.
func ReadyFrame(client *Client, rooms []string) []byte {
	return mustFrame(domain.Message{
		Event: domain.EventConnectionReady,
		Payload: map[string]any{
			"connectionId": client.ID.String(),
			"userId":       client.Identity.UserID,
			"rooms":        rooms,
		},
	})
}

func mustFrame(msg domain.Message) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return data
}
