/*
Package chat contains the core logic of the real-time session and delivery layer.

This file defines the Client struct, representing one authenticated WebSocket
connection. It owns the read/write pumps and dispatches the typed protocol
events. Inbound events are processed strictly in arrival order on the read
pump goroutine, which is what guarantees per-connection send ordering.
*/
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxFrameSize = 8192

	// MaxMessageBytes is the maximum allowed size of message text.
	MaxMessageBytes = 5000

	// storeOpTimeout bounds each store-backed operation issued on behalf of
	// an inbound event, so one stuck query cannot pin the read pump forever.
	storeOpTimeout = 10 * time.Second
)

// Client represents one live transport session, owned by exactly one user
// identity bound at authentication time and never reassigned.
type Client struct {
	// id is an ephemeral handle identifying this connection in the Presence
	// registry and in logs.
	id string

	gateway     *Gateway
	coordinator *Coordinator

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// user is the authenticated owner of this connection.
	user user.User

	// send queues outbound frames for the write pump.
	send chan []byte

	// mu guards closed so no goroutine enqueues into a closed channel.
	mu     sync.Mutex
	closed bool

	logger zerolog.Logger
}

// NewClient constructs a Client for an already-authenticated connection.
func NewClient(gateway *Gateway, coordinator *Coordinator, wsConn *websocket.Conn, u user.User) *Client {
	connID := randx.ConnectionID()

	clientLogger := logx.Logger().With().
		Str("connection_id", connID).
		Int64("user_id", u.ID).
		Logger()

	return &Client{
		id:          connID,
		gateway:     gateway,
		coordinator: coordinator,
		conn:        wsConn,
		user:        u,
		send:        make(chan []byte, 256),
		logger:      clientLogger,
	}
}

// ID returns the ephemeral connection identifier.
func (c *Client) ID() string {
	return c.id
}

// User returns the identity bound to this connection.
func (c *Client) User() user.User {
	return c.user
}

// ReadPump reads frames from the WebSocket connection and dispatches them one
// at a time. It handles heartbeats (Pong) and performs full teardown when the
// transport closes or errors.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxFrameSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, messageBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (client close/going away)")
			}
			break
		}

		c.processInboundEvent(messageBytes)
	}
}

// cleanupOnDisconnect removes the connection from every room and the Presence
// registry, then closes the transport.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	c.gateway.Disconnect(c)

	if err := c.conn.Close(); err != nil {
		c.logger.Error().Err(err).Msg("Client connection close error")
	}
}

// processInboundEvent decodes the envelope and dispatches on the event tag.
// The tag set is closed; anything else is reported back as invalid.
func (c *Client) processInboundEvent(messageBytes []byte) {
	var env Envelope
	if err := json.Unmarshal(messageBytes, &env); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	switch env.Type {
	case EventJoinRoom:
		c.handleJoinRoom(ctx, env.Payload)

	case EventLeaveRoom:
		c.handleLeaveRoom(env.Payload)

	case EventSendMessage:
		c.handleSendMessage(ctx, env.Payload)

	case EventTyping:
		c.handleTyping(ctx, env.Payload)

	default:
		c.logger.Warn().Str("event_type", string(env.Type)).Msg("Client sent unsupported event type")
		c.SendError(errs.NewError(errs.ErrInvalidParams))
	}
}

func (c *Client) handleJoinRoom(ctx context.Context, payloadBytes json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if joinErr := c.gateway.Join(ctx, c, payload.RoomID); joinErr != nil {
		c.SendError(joinErr)
		return
	}

	c.SendEvent(NewServerEvent(EventJoined, RoomPayload{RoomID: payload.RoomID}))
}

func (c *Client) handleLeaveRoom(payloadBytes json.RawMessage) {
	var payload RoomPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.gateway.Leave(c, payload.RoomID)
	c.SendEvent(NewServerEvent(EventLeft, RoomPayload{RoomID: payload.RoomID}))
}

// handleSendMessage runs the full persist-then-broadcast flow and returns an
// acknowledgment to the sender. Because this runs synchronously on the read
// pump, two sends from this connection can never pipeline or reorder.
func (c *Client) handleSendMessage(ctx context.Context, payloadBytes json.RawMessage) {
	var payload SendMessagePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	msg, sendErr := c.coordinator.Send(ctx, c.user, payload.RoomID, payload.Text)
	if sendErr != nil {
		c.SendEvent(NewServerEvent(EventAck, AckPayload{
			Status: AckStatusError,
			TempID: payload.TempID,
			Reason: sendErr.Message,
		}))
		return
	}

	c.SendEvent(NewServerEvent(EventAck, AckPayload{
		Status:  AckStatusOK,
		TempID:  payload.TempID,
		Message: &msg,
	}))
}

func (c *Client) handleTyping(ctx context.Context, payloadBytes json.RawMessage) {
	var payload TypingPayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil {
		c.SendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if typingErr := c.coordinator.Typing(ctx, c.user, payload.RoomID, payload.IsTyping); typingErr != nil {
		c.SendError(typingErr)
	}
}

// WritePump writes queued frames to the WebSocket connection and keeps the
// heartbeat alive. It owns all socket writes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		if err := c.conn.Close(); err != nil {
			c.logger.Error().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage writes one frame pulled from the send channel.
// Returns false when the write pump should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Error().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Error().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

// writePingMessage sends a periodic Ping to maintain the heartbeat.
// Returns false when the write pump should terminate.
func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Error().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// enqueue queues a pre-marshaled frame without blocking. Returns false when
// the queue is full or the connection is already closed.
func (c *Client) enqueue(messageBytes []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.send <- messageBytes:
		return true
	default:
		return false
	}
}

// closeSend closes the send channel exactly once. Further enqueues become
// no-ops, which is how an in-flight Publish safely misses a departing
// connection.
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// SendEvent marshals and queues an event for this connection.
func (c *Client) SendEvent(event ServerEvent) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Error marshaling event for client")
		return
	}

	if !c.enqueue(messageBytes) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping event")
	}
}

// SendError queues a structured error event for this connection only.
func (c *Client) SendError(customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	c.SendEvent(NewServerEvent(EventError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	}))
}
