package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Size of client send buffer
	sendBufferSize = 1024

	// Heartbeat interval sent to client
	heartbeatInterval = 45000 // 45 seconds in milliseconds
)

// Client represents a connected WebSocket client
type Client struct {
	// The WebSocket connection
	conn *websocket.Conn

	// The hub this client subscribes through
	hub *Hub

	// Buffered channel of outbound frames
	send chan outbound

	// Closed once the connection is gone; senders select on it
	done      chan struct{}
	closeOnce sync.Once

	// closing is set by the read goroutine once it queued a close frame
	closing bool

	// Set after IDENTIFY
	UserID    string
	SessionID string

	authenticated bool
	authMu        sync.RWMutex

	auth Authenticator
	log  logging.Logger
}

// outbound is a queued frame: a message, or a close frame when close is set
type outbound struct {
	msg   *protocol.Message
	close *closeFrame
}

type closeFrame struct {
	code   protocol.CloseCode
	reason string
}

// Authenticator resolves a bearer token to the signed in user
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Claims, error)
}

// NewClient creates a new client instance
func NewClient(conn *websocket.Conn, hub *Hub, auth Authenticator, log logging.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		send: make(chan outbound, sendBufferSize),
		done: make(chan struct{}),
		auth: auth,
		log:  log,
	}
}

// ReadPump pumps messages from the WebSocket connection to the handlers
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Unsubscribe(c)
		if c.closing {
			// let WritePump flush the close frame
			select {
			case <-c.done:
			case <-time.After(writeWait):
			}
		}
		c.shutdown()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Warn(ctx, "websocket read failed", "error", err)
			}
			return
		}

		// Any traffic counts as liveness
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn(ctx, "failed to parse message", "error", err)
			c.closeWith(protocol.CloseDecodeError, "invalid message format")
			return
		}

		if !c.handleMessage(ctx, &msg) {
			return
		}
	}
}

// WritePump pumps messages from the send buffer to the WebSocket connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case out := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if out.close != nil {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(int(out.close.code), out.close.reason))
				c.shutdown()
				return
			}

			data, err := json.Marshal(out.msg)
			if err != nil {
				c.log.Error(ctx, "failed to marshal message", "error", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug(ctx, "failed to write message", "error", err)
				c.shutdown()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}

		case <-c.done:
			return
		}
	}
}

// SendHello sends the initial HELLO message
func (c *Client) SendHello() {
	msg, _ := protocol.NewMessage(protocol.OpHello, &protocol.HelloPayload{
		HeartbeatInterval: heartbeatInterval,
	})
	c.Send(msg)
}

// handleMessage processes an incoming message based on its opcode. Returns
// false when the connection should be closed.
func (c *Client) handleMessage(ctx context.Context, msg *protocol.Message) bool {
	switch msg.Op {
	case protocol.OpIdentify:
		return c.handleIdentify(ctx, msg)

	case protocol.OpHeartbeat:
		ack, _ := protocol.NewMessage(protocol.OpHeartbeatAck, nil)
		c.Send(ack)

	case protocol.OpSubscribe:
		if !c.IsAuthenticated() {
			c.closeWith(protocol.CloseNotAuthenticated, "not authenticated")
			return false
		}
		c.hub.Subscribe(c)

	case protocol.OpUnsubscribe:
		c.hub.Unsubscribe(c)

	default:
		c.log.Warn(ctx, "unknown opcode", "op", int(msg.Op))
		c.closeWith(protocol.CloseUnknownOpCode, "unknown operation")
		return false
	}
	return true
}

// handleIdentify processes the IDENTIFY message for authentication
func (c *Client) handleIdentify(ctx context.Context, msg *protocol.Message) bool {
	c.authMu.Lock()
	defer c.authMu.Unlock()

	if c.authenticated {
		c.closeWith(protocol.CloseAlreadyAuth, "already authenticated")
		return false
	}

	var payload protocol.IdentifyPayload
	if err := msg.Decode(&payload); err != nil {
		c.closeWith(protocol.CloseDecodeError, "invalid identify payload")
		return false
	}

	claims, err := c.auth.Authenticate(ctx, payload.Token)
	if err != nil {
		c.log.Info(ctx, "websocket authentication failed", "error", err)
		c.sendInvalidSession(err)
		return false
	}

	c.UserID = claims.UserID
	c.SessionID = uuid.NewString()
	c.authenticated = true

	ready, _ := protocol.NewMessage(protocol.OpReady, &protocol.ReadyPayload{
		SessionID: c.SessionID,
		UserID:    c.UserID,
	})
	c.Send(ready)

	c.log.Info(ctx, "client identified", "uid", c.UserID, "session", c.SessionID)
	return true
}

// sendInvalidSession tells the client its token was rejected, then closes
func (c *Client) sendInvalidSession(err error) {
	msg, _ := protocol.NewMessage(protocol.OpInvalidSession, &protocol.InvalidSessionPayload{
		Message: authErrorMessage(err),
	})
	c.Send(msg)
	c.closeWith(protocol.CloseAuthFailed, "authentication failed")
}

// closeWith queues a close frame behind any pending messages. Only called
// from the read goroutine.
func (c *Client) closeWith(code protocol.CloseCode, reason string) {
	c.closing = true
	select {
	case c.send <- outbound{close: &closeFrame{code: code, reason: reason}}:
	default:
		c.shutdown()
	}
}

// Send queues a message without blocking. A full buffer means the client is
// too slow to keep up; it is disconnected.
func (c *Client) Send(msg *protocol.Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- outbound{msg: msg}:
		return true
	case <-c.done:
		return false
	default:
		c.shutdown()
		return false
	}
}

// sendWait queues a message, waiting for buffer space until the client
// disconnects or ctx ends
func (c *Client) sendWait(ctx context.Context, msg *protocol.Message) bool {
	select {
	case c.send <- outbound{msg: msg}:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// IsAuthenticated returns whether the client is authenticated
func (c *Client) IsAuthenticated() bool {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.authenticated
}

// Done is closed once the client disconnects
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
