package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/protocol"
	"github.com/concord-chat/devchat/internal/remote"
)

const (
	writeWait      = 10 * time.Second
	readWait       = 90 * time.Second
	maxMessageSize = 512 * 1024
)

// Connection represents a WebSocket connection to the server
type Connection struct {
	conn *websocket.Conn
	log  logging.Logger

	// Called from the read goroutine for every dispatch, one at a time
	onDispatch func(*protocol.Message)

	send      chan *protocol.Message
	done      chan struct{}
	closeOnce sync.Once

	// Receives the outcome of IDENTIFY: nil on READY, an error on INVALID_SESSION
	ready chan error

	mu                sync.RWMutex
	sessionID         string
	lastSeq           int64
	heartbeatInterval time.Duration
}

// Dial connects to the websocket endpoint at url and starts the pumps
func Dial(ctx context.Context, url string, log logging.Logger, onDispatch func(*protocol.Message)) (*Connection, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	c := &Connection{
		conn:       conn,
		log:        log,
		onDispatch: onDispatch,
		send:       make(chan *protocol.Message, 64),
		done:       make(chan struct{}),
		ready:      make(chan error, 1),
	}

	go c.readPump()
	go c.writePump()
	return c, nil
}

// Identify authenticates the connection and waits for the server's answer
func (c *Connection) Identify(ctx context.Context, token string) error {
	msg, err := protocol.NewMessage(protocol.OpIdentify, &protocol.IdentifyPayload{Token: token})
	if err != nil {
		return err
	}
	if err := c.Send(msg); err != nil {
		return err
	}

	select {
	case err := <-c.ready:
		return err
	case <-c.done:
		// the server closes right after INVALID_SESSION
		select {
		case err := <-c.ready:
			return err
		default:
		}
		return fmt.Errorf("connection closed during identify")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe asks the server to replay and stream channel appends
func (c *Connection) Subscribe() error {
	msg, _ := protocol.NewMessage(protocol.OpSubscribe, nil)
	return c.Send(msg)
}

// Unsubscribe stops channel appends on this connection
func (c *Connection) Unsubscribe() error {
	msg, _ := protocol.NewMessage(protocol.OpUnsubscribe, nil)
	return c.Send(msg)
}

// Send queues a message to be sent
func (c *Connection) Send(msg *protocol.Message) error {
	select {
	case <-c.done:
		return fmt.Errorf("not connected")
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("not connected")
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Done is closed when the connection is gone
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// SessionID returns the id assigned by READY
func (c *Connection) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// LastSequence returns the log position of the last dispatch received
func (c *Connection) LastSequence() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeq
}

// Close closes the connection
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		c.conn.Close()
	})
}

// readPump reads messages from the WebSocket
func (c *Connection) readPump() {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPingHandler(func(data string) error {
		c.conn.SetReadDeadline(time.Now().Add(readWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn(context.Background(), "websocket closed", "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readWait))

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.log.Warn(context.Background(), "failed to parse message", "error", err)
			continue
		}

		c.handleMessage(&msg)
	}
}

// writePump writes messages to the WebSocket
func (c *Connection) writePump() {
	for {
		select {
		case msg := <-c.send:
			data, err := json.Marshal(msg)
			if err != nil {
				c.log.Error(context.Background(), "failed to marshal message", "error", err)
				continue
			}

			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug(context.Background(), "failed to write message", "error", err)
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

// handleMessage processes incoming messages
func (c *Connection) handleMessage(msg *protocol.Message) {
	switch msg.Op {
	case protocol.OpHello:
		var payload protocol.HelloPayload
		if err := msg.Decode(&payload); err != nil || payload.HeartbeatInterval <= 0 {
			c.log.Warn(context.Background(), "bad hello payload", "error", err)
			return
		}
		c.mu.Lock()
		c.heartbeatInterval = time.Duration(payload.HeartbeatInterval) * time.Millisecond
		c.mu.Unlock()
		go c.heartbeat()

	case protocol.OpHeartbeatAck:
		// connection is healthy

	case protocol.OpReady:
		var payload protocol.ReadyPayload
		msg.Decode(&payload)
		c.mu.Lock()
		c.sessionID = payload.SessionID
		c.mu.Unlock()
		c.signalReady(nil)

	case protocol.OpInvalidSession:
		var payload protocol.InvalidSessionPayload
		msg.Decode(&payload)
		if payload.Message == "" {
			payload.Message = remote.MsgCredentialTooOld
		}
		c.signalReady(remote.NewError("identify", payload.Message))

	case protocol.OpDispatch:
		if msg.Seq != nil {
			c.mu.Lock()
			c.lastSeq = *msg.Seq
			c.mu.Unlock()
		}
		if c.onDispatch != nil {
			c.onDispatch(msg)
		}
	}
}

func (c *Connection) signalReady(err error) {
	select {
	case c.ready <- err:
	default:
	}
}

// heartbeat sends HEARTBEAT at the interval the server asked for
func (c *Connection) heartbeat() {
	c.mu.RLock()
	interval := c.heartbeatInterval
	c.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			seq := c.LastSequence()
			msg, err := protocol.NewMessage(protocol.OpHeartbeat, &protocol.HeartbeatPayload{LastSequence: &seq})
			if err != nil {
				continue
			}
			c.Send(msg)
		case <-c.done:
			return
		}
	}
}
