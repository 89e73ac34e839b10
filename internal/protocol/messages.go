package protocol

import (
	"encoding/json"

	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/remote"
)

// OpCode represents the type of WebSocket message
type OpCode int

const (
	// Client -> Server operations
	OpIdentify    OpCode = 0 // Authenticate the connection
	OpHeartbeat   OpCode = 1 // Keep-alive ping
	OpSubscribe   OpCode = 2 // Start receiving channel appends
	OpUnsubscribe OpCode = 3 // Stop receiving channel appends

	// Server -> Client operations
	OpDispatch       OpCode = 10 // Event dispatch
	OpHeartbeatAck   OpCode = 11 // Heartbeat acknowledgment
	OpHello          OpCode = 12 // Initial connection info
	OpReady          OpCode = 13 // Successful authentication
	OpInvalidSession OpCode = 14 // Authentication failed
)

func (o OpCode) String() string {
	switch o {
	case OpIdentify:
		return "IDENTIFY"
	case OpHeartbeat:
		return "HEARTBEAT"
	case OpSubscribe:
		return "SUBSCRIBE"
	case OpUnsubscribe:
		return "UNSUBSCRIBE"
	case OpDispatch:
		return "DISPATCH"
	case OpHeartbeatAck:
		return "HEARTBEAT_ACK"
	case OpHello:
		return "HELLO"
	case OpReady:
		return "READY"
	case OpInvalidSession:
		return "INVALID_SESSION"
	default:
		return "UNKNOWN"
	}
}

// EventType represents the type of dispatched event
type EventType string

const (
	EventChannelAppended EventType = "CHANNEL_APPENDED"
)

// Message represents a WebSocket message envelope
type Message struct {
	Op   OpCode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
	Seq  *int64          `json:"s,omitempty"` // Log position for dispatches
	Type EventType       `json:"t,omitempty"` // Event type for dispatches
}

// NewMessage creates a new protocol message
func NewMessage(op OpCode, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, err
		}
	}
	return &Message{
		Op:   op,
		Data: rawData,
	}, nil
}

// NewDispatch creates a new dispatch message
func NewDispatch(eventType EventType, seq int64, data interface{}) (*Message, error) {
	msg, err := NewMessage(OpDispatch, data)
	if err != nil {
		return nil, err
	}
	msg.Seq = &seq
	msg.Type = eventType
	return msg, nil
}

// Decode unmarshals the message payload into v
func (m *Message) Decode(v interface{}) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// --- Client -> Server Payloads ---

// IdentifyPayload is sent by the client to authenticate
type IdentifyPayload struct {
	Token string `json:"token"`
}

// HeartbeatPayload is sent to keep the connection alive
type HeartbeatPayload struct {
	LastSequence *int64 `json:"last_sequence"`
}

// --- Server -> Client Payloads ---

// HelloPayload is sent on initial connection
type HelloPayload struct {
	HeartbeatInterval int `json:"heartbeat_interval"` // Milliseconds
}

// ReadyPayload is sent after successful authentication
type ReadyPayload struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

// InvalidSessionPayload explains a rejected IDENTIFY
type InvalidSessionPayload struct {
	Message string `json:"message"`
}

// ChannelAppendedPayload is dispatched for every channel in the log
type ChannelAppendedPayload struct {
	models.Channel
}

// --- REST bodies ---

// AccountRequest is the body of account creation and sign-in
type AccountRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by account creation and sign-in
type AuthResponse struct {
	Profile remote.Profile `json:"profile"`
	Token   string         `json:"token"`
}

// ErrorResponse is the body of every failed REST call
type ErrorResponse struct {
	Error string `json:"error"`
}

// CloseCode represents WebSocket close codes
type CloseCode int

const (
	CloseNormal           CloseCode = 1000
	CloseGoingAway        CloseCode = 1001
	CloseUnknownError     CloseCode = 4000
	CloseUnknownOpCode    CloseCode = 4001
	CloseDecodeError      CloseCode = 4002
	CloseNotAuthenticated CloseCode = 4003
	CloseAuthFailed       CloseCode = 4004
	CloseAlreadyAuth      CloseCode = 4005
)
