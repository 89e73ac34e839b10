package client

import (
	"context"
	"errors"
	"sync"

	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/protocol"
	"github.com/concord-chat/devchat/internal/remote"
)

// ConnectionState represents the state of the channel stream
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateReady
	StateReconnecting
	StateError
)

// String returns a human-readable string representation of the connection state
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateReady:
		return "Ready"
	case StateReconnecting:
		return "Reconnecting"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Stream is the websocket half of remote.ChannelStream. Writes go through
// the REST API; appends arrive over a websocket subscription that is
// re-established with backoff when it drops.
type Stream struct {
	api      *API
	log      logging.Logger
	strategy *ReconnectStrategy

	mu      sync.Mutex
	onState func(ConnectionState, error)
}

// NewStream creates a stream over api. A nil strategy uses the default.
func NewStream(api *API, strategy *ReconnectStrategy, log logging.Logger) *Stream {
	if strategy == nil {
		strategy = DefaultReconnectStrategy()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Stream{api: api, log: log, strategy: strategy}
}

// OnState registers fn to hear about connection state changes. It replaces
// any previous callback.
func (s *Stream) OnState(fn func(ConnectionState, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onState = fn
}

func (s *Stream) setState(state ConnectionState, err error) {
	s.mu.Lock()
	fn := s.onState
	s.mu.Unlock()
	if fn != nil {
		fn(state, err)
	}
}

// NewKey implements remote.ChannelStream
func (s *Stream) NewKey() string {
	return s.api.NewKey()
}

// Write implements remote.ChannelStream
func (s *Stream) Write(ctx context.Context, key string, ch models.Channel) error {
	return s.api.Write(ctx, key, ch)
}

// SubscribeAppended implements remote.ChannelStream. It returns once the
// server has accepted the subscription; the existing log and later appends
// are then handed to fn one at a time.
func (s *Stream) SubscribeAppended(ctx context.Context, fn func(models.Channel)) (remote.Subscription, error) {
	sub := &streamSubscription{stream: s, fn: fn, stop: make(chan struct{})}

	s.setState(StateConnecting, nil)
	conn, err := sub.open(ctx)
	if err != nil {
		s.setState(StateError, err)
		return nil, err
	}
	s.setState(StateReady, nil)

	sub.mu.Lock()
	sub.conn = conn
	sub.mu.Unlock()

	go sub.watch(conn)
	return sub, nil
}

type streamSubscription struct {
	stream *Stream
	fn     func(models.Channel)

	stop     chan struct{}
	stopOnce sync.Once

	mu   sync.Mutex
	conn *Connection
}

func (sub *streamSubscription) open(ctx context.Context) (*Connection, error) {
	token := sub.stream.api.Token()
	if token == "" {
		return nil, remote.NewError("subscribe", remote.MsgNotSignedIn)
	}

	conn, err := Dial(ctx, wsURL(sub.stream.api.BaseURL()), sub.stream.log, sub.dispatch)
	if err != nil {
		return nil, remote.NewError("subscribe", "A network error has occurred. Check that the server is reachable.")
	}
	if err := conn.Identify(ctx, token); err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Subscribe(); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (sub *streamSubscription) dispatch(msg *protocol.Message) {
	if msg.Type != protocol.EventChannelAppended {
		return
	}
	select {
	case <-sub.stop:
		return
	default:
	}

	var payload protocol.ChannelAppendedPayload
	if err := msg.Decode(&payload); err != nil {
		sub.stream.log.Warn(context.Background(), "bad channel payload", "error", err)
		return
	}
	sub.fn(payload.Channel)
}

// watch waits for conn to drop and reconnects until stopped. A rejected
// IDENTIFY ends the loop since retrying the same token cannot succeed.
func (sub *streamSubscription) watch(conn *Connection) {
	ctx := context.Background()
	for {
		select {
		case <-conn.Done():
		case <-sub.stop:
			return
		}
		select {
		case <-sub.stop:
			return
		default:
		}

		sub.stream.log.Warn(ctx, "channel stream dropped, reconnecting")
		sub.stream.setState(StateReconnecting, nil)

		var err error
		conn, err = sub.reconnect(ctx)
		if conn == nil {
			if err != nil {
				sub.stream.log.Error(ctx, "channel stream lost", "error", err)
				sub.stream.setState(StateError, err)
			}
			return
		}

		sub.mu.Lock()
		sub.conn = conn
		sub.mu.Unlock()
		sub.stream.setState(StateReady, nil)
	}
}

func (sub *streamSubscription) reconnect(ctx context.Context) (*Connection, error) {
	var lastErr error
	for attempt := 0; sub.stream.strategy.ShouldRetry(attempt); attempt++ {
		if !sub.stream.strategy.Wait(ctx, sub.stop, attempt) {
			return nil, nil
		}

		conn, err := sub.open(ctx)
		if err == nil {
			select {
			case <-sub.stop:
				conn.Close()
				return nil, nil
			default:
			}
			return conn, nil
		}

		lastErr = err
		var rerr *remote.Error
		if errors.As(err, &rerr) && rerr.Op == "identify" {
			return nil, err
		}
		sub.stream.log.Debug(ctx, "reconnect attempt failed", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// Unsubscribe implements remote.Subscription
func (sub *streamSubscription) Unsubscribe() {
	sub.stopOnce.Do(func() {
		close(sub.stop)

		sub.mu.Lock()
		conn := sub.conn
		sub.conn = nil
		sub.mu.Unlock()

		if conn != nil {
			conn.Unsubscribe()
			conn.Close()
		}
		sub.stream.setState(StateDisconnected, nil)
	})
}
