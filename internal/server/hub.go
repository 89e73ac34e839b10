package server

import (
	"context"

	"github.com/concord-chat/devchat/internal/database"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/protocol"
)

// ChannelLog is the stored channel log the hub replays to new subscribers
type ChannelLog interface {
	ListChannels(ctx context.Context) ([]database.StoredChannel, error)
}

// appended is a channel that was just written to the log
type appended struct {
	seq     int64
	channel models.Channel
}

// Hub maintains the set of subscribed clients and fans out channel appends.
// All subscriber bookkeeping happens on the Run goroutine.
type Hub struct {
	channels ChannelLog
	log      logging.Logger

	// Clients receiving CHANNEL_APPENDED dispatches
	subscribers map[*Client]bool

	// Subscribe requests from clients
	subscribe chan *Client

	// Unsubscribe requests from clients
	unsubscribe chan *Client

	// Channels appended to the log
	broadcast chan appended

	// Closed when Run returns
	stopped chan struct{}
}

// NewHub creates a new Hub instance
func NewHub(channels ChannelLog, log logging.Logger) *Hub {
	return &Hub{
		channels:    channels,
		log:         log,
		subscribers: make(map[*Client]bool),
		subscribe:   make(chan *Client),
		unsubscribe: make(chan *Client),
		broadcast:   make(chan appended),
		stopped:     make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is done
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)

	for {
		select {
		case client := <-h.subscribe:
			h.subscribeClient(ctx, client)

		case client := <-h.unsubscribe:
			if h.subscribers[client] {
				delete(h.subscribers, client)
				h.log.Debug(ctx, "client unsubscribed", "uid", client.UserID)
			}

		case a := <-h.broadcast:
			h.broadcastAppended(ctx, a)

		case <-ctx.Done():
			return
		}
	}
}

// Subscribe replays the log to client and then keeps it subscribed. A
// client that is already subscribed gets the replay again.
func (h *Hub) Subscribe(c *Client) {
	select {
	case h.subscribe <- c:
	case <-h.stopped:
	}
}

// Unsubscribe stops dispatches to c
func (h *Hub) Unsubscribe(c *Client) {
	select {
	case h.unsubscribe <- c:
	case <-h.stopped:
	}
}

// Publish announces a channel that was appended at seq. It returns once the
// hub has taken the append, so a later Subscribe cannot overtake it.
func (h *Hub) Publish(seq int64, ch models.Channel) {
	select {
	case h.broadcast <- appended{seq: seq, channel: ch}:
	case <-h.stopped:
	}
}

// subscribeClient replays inside the loop so no append published after the
// read can be missed; one published before it may arrive twice, which
// subscribers tolerate by id.
func (h *Hub) subscribeClient(ctx context.Context, c *Client) {
	stored, err := h.channels.ListChannels(ctx)
	if err != nil {
		h.log.Error(ctx, "failed to load channel log", "error", err)
		return
	}

	for _, sc := range stored {
		msg, err := protocol.NewDispatch(protocol.EventChannelAppended, sc.Seq, protocol.ChannelAppendedPayload{Channel: sc.Channel})
		if err != nil {
			h.log.Error(ctx, "failed to create dispatch", "error", err)
			continue
		}
		if !c.sendWait(ctx, msg) {
			return
		}
	}

	h.subscribers[c] = true
	h.log.Info(ctx, "client subscribed", "uid", c.UserID, "replayed", len(stored))
}

// broadcastAppended sends one append to every subscriber
func (h *Hub) broadcastAppended(ctx context.Context, a appended) {
	msg, err := protocol.NewDispatch(protocol.EventChannelAppended, a.seq, protocol.ChannelAppendedPayload{Channel: a.channel})
	if err != nil {
		h.log.Error(ctx, "failed to create dispatch", "error", err)
		return
	}

	for client := range h.subscribers {
		if !client.Send(msg) {
			// Client's buffer is full or it is gone
			delete(h.subscribers, client)
			h.log.Warn(ctx, "dropping slow subscriber", "uid", client.UserID)
		}
	}
}
