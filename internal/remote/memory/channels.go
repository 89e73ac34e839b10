package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/remote"
)

// Channels is an in-memory append-only channel log. Notifications are
// delivered synchronously from Write and SubscribeAppended, one at a time.
type Channels struct {
	// deliver serializes notifications so every subscriber sees the log in order
	deliver sync.Mutex

	mu     sync.Mutex
	log    []models.Channel
	keys   map[string]struct{}
	subs   map[int]func(models.Channel)
	nextID int

	WriteErr   error
	WriteCalls int

	// SubscribeErr fails the next SubscribeFailures calls to SubscribeAppended
	SubscribeErr      error
	SubscribeFailures int
	SubscribeCalls    int
}

// NewChannels creates an empty log
func NewChannels() *Channels {
	return &Channels{
		keys: make(map[string]struct{}),
		subs: make(map[int]func(models.Channel)),
	}
}

// NewKey returns a time-ordered unique key
func (c *Channels) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Write appends ch under key. Writing a key that is already stored is a no-op.
func (c *Channels) Write(ctx context.Context, key string, ch models.Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	c.WriteCalls++
	if c.WriteErr != nil {
		err := c.WriteErr
		c.mu.Unlock()
		return err
	}
	if _, exists := c.keys[key]; exists {
		c.mu.Unlock()
		return nil
	}
	ch.ID = key
	c.keys[key] = struct{}{}
	c.log = append(c.log, ch)
	subs := c.snapshotSubs()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ch)
	}
	return nil
}

// SubscribeAppended replays the stored log to fn and keeps it registered for
// later writes
func (c *Channels) SubscribeAppended(ctx context.Context, fn func(models.Channel)) (remote.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	c.SubscribeCalls++
	if c.SubscribeErr != nil && c.SubscribeFailures > 0 {
		c.SubscribeFailures--
		err := c.SubscribeErr
		c.mu.Unlock()
		return nil, err
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	replay := append([]models.Channel(nil), c.log...)
	c.mu.Unlock()

	for _, ch := range replay {
		fn(ch)
	}
	return &subscription{c: c, id: id}, nil
}

// Redeliver sends ch to every subscriber again without storing it, the way
// a store may repeat a notification after a reconnect
func (c *Channels) Redeliver(ch models.Channel) {
	c.deliver.Lock()
	defer c.deliver.Unlock()

	c.mu.Lock()
	subs := c.snapshotSubs()
	c.mu.Unlock()

	for _, fn := range subs {
		fn(ch)
	}
}

// Subscribers returns the number of live subscriptions
func (c *Channels) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// All returns a copy of the stored log
func (c *Channels) All() []models.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Channel(nil), c.log...)
}

// snapshotSubs returns subscribers in registration order. Caller holds mu.
func (c *Channels) snapshotSubs() []func(models.Channel) {
	out := make([]func(models.Channel), 0, len(c.subs))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

type subscription struct {
	c    *Channels
	id   int
	once sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.c.mu.Lock()
		delete(s.c.subs, s.id)
		s.c.mu.Unlock()
	})
}
