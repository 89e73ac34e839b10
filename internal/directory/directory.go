// Package directory mirrors the remote channel stream into an ordered,
// duplicate-free list and tracks which channel is active.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/concord-chat/devchat/internal/auth"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/notify"
	"github.com/concord-chat/devchat/internal/remote"
)

var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrNotSubscribed   = errors.New("not subscribed to the channel stream")
	// ErrInvalidChannel is returned by CreateChannel when name or details
	// are blank. It matches auth.ErrEmptyFields.
	ErrInvalidChannel error = invalidChannelError{}
)

type invalidChannelError struct{}

func (invalidChannelError) Error() string { return auth.ErrEmptyFields.Error() }
func (invalidChannelError) Unwrap() error { return auth.ErrEmptyFields }

// State is a read-only copy of the synchronizer
type State struct {
	Channels         []models.Channel
	ActiveChannelID  string
	FirstLoadPending bool
	Subscribed       bool
	// SyncError is the message of the last failed Subscribe, cleared once a
	// subscription succeeds or sync is stopped
	SyncError string
}

// Channel returns the entry with id
func (s State) Channel(id string) (models.Channel, bool) {
	for _, ch := range s.Channels {
		if ch.ID == id {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// Option configures a Synchronizer
type Option func(*Synchronizer)

// WithLogger sets the synchronizer's logger
func WithLogger(l logging.Logger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// Synchronizer owns the local channel directory. All methods are safe for
// concurrent use; stream calls are made without holding the lock.
type Synchronizer struct {
	stream remote.ChannelStream
	log    logging.Logger

	mu               sync.Mutex
	entries          []models.Channel
	index            map[string]int
	activeID         string
	firstLoadPending bool
	sub              remote.Subscription
	active           bool
	syncErr          string
	// subGen identifies the current subscription; notifications tagged with
	// an older value are dropped
	subGen  uint64
	version uint64

	observers notify.Broadcaster[State]
}

// New creates a synchronizer over stream
func New(stream remote.ChannelStream, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		stream:           stream,
		log:              logging.Discard(),
		index:            make(map[string]int),
		firstLoadPending: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe starts mirroring the channel stream, replacing any previous
// subscription. Entries received earlier are kept.
func (s *Synchronizer) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	old := s.sub
	s.sub = nil
	s.subGen++
	gen := s.subGen
	s.active = true
	s.firstLoadPending = true
	st, ver := s.bumpLocked()
	s.mu.Unlock()

	if old != nil {
		old.Unsubscribe()
	}
	s.observers.Emit(ver, st)

	s.log.Debug(ctx, "subscribing to channel stream", "gen", gen)
	sub, err := s.stream.SubscribeAppended(ctx, func(ch models.Channel) {
		s.appended(ctx, gen, ch)
	})
	if err != nil {
		s.mu.Lock()
		if gen != s.subGen {
			s.mu.Unlock()
			return fmt.Errorf("failed to subscribe: %w", err)
		}
		s.active = false
		s.syncErr = remote.Message(err)
		st, ver = s.bumpLocked()
		s.mu.Unlock()

		s.observers.Emit(ver, st)
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	s.mu.Lock()
	if gen != s.subGen {
		// Unsubscribe or another Subscribe won the race
		s.mu.Unlock()
		sub.Unsubscribe()
		return nil
	}
	s.sub = sub
	s.syncErr = ""
	st, ver = s.bumpLocked()
	s.mu.Unlock()

	s.observers.Emit(ver, st)
	return nil
}

// Unsubscribe stops the live subscription. Retained entries stay.
func (s *Synchronizer) Unsubscribe() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.subGen++
	s.active = false
	s.syncErr = ""
	st, ver := s.bumpLocked()
	s.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	s.observers.Emit(ver, st)
}

// SelectChannel makes id the active channel
func (s *Synchronizer) SelectChannel(id string) error {
	s.mu.Lock()
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrChannelNotFound, id)
	}
	if s.activeID == id {
		s.mu.Unlock()
		return nil
	}
	s.activeID = id
	st, ver := s.bumpLocked()
	s.mu.Unlock()

	s.observers.Emit(ver, st)
	return nil
}

// CreateChannel writes a new channel to the stream and returns its key. The
// entry shows up locally only once the stream delivers it back.
func (s *Synchronizer) CreateChannel(ctx context.Context, name, details string, creator models.Creator) (string, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(details) == "" {
		return "", ErrInvalidChannel
	}

	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return "", ErrNotSubscribed
	}

	key := s.stream.NewKey()
	ch := models.NewChannel(key, name, details, creator)
	if err := s.stream.Write(ctx, key, ch); err != nil {
		s.log.Warn(ctx, "channel write failed", "key", key, "error", err)
		return "", fmt.Errorf("failed to create channel: %w", err)
	}

	s.log.Info(ctx, "channel created", "key", key, "name", ch.Name)
	return key, nil
}

// Snapshot returns the current state
func (s *Synchronizer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Observe registers fn to receive every state change
func (s *Synchronizer) Observe(fn func(State)) (cancel func()) {
	return s.observers.Add(fn)
}

// appended handles one stream notification. Deduplication and first-load
// selection happen under the same lock so no entry can slip past the check.
func (s *Synchronizer) appended(ctx context.Context, gen uint64, ch models.Channel) {
	s.mu.Lock()
	if gen != s.subGen {
		s.mu.Unlock()
		s.log.Debug(ctx, "dropping notification from closed subscription", "id", ch.ID)
		return
	}
	if ch.ID == "" {
		s.mu.Unlock()
		s.log.Warn(ctx, "dropping channel without id", "name", ch.Name)
		return
	}

	changed := false
	if _, dup := s.index[ch.ID]; !dup {
		s.index[ch.ID] = len(s.entries)
		s.entries = append(s.entries, ch)
		changed = true
	}

	if s.firstLoadPending && len(s.entries) > 0 {
		if s.activeID == "" {
			s.activeID = s.entries[0].ID
		}
		s.firstLoadPending = false
		changed = true
	}

	if !changed {
		s.mu.Unlock()
		return
	}
	st, ver := s.bumpLocked()
	s.mu.Unlock()

	s.observers.Emit(ver, st)
}

func (s *Synchronizer) bumpLocked() (State, uint64) {
	s.version++
	return s.stateLocked(), s.version
}

func (s *Synchronizer) stateLocked() State {
	return State{
		Channels:         append([]models.Channel(nil), s.entries...),
		ActiveChannelID:  s.activeID,
		FirstLoadPending: s.firstLoadPending,
		Subscribed:       s.sub != nil,
		SyncError:        s.syncErr,
	}
}
