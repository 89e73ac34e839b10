// Package session tracks who is signed in. The Manager drives the login and
// registration flows against the identity service and the user directory and
// publishes every state change to its observers.
package session

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
	"github.com/concord-chat/devchat/pkg/crypto"
)

var (
	// ErrBusy is returned when a submit arrives while another is in flight
	ErrBusy = errors.New("a request is already in progress")
	// ErrStale is returned when a completion arrives after the session it
	// belonged to was signed out; its result is discarded
	ErrStale = errors.New("session changed before the request completed")
	// ErrAlreadySignedIn is returned when a submit arrives while a session
	// is active; sign out first
	ErrAlreadySignedIn = errors.New("already signed in")
)

// State is the phase of the authentication flow
type State int

const (
	Idle State = iota
	Submitting
	Authenticated
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case Authenticated:
		return "authenticated"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is the signed in identity
type Session struct {
	UserID        string
	DisplayName   string
	AvatarURL     string
	Email         string
	Authenticated bool
}

// Creator returns the session's user as a channel creator
func (s Session) Creator() models.Creator {
	return models.Creator{Name: s.DisplayName, Avatar: s.AvatarURL}
}

// Snapshot is a read-only copy of the manager state
type Snapshot struct {
	State   State
	Session Session
	Errors  []string
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the manager's logger
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// Manager owns the current session. All methods are safe for concurrent use.
// Remote calls are made without holding the lock.
type Manager struct {
	identity remote.IdentityService
	users    remote.UserDirectory
	log      logging.Logger

	mu      sync.Mutex
	state   State
	session Session
	errs    []string
	// gen changes on every sign-out; completions carrying an older gen are stale
	gen     uint64
	version uint64

	observers notify.Broadcaster[Snapshot]
}

// NewManager creates a manager in the Idle state
func NewManager(identity remote.IdentityService, users remote.UserDirectory, opts ...Option) *Manager {
	m := &Manager{
		identity: identity,
		users:    users,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Snapshot returns the current state
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Observe registers fn to receive every state change. The returned func
// removes it.
func (m *Manager) Observe(fn func(Snapshot)) (cancel func()) {
	return m.observers.Add(fn)
}

// SignIn authenticates with email and password
func (m *Manager) SignIn(ctx context.Context, creds auth.Credentials) error {
	gen, err := m.begin(func() error { return auth.ValidateLogin(creds) })
	if err != nil {
		return err
	}

	m.log.Debug(ctx, "signing in", "email", creds.Email)
	profile, err := m.identity.SignInWithPassword(ctx, strings.TrimSpace(creds.Email), creds.Password)
	if err != nil {
		return m.fail(ctx, gen, "sign in", err)
	}

	return m.succeed(ctx, gen, Session{
		UserID:        profile.UID,
		DisplayName:   profile.DisplayName,
		AvatarURL:     profile.PhotoURL,
		Email:         profile.Email,
		Authenticated: true,
	})
}

// SignUp creates an account, sets its display name and avatar, and records
// the user in the directory. The first failing step ends the flow; earlier
// steps are not undone.
func (m *Manager) SignUp(ctx context.Context, creds auth.Credentials) error {
	gen, err := m.begin(func() error { return auth.ValidateRegistration(creds) })
	if err != nil {
		return err
	}

	email := strings.TrimSpace(creds.Email)
	m.log.Debug(ctx, "creating account", "email", email)
	profile, err := m.identity.CreateAccount(ctx, email, creds.Password)
	if err != nil {
		return m.fail(ctx, gen, "create account", err)
	}
	if m.stale(gen) {
		return m.discard(ctx, "create account")
	}

	if profile.Email != "" {
		email = profile.Email
	}
	name := strings.TrimSpace(creds.Username)
	avatar := crypto.AvatarURL(email)

	if err := m.identity.UpdateProfile(ctx, profile.UID, remote.ProfileUpdate{DisplayName: name, PhotoURL: avatar}); err != nil {
		if m.stale(gen) {
			return m.discard(ctx, "update profile")
		}
		return m.fail(ctx, gen, "update profile", err)
	}
	if m.stale(gen) {
		return m.discard(ctx, "update profile")
	}

	if err := m.users.Put(ctx, profile.UID, models.UserRecord{Name: name, Avatar: avatar}); err != nil {
		if m.stale(gen) {
			return m.discard(ctx, "save user")
		}
		return m.fail(ctx, gen, "save user", err)
	}

	return m.succeed(ctx, gen, Session{
		UserID:        profile.UID,
		DisplayName:   name,
		AvatarURL:     avatar,
		Email:         email,
		Authenticated: true,
	})
}

// SignOut ends the session. Any sign-in still in flight becomes stale.
func (m *Manager) SignOut(ctx context.Context) {
	m.mu.Lock()
	m.gen++
	m.state = Idle
	m.session = Session{}
	m.errs = nil
	snap, ver := m.bumpLocked()
	m.mu.Unlock()

	m.observers.Emit(ver, snap)

	if err := m.identity.SignOut(ctx); err != nil {
		m.log.Warn(ctx, "remote sign out failed", "error", err)
	}
}

// EditField clears a failure once the user changes the form
func (m *Manager) EditField() {
	m.mu.Lock()
	if m.state != Failed {
		m.mu.Unlock()
		return
	}
	m.state = Idle
	m.errs = nil
	snap, ver := m.bumpLocked()
	m.mu.Unlock()

	m.observers.Emit(ver, snap)
}

// begin validates the form and moves to Submitting. It returns the session
// generation the request belongs to.
func (m *Manager) begin(validate func() error) (uint64, error) {
	m.mu.Lock()
	switch m.state {
	case Submitting:
		m.mu.Unlock()
		return 0, ErrBusy
	case Authenticated:
		m.mu.Unlock()
		return 0, ErrAlreadySignedIn
	}

	if err := validate(); err != nil {
		m.state = Failed
		m.errs = []string{err.Error()}
		snap, ver := m.bumpLocked()
		m.mu.Unlock()
		m.observers.Emit(ver, snap)
		return 0, err
	}

	m.state = Submitting
	m.errs = nil
	gen := m.gen
	snap, ver := m.bumpLocked()
	m.mu.Unlock()

	m.observers.Emit(ver, snap)
	return gen, nil
}

func (m *Manager) fail(ctx context.Context, gen uint64, op string, err error) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.log.Debug(ctx, "discarding stale failure", "op", op, "error", err)
		return ErrStale
	}
	m.state = Failed
	m.errs = []string{remote.Message(err)}
	snap, ver := m.bumpLocked()
	m.mu.Unlock()

	m.log.Info(ctx, "authentication failed", "op", op, "error", err)
	m.observers.Emit(ver, snap)
	return fmt.Errorf("%s: %w", op, err)
}

func (m *Manager) succeed(ctx context.Context, gen uint64, s Session) error {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		m.log.Debug(ctx, "discarding stale session", "uid", s.UserID)
		return m.discard(ctx, "complete")
	}
	m.state = Authenticated
	m.session = s
	m.errs = nil
	snap, ver := m.bumpLocked()
	m.mu.Unlock()

	m.log.Info(ctx, "signed in", "uid", s.UserID)
	m.observers.Emit(ver, snap)
	return nil
}

// discard drops a completion whose session was signed out while it was in
// flight. The remote may now hold a credential for it, so unless a newer
// session is active or on its way, that credential is revoked too.
func (m *Manager) discard(ctx context.Context, op string) error {
	m.mu.Lock()
	busy := m.state == Authenticated || m.state == Submitting
	m.mu.Unlock()

	if busy {
		m.log.Debug(ctx, "stale completion left to the current session", "op", op)
		return ErrStale
	}
	if err := m.identity.SignOut(ctx); err != nil {
		m.log.Warn(ctx, "revoking stale credential failed", "op", op, "error", err)
	}
	return ErrStale
}

func (m *Manager) stale(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.gen
}

func (m *Manager) bumpLocked() (Snapshot, uint64) {
	m.version++
	return m.snapshotLocked(), m.version
}

func (m *Manager) snapshotLocked() Snapshot {
	return Snapshot{
		State:   m.state,
		Session: m.session,
		Errors:  append([]string(nil), m.errs...),
	}
}
