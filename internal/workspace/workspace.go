// Package workspace wires the session manager to the directory synchronizer
// and exposes the command surface the UI drives.
package workspace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/concord-chat/devchat/internal/auth"
	"github.com/concord-chat/devchat/internal/directory"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/notify"
	"github.com/concord-chat/devchat/internal/projection"
	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/internal/session"
)

// ErrNotSignedIn is returned by commands that need a session
var ErrNotSignedIn = errors.New("not signed in")

// Workspace owns one session manager and one synchronizer. The synchronizer
// is subscribed while the session is authenticated; a failed subscribe is
// retried with backoff until it succeeds or the session ends.
type Workspace struct {
	Sessions  *session.Manager
	Directory *directory.Synchronizer

	log     logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	backoff func() retry.Backoff

	mu      sync.Mutex
	active  bool
	closed  bool
	version uint64
	unwatch []func()

	// syncMu orders subscribe attempts against stopping sync
	syncMu     sync.Mutex
	syncCancel context.CancelFunc

	views notify.Broadcaster[projection.ViewModel]
}

// Option configures a Workspace
type Option func(*Workspace)

// WithSyncBackoff sets the backoff used to retry a failed channel sync
func WithSyncBackoff(fn func() retry.Backoff) Option {
	return func(w *Workspace) { w.backoff = fn }
}

// DefaultSyncBackoff retries from 500ms, doubling up to 30s between attempts
func DefaultSyncBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))
}

// New builds a workspace over the given services
func New(svc remote.Services, log logging.Logger, opts ...Option) *Workspace {
	if log == nil {
		log = logging.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())

	w := &Workspace{
		Sessions:  session.NewManager(svc.Identity, svc.Users, session.WithLogger(log.With("component", "session"))),
		Directory: directory.New(svc.Channels, directory.WithLogger(log.With("component", "directory"))),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
		backoff:   DefaultSyncBackoff,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.unwatch = append(w.unwatch,
		w.Sessions.Observe(w.sessionChanged),
		w.Directory.Observe(func(directory.State) { w.publish() }),
	)
	return w
}

// View returns the current view model
func (w *Workspace) View() projection.ViewModel {
	return projection.Build(w.Sessions.Snapshot(), w.Directory.Snapshot())
}

// OnChange registers fn to receive every recomputed view model
func (w *Workspace) OnChange(fn func(projection.ViewModel)) (cancel func()) {
	return w.views.Add(fn)
}

// SubmitLogin signs in with the login form
func (w *Workspace) SubmitLogin(ctx context.Context, creds auth.Credentials) error {
	return w.Sessions.SignIn(ctx, creds)
}

// SubmitRegistration creates an account with the registration form
func (w *Workspace) SubmitRegistration(ctx context.Context, creds auth.Credentials) error {
	return w.Sessions.SignUp(ctx, creds)
}

// SignOut ends the session and stops channel sync
func (w *Workspace) SignOut(ctx context.Context) {
	w.Sessions.SignOut(ctx)
}

// EditField clears a failed submit once the user edits the form
func (w *Workspace) EditField() {
	w.Sessions.EditField()
}

// SubmitNewChannel creates a channel owned by the signed in user
func (w *Workspace) SubmitNewChannel(ctx context.Context, name, details string) (string, error) {
	snap := w.Sessions.Snapshot()
	if !snap.Session.Authenticated {
		return "", ErrNotSignedIn
	}
	return w.Directory.CreateChannel(ctx, name, details, snap.Session.Creator())
}

// SelectChannel makes id the active channel
func (w *Workspace) SelectChannel(id string) error {
	return w.Directory.SelectChannel(id)
}

// Close stops channel sync and detaches observers
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.active = false
	unwatch := w.unwatch
	w.unwatch = nil
	w.mu.Unlock()

	for _, fn := range unwatch {
		fn()
	}
	w.stopSync()
	w.cancel()
}

func (w *Workspace) sessionChanged(snap session.Snapshot) {
	authed := snap.Session.Authenticated

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	start := authed && !w.active
	stop := !authed && w.active
	w.active = authed
	w.mu.Unlock()

	switch {
	case start:
		w.log.Info(w.ctx, "session started, syncing channels", "uid", snap.Session.UserID)
		w.startSync()
	case stop:
		w.log.Info(w.ctx, "session ended, stopping channel sync")
		w.stopSync()
	}

	w.publish()
}

// startSync subscribes the synchronizer. The first attempt runs inline so
// the directory is loaded when sign-in returns; failures are retried in the
// background until stopSync.
func (w *Workspace) startSync() {
	ctx, cancel := context.WithCancel(w.ctx)

	w.syncMu.Lock()
	if w.syncCancel != nil {
		w.syncCancel()
	}
	w.syncCancel = cancel
	err := w.Directory.Subscribe(ctx)
	w.syncMu.Unlock()

	if err == nil {
		return
	}
	w.log.Error(ctx, "channel sync failed, retrying", "error", err)
	go w.retrySync(ctx)
}

func (w *Workspace) retrySync(ctx context.Context) {
	b := w.backoff()

	// the inline attempt already failed; wait before the first retry
	delay, stop := b.Next()
	if stop {
		return
	}
	timer := time.NewTimer(delay)
	select {
	case <-ctx.Done():
		timer.Stop()
		return
	case <-timer.C:
	}

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		w.syncMu.Lock()
		defer w.syncMu.Unlock()

		// stopSync cancels under syncMu, so a cancelled ctx here means the
		// session is gone
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		if err := w.Directory.Subscribe(ctx); err != nil {
			w.log.Debug(ctx, "channel sync attempt failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})

	switch {
	case err == nil:
		w.log.Info(ctx, "channel sync restored", "attempts", attempt)
	case errors.Is(err, context.Canceled):
	default:
		w.log.Error(ctx, "channel sync gave up", "error", err)
	}
}

func (w *Workspace) stopSync() {
	w.syncMu.Lock()
	defer w.syncMu.Unlock()

	if w.syncCancel != nil {
		w.syncCancel()
		w.syncCancel = nil
	}
	w.Directory.Unsubscribe()
}

func (w *Workspace) publish() {
	w.mu.Lock()
	w.version++
	ver := w.version
	vm := w.View()
	w.mu.Unlock()

	w.views.Emit(ver, vm)
}
