// Package memory provides in-process implementations of the remote services.
// They back the offline client mode and the tests of the packages above them.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/pkg/crypto"
)

type account struct {
	profile      remote.Profile
	passwordHash string
}

// Identity is an in-memory identity service. The Err fields, when set, are
// returned by the matching call instead of doing any work.
type Identity struct {
	mu       sync.Mutex
	byEmail  map[string]*account
	byUID    map[string]*account
	signedIn string

	SignInErr        error
	CreateAccountErr error
	UpdateProfileErr error
	SignOutErr       error

	SignInCalls        int
	CreateAccountCalls int
	UpdateProfileCalls int
	SignOutCalls       int
	LastUpdate         remote.ProfileUpdate
}

// NewIdentity creates an empty identity service
func NewIdentity() *Identity {
	return &Identity{
		byEmail: make(map[string]*account),
		byUID:   make(map[string]*account),
	}
}

// SignInWithPassword checks the password of an existing account
func (i *Identity) SignInWithPassword(ctx context.Context, email, password string) (*remote.Profile, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.SignInCalls++
	if i.SignInErr != nil {
		return nil, i.SignInErr
	}
	if !remote.ValidEmail(email) {
		return nil, remote.NewError("signIn", remote.MsgInvalidEmail)
	}

	acc, ok := i.byEmail[remote.NormalizeEmail(email)]
	if !ok {
		return nil, remote.NewError("signIn", remote.MsgUserNotFound)
	}
	if !crypto.CheckPassword(password, acc.passwordHash) {
		return nil, remote.NewError("signIn", remote.MsgWrongPassword)
	}

	i.signedIn = acc.profile.UID
	p := acc.profile
	return &p, nil
}

// CreateAccount registers a new account and signs it in
func (i *Identity) CreateAccount(ctx context.Context, email, password string) (*remote.Profile, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.CreateAccountCalls++
	if i.CreateAccountErr != nil {
		return nil, i.CreateAccountErr
	}
	if !remote.ValidEmail(email) {
		return nil, remote.NewError("createAccount", remote.MsgInvalidEmail)
	}
	if len(password) < 6 {
		return nil, remote.NewError("createAccount", remote.MsgWeakPassword)
	}

	key := remote.NormalizeEmail(email)
	if _, exists := i.byEmail[key]; exists {
		return nil, remote.NewError("createAccount", remote.MsgEmailInUse)
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}

	acc := &account{
		profile:      remote.Profile{UID: uuid.NewString(), Email: strings.TrimSpace(email)},
		passwordHash: hash,
	}
	i.byEmail[key] = acc
	i.byUID[acc.profile.UID] = acc
	i.signedIn = acc.profile.UID

	p := acc.profile
	return &p, nil
}

// UpdateProfile sets the display name and photo of the signed in account
func (i *Identity) UpdateProfile(ctx context.Context, uid string, upd remote.ProfileUpdate) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.UpdateProfileCalls++
	i.LastUpdate = upd
	if i.UpdateProfileErr != nil {
		return i.UpdateProfileErr
	}
	if i.signedIn != uid {
		return remote.NewError("updateProfile", remote.MsgNotSignedIn)
	}
	acc, ok := i.byUID[uid]
	if !ok {
		return remote.NewError("updateProfile", remote.MsgUserNotFound)
	}

	acc.profile.DisplayName = upd.DisplayName
	acc.profile.PhotoURL = upd.PhotoURL
	return nil
}

// SignOut forgets the signed in account
func (i *Identity) SignOut(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.SignOutCalls++
	if i.SignOutErr != nil {
		return i.SignOutErr
	}
	i.signedIn = ""
	return nil
}

// Profile returns the stored profile for uid
func (i *Identity) Profile(uid string) (remote.Profile, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	acc, ok := i.byUID[uid]
	if !ok {
		return remote.Profile{}, false
	}
	return acc.profile, true
}

// Calls returns the total number of service calls made
func (i *Identity) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.SignInCalls + i.CreateAccountCalls + i.UpdateProfileCalls + i.SignOutCalls
}
