// Package remote declares the services the client depends on: the identity
// service, the user directory and the channel stream. Implementations live in
// internal/remote/memory and internal/client.
package remote

import (
	"context"

	"github.com/concord-chat/devchat/internal/models"
)

// Profile is the identity service's view of a user
type Profile struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// ProfileUpdate carries the fields UpdateProfile may change
type ProfileUpdate struct {
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// IdentityService authenticates users and stores their profile
type IdentityService interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Profile, error)
	CreateAccount(ctx context.Context, email, password string) (*Profile, error)
	UpdateProfile(ctx context.Context, uid string, upd ProfileUpdate) error
	SignOut(ctx context.Context) error
}

// UserDirectory is a key-value store of public user records
type UserDirectory interface {
	Put(ctx context.Context, uid string, rec models.UserRecord) error
}

// ChannelStream is the append-only channel log.
//
// SubscribeAppended calls fn once per appended channel, in the order the store
// delivers them, starting with every channel already stored. fn is never
// called concurrently for one subscription.
type ChannelStream interface {
	NewKey() string
	Write(ctx context.Context, key string, ch models.Channel) error
	SubscribeAppended(ctx context.Context, fn func(models.Channel)) (Subscription, error)
}

// Subscription is a live stream subscription
type Subscription interface {
	// Unsubscribe stops delivery. Safe to call more than once.
	Unsubscribe()
}

// Services bundles the three collaborators
type Services struct {
	Identity IdentityService
	Users    UserDirectory
	Channels ChannelStream
}
