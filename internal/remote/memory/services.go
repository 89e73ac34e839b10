package memory

import "github.com/concord-chat/devchat/internal/remote"

// Backend groups one instance of each in-memory service
type Backend struct {
	Identity *Identity
	Users    *Users
	Channels *Channels
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	return &Backend{
		Identity: NewIdentity(),
		Users:    NewUsers(),
		Channels: NewChannels(),
	}
}

// Services returns the backend as remote contracts
func (b *Backend) Services() remote.Services {
	return remote.Services{
		Identity: b.Identity,
		Users:    b.Users,
		Channels: b.Channels,
	}
}
