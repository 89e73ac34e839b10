// Package projection merges session and directory state into the read-only
// view model the UI renders.
package projection

import (
	"github.com/concord-chat/devchat/internal/auth"
	"github.com/concord-chat/devchat/internal/directory"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/session"
)

// User is the signed in user as displayed
type User struct {
	ID        string
	Name      string
	Email     string
	AvatarURL string
}

// ViewModel is everything the UI needs to draw a frame
type ViewModel struct {
	IsAuthenticated bool
	CurrentUser     *User
	Channels        []models.Channel
	ActiveChannel   *models.Channel
	Submitting      bool
	Errors          []string
	// SyncError is set while channel sync is failing and being retried
	SyncError string
}

// Build derives the view model. It has no side effects.
func Build(s session.Snapshot, d directory.State) ViewModel {
	vm := ViewModel{
		IsAuthenticated: s.Session.Authenticated,
		Channels:        d.Channels,
		Submitting:      s.State == session.Submitting,
		Errors:          s.Errors,
	}

	if s.Session.Authenticated {
		vm.CurrentUser = &User{
			ID:        s.Session.UserID,
			Name:      s.Session.DisplayName,
			Email:     s.Session.Email,
			AvatarURL: s.Session.AvatarURL,
		}
		vm.SyncError = d.SyncError
	}

	if ch, ok := d.Channel(d.ActiveChannelID); ok && d.ActiveChannelID != "" {
		vm.ActiveChannel = &ch
	}

	return vm
}

// IsChannelActive reports whether id is the active channel
func (vm ViewModel) IsChannelActive(id string) bool {
	return vm.ActiveChannel != nil && vm.ActiveChannel.ID == id
}

// HasFieldError reports whether an error message mentions field
func (vm ViewModel) HasFieldError(field string) bool {
	return auth.HasFieldError(vm.Errors, field)
}

// DisplayName returns the user's name, or the email when no name is set
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
