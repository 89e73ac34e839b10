package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-chat/devchat/internal/directory"
	"github.com/concord-chat/devchat/internal/models"
	"github.com/concord-chat/devchat/internal/session"
)

func TestBuild_SignedOut(t *testing.T) {
	vm := Build(session.Snapshot{State: session.Idle}, directory.State{FirstLoadPending: true})

	assert.False(t, vm.IsAuthenticated)
	assert.Nil(t, vm.CurrentUser)
	assert.Nil(t, vm.ActiveChannel)
	assert.False(t, vm.IsChannelActive(""))
	assert.Equal(t, "", vm.CurrentUser.DisplayName())
}

func TestBuild_SignedIn(t *testing.T) {
	snap := session.Snapshot{
		State: session.Authenticated,
		Session: session.Session{
			UserID:        "u1",
			DisplayName:   "alice",
			AvatarURL:     "http://x",
			Email:         "a@b.com",
			Authenticated: true,
		},
	}
	dir := directory.State{
		Channels: []models.Channel{
			{ID: "A", Name: "general"},
			{ID: "B", Name: "random"},
		},
		ActiveChannelID: "B",
	}

	vm := Build(snap, dir)

	assert.True(t, vm.IsAuthenticated)
	require.NotNil(t, vm.CurrentUser)
	assert.Equal(t, "alice", vm.CurrentUser.DisplayName())
	require.NotNil(t, vm.ActiveChannel)
	assert.Equal(t, "random", vm.ActiveChannel.Name)
	assert.True(t, vm.IsChannelActive("B"))
	assert.False(t, vm.IsChannelActive("A"))
	assert.Len(t, vm.Channels, 2)
}

func TestBuild_UnknownActiveChannel(t *testing.T) {
	vm := Build(session.Snapshot{}, directory.State{
		Channels:        []models.Channel{{ID: "A"}},
		ActiveChannelID: "Z",
	})
	assert.Nil(t, vm.ActiveChannel)
}

func TestBuild_ErrorsAndSubmitting(t *testing.T) {
	vm := Build(session.Snapshot{State: session.Submitting}, directory.State{})
	assert.True(t, vm.Submitting)

	vm = Build(session.Snapshot{
		State:  session.Failed,
		Errors: []string{"The email address is badly formatted."},
	}, directory.State{})

	assert.False(t, vm.Submitting)
	assert.True(t, vm.HasFieldError("email"))
	assert.False(t, vm.HasFieldError("password"))
}

func TestUser_DisplayNameFallsBackToEmail(t *testing.T) {
	u := &User{Email: "a@b.com"}
	assert.Equal(t, "a@b.com", u.DisplayName())
}

func TestBuild_SyncErrorOnlyWhenSignedIn(t *testing.T) {
	dir := directory.State{SyncError: "offline"}

	vm := Build(session.Snapshot{}, dir)
	assert.Empty(t, vm.SyncError)

	vm = Build(session.Snapshot{
		State:   session.Authenticated,
		Session: session.Session{UserID: "u1", Authenticated: true},
	}, dir)
	assert.Equal(t, "offline", vm.SyncError)
}
