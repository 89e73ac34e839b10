package client

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/concord-chat/devchat/internal/auth"
	"github.com/concord-chat/devchat/internal/directory"
	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/internal/workspace"
)

// --- Message types for tea.Cmd ---

// viewChangedMsg tells the app to re-read the workspace view model
type viewChangedMsg struct{}

// streamStateMsg reports a change of the channel stream connection
type streamStateMsg struct {
	state ConnectionState
	err   error
}

// authDoneMsg is the result of a login or registration submit
type authDoneMsg struct {
	email string
	err   error
}

// channelCreatedMsg is the result of the add channel dialog
type channelCreatedMsg struct {
	id  string
	err error
}

// signedOutMsg follows a completed sign out
type signedOutMsg struct{}

// waitForChange blocks until the workspace has a new view model
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changes:
			return viewChangedMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

// waitForStreamState blocks until the stream reports a new state
func (a *App) waitForStreamState() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-a.states:
			return s
		case <-a.ctx.Done():
			return nil
		}
	}
}

func submitLoginCmd(ctx context.Context, ws Workspace, creds auth.Credentials) tea.Cmd {
	return func() tea.Msg {
		return authDoneMsg{email: creds.Email, err: ws.SubmitLogin(ctx, creds)}
	}
}

func submitRegistrationCmd(ctx context.Context, ws Workspace, creds auth.Credentials) tea.Cmd {
	return func() tea.Msg {
		return authDoneMsg{email: creds.Email, err: ws.SubmitRegistration(ctx, creds)}
	}
}

func createChannelCmd(ctx context.Context, ws Workspace, name, details string) tea.Cmd {
	return func() tea.Msg {
		id, err := ws.SubmitNewChannel(ctx, name, details)
		return channelCreatedMsg{id: id, err: err}
	}
}

func signOutCmd(ctx context.Context, ws Workspace) tea.Cmd {
	return func() tea.Msg {
		ws.SignOut(ctx)
		return signedOutMsg{}
	}
}

// dialogError turns a channel creation failure into the dialog's message
func dialogError(err error) string {
	switch {
	case errors.Is(err, directory.ErrNotSubscribed):
		return "Channels are not loaded yet. Try again in a moment."
	case errors.Is(err, workspace.ErrNotSignedIn):
		return remote.MsgNotSignedIn
	}
	return remote.Message(err)
}
