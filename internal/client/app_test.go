package client

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/internal/remote/memory"
	"github.com/concord-chat/devchat/internal/themes"
	"github.com/concord-chat/devchat/internal/workspace"
)

func newTestApp(t *testing.T) (*App, *memory.Backend, *ConfigManager) {
	t.Helper()
	b := memory.NewBackend()
	w := workspace.New(b.Services(), nil)
	t.Cleanup(w.Close)

	prefs, err := NewConfigManager(t.TempDir())
	require.NoError(t, err)

	a := NewApp(w, AppOptions{Prefs: prefs, Themes: themes.Catalog{}})
	t.Cleanup(a.Close)
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return a, b, prefs
}

func press(a *App, k tea.KeyType) tea.Cmd {
	_, cmd := a.Update(tea.KeyMsg{Type: k})
	return cmd
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// submit presses enter and feeds the command's result back into the app
func submit(t *testing.T, a *App) {
	t.Helper()
	cmd := press(a, tea.KeyEnter)
	require.NotNil(t, cmd)
	a.Update(cmd())
}

func register(t *testing.T, a *App) {
	t.Helper()
	press(a, tea.KeyCtrlR)
	typeText(a, "alice")
	press(a, tea.KeyTab)
	typeText(a, "a@b.com")
	press(a, tea.KeyTab)
	typeText(a, "secret1")
	press(a, tea.KeyTab)
	typeText(a, "secret1")
	submit(t, a)
}

func TestApp_LoginValidationClearsOnEdit(t *testing.T) {
	a, _, _ := newTestApp(t)
	assert.Contains(t, a.View(), "Sign in to devchat")

	submit(t, a)
	assert.Equal(t, []string{"Fill all fields"}, a.vm.Errors)
	assert.Contains(t, a.View(), "Fill all fields")

	typeText(a, "a")
	assert.Empty(t, a.vm.Errors)
}

func TestApp_RemoteErrorShown(t *testing.T) {
	a, _, _ := newTestApp(t)

	typeText(a, "nobody@b.com")
	press(a, tea.KeyTab)
	typeText(a, "secret1")
	submit(t, a)

	assert.False(t, a.vm.IsAuthenticated)
	assert.Contains(t, a.View(), "There is no user record")
}

func TestApp_ToggleRegister(t *testing.T) {
	a, _, _ := newTestApp(t)

	press(a, tea.KeyCtrlR)
	assert.Equal(t, ViewRegister, a.currentView())
	assert.Contains(t, a.View(), "Create a devchat account")

	press(a, tea.KeyCtrlR)
	assert.Equal(t, ViewLogin, a.currentView())
}

func TestApp_RegisterAndCreateChannel(t *testing.T) {
	a, b, prefs := newTestApp(t)

	register(t, a)
	require.True(t, a.vm.IsAuthenticated)
	assert.Equal(t, ViewMain, a.currentView())
	assert.Contains(t, a.View(), "CHANNELS (0)")

	p, err := prefs.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", p.LastEmail)

	press(a, tea.KeyCtrlN)
	require.True(t, a.dialogOpen)
	assert.Contains(t, a.View(), "Add a Channel")

	submit(t, a)
	assert.True(t, a.dialogOpen)
	assert.Equal(t, "Fill all fields", a.dialogError)

	typeText(a, "general")
	press(a, tea.KeyTab)
	typeText(a, "general discussion")
	submit(t, a)
	assert.False(t, a.dialogOpen)

	a.Update(viewChangedMsg{})
	view := a.View()
	assert.Contains(t, view, "CHANNELS (1)")
	assert.Contains(t, view, "# general")
	assert.Contains(t, view, "general discussion")
	assert.Len(t, b.Channels.All(), 1)
}

func TestApp_SelectChannel(t *testing.T) {
	a, _, _ := newTestApp(t)
	register(t, a)

	for _, name := range []string{"general", "random"} {
		press(a, tea.KeyCtrlN)
		typeText(a, name)
		press(a, tea.KeyTab)
		typeText(a, name+" talk")
		submit(t, a)
	}
	a.Update(viewChangedMsg{})
	require.Len(t, a.vm.Channels, 2)
	require.NotNil(t, a.vm.ActiveChannel)
	assert.Equal(t, "general", a.vm.ActiveChannel.Name)

	press(a, tea.KeyDown)
	assert.Equal(t, "general", a.vm.ActiveChannel.Name, "moving the cursor does not select")

	press(a, tea.KeyEnter)
	assert.Equal(t, "random", a.vm.ActiveChannel.Name)
}

func TestApp_DialogEscape(t *testing.T) {
	a, _, _ := newTestApp(t)
	register(t, a)

	press(a, tea.KeyCtrlN)
	typeText(a, "draft")
	press(a, tea.KeyEsc)
	assert.False(t, a.dialogOpen)

	press(a, tea.KeyCtrlN)
	assert.Empty(t, a.dialog.value(0), "reopening starts from an empty form")
}

func TestApp_SignOut(t *testing.T) {
	a, _, _ := newTestApp(t)
	register(t, a)

	cmd := press(a, tea.KeyCtrlO)
	require.NotNil(t, cmd)
	a.Update(cmd())

	assert.False(t, a.vm.IsAuthenticated)
	assert.Equal(t, ViewLogin, a.currentView())
	assert.Contains(t, a.View(), "Sign in to devchat")
}

func TestApp_PrefillsLastEmail(t *testing.T) {
	prefs, err := NewConfigManager(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, prefs.RememberEmail("a@b.com"))

	w := workspace.New(memory.NewBackend().Services(), nil)
	t.Cleanup(w.Close)
	a := NewApp(w, AppOptions{Prefs: prefs})
	t.Cleanup(a.Close)

	assert.Equal(t, "a@b.com", a.login.value(loginEmail))
	assert.Equal(t, loginPassword, a.login.focus)
}

func TestApp_CycleTheme(t *testing.T) {
	a, _, prefs := newTestApp(t)
	assert.Equal(t, "dracula", a.themeName)

	press(a, tea.KeyCtrlT)
	assert.Equal(t, "nord", a.themeName)
	assert.Equal(t, "Nord", a.theme.Meta.Name)

	p, err := prefs.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, "nord", p.Theme)
}

func TestApp_StreamStatus(t *testing.T) {
	a, _, _ := newTestApp(t)
	register(t, a)

	a.StreamStatus(StateReconnecting, nil)
	msg := a.waitForStreamState()()
	a.Update(msg)

	assert.Equal(t, StateReconnecting, a.stream)
	assert.Contains(t, a.View(), "Reconnecting")
}

func TestApp_SyncErrorInStatusBar(t *testing.T) {
	a, b, _ := newTestApp(t)
	b.Channels.SubscribeErr = remote.NewError("subscribe", "offline")
	b.Channels.SubscribeFailures = 1
	register(t, a)

	assert.True(t, a.vm.IsAuthenticated)
	assert.Contains(t, a.View(), "sync: offline")
}

func TestApp_QuitDetaches(t *testing.T) {
	a, _, _ := newTestApp(t)

	cmd := press(a, tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Nil(t, a.waitForChange()(), "waits return once the app is closed")
}
