package client

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/concord-chat/devchat/internal/auth"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/projection"
	"github.com/concord-chat/devchat/internal/themes"
)

// Workspace is the command surface the terminal UI drives.
// *workspace.Workspace implements it.
type Workspace interface {
	View() projection.ViewModel
	OnChange(fn func(projection.ViewModel)) (cancel func())
	SubmitLogin(ctx context.Context, creds auth.Credentials) error
	SubmitRegistration(ctx context.Context, creds auth.Credentials) error
	SignOut(ctx context.Context)
	EditField()
	SubmitNewChannel(ctx context.Context, name, details string) (string, error)
	SelectChannel(id string) error
}

// View represents the screens of the application
type View int

const (
	ViewLogin View = iota
	ViewRegister
	ViewMain
)

// Register form fields
const (
	regUsername = iota
	regEmail
	regPassword
	regConfirm
)

// Login form fields
const (
	loginEmail = iota
	loginPassword
)

// AppOptions configures NewApp
type AppOptions struct {
	Theme     *themes.Theme
	ThemeName string // catalog name of Theme
	Themes    themes.Catalog
	Prefs     *ConfigManager // optional; remembers the last email and theme
	Log       logging.Logger
	Address   string // shown in the status bar
}

// App is the bubbletea model of the client
type App struct {
	ws   Workspace
	log  logging.Logger
	keys keyMap
	help help.Model

	ctx    context.Context
	cancel context.CancelFunc

	// Window dimensions
	width  int
	height int

	theme     *themes.Theme
	themeName string
	catalog   themes.Catalog
	styles    *themes.Styles
	prefs     *ConfigManager
	address   string

	// Latest view model and its change signal
	vm       projection.ViewModel
	changes  chan struct{}
	states   chan streamStateMsg
	unwatch  func()
	stream   ConnectionState
	spinner  spinner.Model
	authMode View

	login    *form
	register *form

	// Channel sidebar cursor, separate from the active channel
	cursor     int
	lastActive string

	dialog      *form
	dialogOpen  bool
	dialogError string
	dialogBusy  bool

	statusMessage string
	statusError   bool
}

// NewApp creates the terminal UI over ws
func NewApp(ws Workspace, opts AppOptions) *App {
	theme := opts.Theme
	if theme == nil {
		theme = themes.GetDefaultTheme()
	}
	log := opts.Log
	if log == nil {
		log = logging.Discard()
	}

	ctx, cancel := context.WithCancel(context.Background())

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	a := &App{
		ws:       ws,
		log:      log,
		keys:     defaultKeyMap(),
		help:     help.New(),
		ctx:      ctx,
		cancel:   cancel,
		theme:    theme,
		catalog:  opts.Themes,
		styles:   theme.BuildStyles(),
		prefs:    opts.Prefs,
		address:  opts.Address,
		changes:  make(chan struct{}, 1),
		states:   make(chan streamStateMsg, 8),
		spinner:  sp,
		authMode: ViewLogin,
		login: newForm(
			newField("Email", "email", "you@example.com", false),
			newField("Password", "password", "Password", true),
		),
		register: newForm(
			newField("Username", "username", "Display name", false),
			newField("Email", "email", "you@example.com", false),
			newField("Password", "password", "At least 6 characters", true),
			newField("Confirm", "confirmation", "Repeat password", true),
		),
		dialog: newForm(
			newField("Name", "name", "general", false),
			newField("Details", "details", "What is this channel about?", false),
		),
	}
	a.dialog.fields[0].input.CharLimit = 64
	a.themeName = opts.ThemeName
	if a.themeName == "" {
		a.themeName = strings.ToLower(theme.Meta.Name)
	}

	if a.prefs != nil {
		if prefs, err := a.prefs.LoadPreferences(); err == nil && prefs.LastEmail != "" {
			a.login.set(loginEmail, prefs.LastEmail)
			a.login.setFocus(loginPassword)
		}
	}

	a.vm = ws.View()
	a.unwatch = ws.OnChange(func(projection.ViewModel) { a.signal() })
	return a
}

// signal records that the workspace changed. Bursts collapse into one
// re-read.
func (a *App) signal() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

// StreamStatus reports the channel stream state. Safe to call from any
// goroutine; pass it to Stream.OnState.
func (a *App) StreamStatus(state ConnectionState, err error) {
	select {
	case a.states <- streamStateMsg{state: state, err: err}:
	default:
	}
}

// Close stops the app's background waits and detaches from the workspace
func (a *App) Close() {
	a.cancel()
	if a.unwatch != nil {
		a.unwatch()
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.waitForChange(),
		a.waitForStreamState(),
		a.spinner.Tick,
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a, a.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil

	case viewChangedMsg:
		a.refresh()
		return a, a.waitForChange()

	case streamStateMsg:
		a.stream = msg.state
		if msg.err != nil {
			a.setStatus("Channel stream: "+msg.err.Error(), true)
		}
		return a, a.waitForStreamState()

	case authDoneMsg:
		a.refresh()
		if msg.err == nil {
			// signing out later lands on the login form
			a.authMode = ViewLogin
			a.login.clearSecrets()
			a.login.set(loginEmail, msg.email)
			a.register.reset()
			a.rememberEmail(msg.email)
			a.setStatus("Signed in", false)
		} else {
			a.log.Debug(a.ctx, "auth submit failed", "error", msg.err)
		}
		return a, nil

	case channelCreatedMsg:
		a.dialogBusy = false
		if msg.err != nil {
			a.dialogError = dialogError(msg.err)
			return a, nil
		}
		a.closeDialog()
		a.setStatus("Channel created", false)
		return a, nil

	case signedOutMsg:
		a.refresh()
		a.setStatus("Signed out", false)
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	switch a.currentView() {
	case ViewRegister:
		return a.renderRegisterView()
	case ViewMain:
		return a.renderMainView()
	default:
		return a.renderLoginView()
	}
}

// currentView follows the session: signed in users always see the main view
func (a *App) currentView() View {
	if a.vm.IsAuthenticated {
		return ViewMain
	}
	return a.authMode
}

// refresh re-reads the view model and keeps the cursor in range
func (a *App) refresh() {
	a.vm = a.ws.View()

	if !a.vm.IsAuthenticated {
		a.closeDialog()
		a.cursor = 0
		a.lastActive = ""
		return
	}
	if n := len(a.vm.Channels); a.cursor >= n {
		a.cursor = max(n-1, 0)
	}

	// follow the active channel when it changes underneath the cursor
	if a.vm.ActiveChannel != nil && a.vm.ActiveChannel.ID != a.lastActive {
		a.lastActive = a.vm.ActiveChannel.ID
		for i, ch := range a.vm.Channels {
			if ch.ID == a.lastActive {
				a.cursor = i
				break
			}
		}
	}
}

// handleKeyPress handles keyboard input
func (a *App) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, a.keys.Quit) {
		a.Close()
		return tea.Quit
	}
	if key.Matches(msg, a.keys.Theme) {
		a.cycleTheme()
		return nil
	}

	switch a.currentView() {
	case ViewMain:
		if a.dialogOpen {
			return a.handleDialogKey(msg)
		}
		return a.handleMainKey(msg)
	default:
		return a.handleAuthKey(msg)
	}
}

func (a *App) activeForm() *form {
	if a.authMode == ViewRegister {
		return a.register
	}
	return a.login
}

func (a *App) handleAuthKey(msg tea.KeyMsg) tea.Cmd {
	f := a.activeForm()

	switch {
	case key.Matches(msg, a.keys.ToggleAuth):
		if a.authMode == ViewLogin {
			a.authMode = ViewRegister
		} else {
			a.authMode = ViewLogin
		}
		a.ws.EditField()
		a.refresh()
		return nil

	case key.Matches(msg, a.keys.NextField):
		f.next()
		return nil

	case key.Matches(msg, a.keys.PrevField):
		f.prev()
		return nil

	case key.Matches(msg, a.keys.Submit):
		return a.submitAuth()
	}

	cmd, changed := f.update(msg)
	if changed && len(a.vm.Errors) > 0 {
		a.ws.EditField()
		a.refresh()
	}
	return cmd
}

// submitAuth sends the visible form. Validation happens in the session
// manager so its messages show up in the view model like remote errors.
func (a *App) submitAuth() tea.Cmd {
	if a.vm.Submitting {
		return nil
	}

	if a.authMode == ViewRegister {
		creds := auth.Credentials{
			Username:             a.register.value(regUsername),
			Email:                strings.TrimSpace(a.register.value(regEmail)),
			Password:             a.register.value(regPassword),
			PasswordConfirmation: a.register.value(regConfirm),
		}
		a.vm.Submitting = true
		return submitRegistrationCmd(a.ctx, a.ws, creds)
	}

	creds := auth.Credentials{
		Email:    strings.TrimSpace(a.login.value(loginEmail)),
		Password: a.login.value(loginPassword),
	}
	a.vm.Submitting = true
	return submitLoginCmd(a.ctx, a.ws, creds)
}

func (a *App) handleMainKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)

	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)

	case key.Matches(msg, a.keys.Submit):
		if a.cursor < len(a.vm.Channels) {
			if err := a.ws.SelectChannel(a.vm.Channels[a.cursor].ID); err != nil {
				a.setStatus(err.Error(), true)
			}
			a.refresh()
		}

	case key.Matches(msg, a.keys.NewChannel):
		a.openDialog()

	case key.Matches(msg, a.keys.SignOut):
		return signOutCmd(a.ctx, a.ws)
	}
	return nil
}

func (a *App) moveCursor(delta int) {
	n := len(a.vm.Channels)
	if n == 0 {
		return
	}
	a.cursor = (a.cursor + delta + n) % n
}

func (a *App) handleDialogKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Cancel):
		a.closeDialog()
		return nil

	case key.Matches(msg, a.keys.NextField):
		a.dialog.next()
		return nil

	case key.Matches(msg, a.keys.PrevField):
		a.dialog.prev()
		return nil

	case key.Matches(msg, a.keys.Submit):
		if a.dialogBusy {
			return nil
		}
		a.dialogBusy = true
		a.dialogError = ""
		return createChannelCmd(a.ctx, a.ws, a.dialog.value(0), a.dialog.value(1))
	}

	cmd, changed := a.dialog.update(msg)
	if changed {
		a.dialogError = ""
	}
	return cmd
}

func (a *App) openDialog() {
	a.dialog.reset()
	a.dialogOpen = true
	a.dialogError = ""
	a.dialogBusy = false
}

func (a *App) closeDialog() {
	a.dialogOpen = false
	a.dialogError = ""
	a.dialogBusy = false
}

// cycleTheme switches to the next theme of the catalog
func (a *App) cycleTheme() {
	names := a.catalog.List()
	if len(names) == 0 {
		return
	}

	next := names[0]
	for i, name := range names {
		if name == a.themeName {
			next = names[(i+1)%len(names)]
			break
		}
	}

	theme, err := a.catalog.Get(next)
	if err != nil {
		a.setStatus(err.Error(), true)
		return
	}
	a.SetTheme(next, theme)
	a.setStatus("Theme: "+theme.Meta.Name, false)

	if a.prefs != nil {
		if err := a.prefs.RememberTheme(next); err != nil {
			a.log.Warn(a.ctx, "failed to save theme", "error", err)
		}
	}
}

// SetTheme sets the application theme
func (a *App) SetTheme(name string, theme *themes.Theme) {
	a.theme = theme
	a.themeName = name
	a.styles = theme.BuildStyles()
}

func (a *App) rememberEmail(email string) {
	if a.prefs == nil || email == "" {
		return
	}
	if err := a.prefs.RememberEmail(email); err != nil {
		a.log.Warn(a.ctx, "failed to save preferences", "error", err)
	}
}

func (a *App) setStatus(msg string, isErr bool) {
	a.statusMessage = msg
	a.statusError = isErr
}
