package client

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the client reacts to
type keyMap struct {
	Quit       key.Binding
	NextField  key.Binding
	PrevField  key.Binding
	Submit     key.Binding
	ToggleAuth key.Binding
	NewChannel key.Binding
	Up         key.Binding
	Down       key.Binding
	SignOut    key.Binding
	Theme      key.Binding
	Cancel     key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		NextField:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		PrevField:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev field")),
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit")),
		ToggleAuth: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "login/register")),
		NewChannel: key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "add channel")),
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		SignOut:    key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "sign out")),
		Theme:      key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "theme")),
		Cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
	}
}

// authHelp is the help line of the login and register screens
func (k keyMap) authHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.ToggleAuth, k.Theme, k.Quit}
}

// mainHelp is the help line of the channel screen
func (k keyMap) mainHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Submit, k.NewChannel, k.SignOut, k.Theme, k.Quit}
}

// dialogHelp is the help line of the add channel dialog
func (k keyMap) dialogHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.Cancel}
}
