package client

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	formWidth    = 52
	sidebarWidth = 28
)

// renderLoginView renders the login screen
func (a *App) renderLoginView() string {
	return a.renderAuthBox("Sign in to devchat", a.login, "Login", "No account? ctrl+r to register")
}

// renderRegisterView renders the registration screen
func (a *App) renderRegisterView() string {
	return a.renderAuthBox("Create a devchat account", a.register, "Register", "Have an account? ctrl+r to sign in")
}

func (a *App) renderAuthBox(title string, f *form, button, hint string) string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render(title))
	b.WriteString("\n\n")
	b.WriteString(a.renderForm(f, true))

	if len(a.vm.Errors) > 0 {
		for _, e := range a.vm.Errors {
			b.WriteString(a.styles.Error.Render("⚠ " + e))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if a.vm.Submitting {
		b.WriteString(a.spinner.View() + " " + a.styles.Muted.Render("Submitting..."))
	} else {
		b.WriteString(a.styles.Button.Render(button))
	}
	b.WriteString("\n\n")
	b.WriteString(a.styles.Muted.Render(hint))
	b.WriteString("\n")
	b.WriteString(a.help.ShortHelpView(a.keys.authHelp()))

	box := a.styles.Dialog.Width(formWidth).Render(b.String())
	return a.place(box)
}

// renderForm draws every field of f. Fields named by an error message get
// the error border when markErrors is set.
func (a *App) renderForm(f *form, markErrors bool) string {
	var b strings.Builder
	for i, fl := range f.fields {
		style := a.styles.InputField
		if i == f.focus {
			style = a.styles.InputFocused
		}
		if markErrors && a.vm.HasFieldError(fl.key) {
			style = style.BorderForeground(lipgloss.Color(a.theme.Semantic.Error))
		}
		b.WriteString(a.styles.Label.Render(fl.label))
		b.WriteString("\n")
		b.WriteString(style.Width(formWidth - 8).Render(fl.input.View()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// renderMainView renders the channel directory
func (a *App) renderMainView() string {
	if a.dialogOpen {
		return a.place(a.renderDialog())
	}

	height := max(a.height-2, 10)

	sidebar := a.styles.Sidebar.
		Width(sidebarWidth).
		Height(height).
		Render(a.renderSidebar())

	contentWidth := max(a.width-sidebarWidth-4, 20)
	content := lipgloss.NewStyle().
		Width(contentWidth).
		Height(height).
		Padding(0, 2).
		Render(a.renderChannel())

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, content)
	return lipgloss.JoinVertical(lipgloss.Left, body, a.renderStatusBar())
}

// renderSidebar lists the channels, highlighting the active one
func (a *App) renderSidebar() string {
	var b strings.Builder

	b.WriteString(a.styles.SidebarHeader.Render(fmt.Sprintf("CHANNELS (%d)", len(a.vm.Channels))))
	b.WriteString("\n")

	if len(a.vm.Channels) == 0 {
		b.WriteString(a.styles.Muted.Render("No channels yet"))
		b.WriteString("\n")
	}

	for i, ch := range a.vm.Channels {
		label := truncate(ch.Label(), sidebarWidth-3)
		prefix := "  "
		if i == a.cursor {
			prefix = "› "
		}

		style := a.styles.SidebarItem
		if a.vm.IsChannelActive(ch.ID) {
			style = a.styles.SidebarSelected
		}
		b.WriteString(style.Render(prefix + label))
		b.WriteString("\n")
	}

	if u := a.vm.CurrentUser; u != nil {
		b.WriteString("\n")
		b.WriteString(a.styles.Creator.Render("@ " + truncate(u.DisplayName(), sidebarWidth-4)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderChannel shows the active channel
func (a *App) renderChannel() string {
	ch := a.vm.ActiveChannel
	if ch == nil {
		return a.styles.Muted.Render("Select a channel, or press ctrl+n to add one.")
	}

	var b strings.Builder
	b.WriteString(a.styles.Title.Render(ch.Label()))
	b.WriteString("\n\n")
	b.WriteString(a.styles.Details.Render(ch.Details))
	b.WriteString("\n\n")
	if ch.CreatedBy.Name != "" {
		b.WriteString(a.styles.Muted.Render("created by "))
		b.WriteString(a.styles.Creator.Render(ch.CreatedBy.Name))
		b.WriteString("\n")
	}
	return b.String()
}

// renderDialog renders the Add a Channel dialog
func (a *App) renderDialog() string {
	var b strings.Builder

	b.WriteString(a.styles.Title.Render("Add a Channel"))
	b.WriteString("\n\n")
	b.WriteString(a.renderForm(a.dialog, false))

	if a.dialogError != "" {
		b.WriteString(a.styles.Error.Render("⚠ " + a.dialogError))
		b.WriteString("\n\n")
	}

	if a.dialogBusy {
		b.WriteString(a.spinner.View() + " " + a.styles.Muted.Render("Creating..."))
	} else {
		b.WriteString(a.styles.Button.Render("Create"))
	}
	b.WriteString("\n\n")
	b.WriteString(a.help.ShortHelpView(a.keys.dialogHelp()))

	return a.styles.Dialog.Width(formWidth).Render(b.String())
}

// renderStatusBar shows the stream state, the last status and key help
func (a *App) renderStatusBar() string {
	var parts []string

	state := a.stream.String()
	switch a.stream {
	case StateReady:
		parts = append(parts, a.styles.Success.Render("● "+state))
	case StateReconnecting, StateConnecting:
		parts = append(parts, a.styles.Warning.Render(a.spinner.View()+" "+state))
	case StateError:
		parts = append(parts, a.styles.Error.Render("● "+state))
	default:
		parts = append(parts, a.styles.Muted.Render("○ "+state))
	}

	if a.address != "" {
		parts = append(parts, a.styles.Muted.Render(a.address))
	}

	if a.vm.SyncError != "" {
		parts = append(parts, a.styles.Error.Render("sync: "+a.vm.SyncError))
	}

	if a.statusMessage != "" {
		style := a.styles.Success
		if a.statusError {
			style = a.styles.Error
		}
		parts = append(parts, style.Render(a.statusMessage))
	}

	return strings.Join(parts, "  ") + "\n" + a.help.ShortHelpView(a.keys.mainHelp())
}

// place centers box in the window
func (a *App) place(box string) string {
	if a.width == 0 || a.height == 0 {
		return box
	}
	return lipgloss.Place(a.width, a.height, lipgloss.Center, lipgloss.Center, box)
}

// truncate shortens s to n runes, adding an ellipsis when cut
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
