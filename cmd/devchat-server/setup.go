package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/concord-chat/devchat/internal/server"
	"github.com/concord-chat/devchat/pkg/crypto"
)

var errSetupCancelled = errors.New("setup cancelled")

// setupModel is a minimal bubbletea model for first-run server configuration.
type setupModel struct {
	inputs    []textinput.Model
	focused   int
	done      bool
	cancelled bool
	err       string
}

const (
	fieldHost = iota
	fieldPort
	fieldDB
	fieldTTL
	numFields
)

var fieldLabels = [numFields]string{"Bind Host", "Port", "Database Path", "Session Lifetime"}

func newSetupModel() setupModel {
	defaults := server.DefaultConfig()
	inputs := make([]textinput.Model, numFields)

	values := [numFields]string{
		defaults.Host,
		strconv.Itoa(defaults.Port),
		defaults.DatabasePath,
		defaults.TokenTTL.String(),
	}
	limits := [numFields]int{64, 5, 256, 16}

	for i := range inputs {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = values[i]
		inputs[i].SetValue(values[i])
		inputs[i].CharLimit = limits[i]
	}
	inputs[fieldHost].Focus()

	return setupModel{inputs: inputs}
}

func (m setupModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit

		case "tab", "down", "enter":
			if msg.String() == "enter" && m.focused == numFields-1 {
				if _, err := m.config(); err != nil {
					m.err = err.Error()
					return m, nil
				}
				m.done = true
				return m, tea.Quit
			}
			m.move(1)
			return m, nil

		case "shift+tab", "up":
			m.move(-1)
			return m, nil
		}
	}

	// Forward key events to focused input
	var cmd tea.Cmd
	m.inputs[m.focused], cmd = m.inputs[m.focused].Update(msg)
	m.err = ""
	return m, cmd
}

func (m *setupModel) move(delta int) {
	m.inputs[m.focused].Blur()
	m.focused = (m.focused + delta + numFields) % numFields
	m.inputs[m.focused].Focus()
}

// config builds a server config from the form
func (m setupModel) config() (*server.Config, error) {
	cfg := server.DefaultConfig()

	if host := strings.TrimSpace(m.inputs[fieldHost].Value()); host != "" {
		cfg.Host = host
	}

	port, err := strconv.Atoi(strings.TrimSpace(m.inputs[fieldPort].Value()))
	if err != nil || port < 1 || port > 65535 {
		return nil, errors.New("Port must be a number between 1 and 65535.")
	}
	cfg.Port = port

	if db := strings.TrimSpace(m.inputs[fieldDB].Value()); db != "" {
		cfg.DatabasePath = db
	}

	ttl, err := time.ParseDuration(strings.TrimSpace(m.inputs[fieldTTL].Value()))
	if err != nil || ttl < time.Minute {
		return nil, errors.New("Session lifetime must be a duration like 168h, at least 1m.")
	}
	cfg.TokenTTL = server.Duration{Duration: ttl}

	return cfg, nil
}

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#bd93f9")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272a4"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555"))
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#f8f8f2")).
			Background(lipgloss.Color("#bd93f9")).
			Bold(true).
			Padding(0, 2)
)

func (m setupModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("devchat server setup"))
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("Tab/↑↓ to navigate · Enter on last field to confirm · Esc to cancel"))
	b.WriteString("\n\n")

	for i, label := range fieldLabels {
		b.WriteString(labelStyle.Render(label))
		b.WriteString("\n")
		b.WriteString("  " + m.inputs[i].View())
		b.WriteString("\n\n")
	}

	if m.err != "" {
		b.WriteString(errStyle.Render("  ⚠ " + m.err))
		b.WriteString("\n")
	}

	return b.String()
}

// runSetup runs the interactive setup, generates a token secret and writes
// the result to path.
func runSetup(path string) (*server.Config, error) {
	result, err := tea.NewProgram(newSetupModel()).Run()
	if err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	final := result.(setupModel)
	if final.cancelled || !final.done {
		return nil, errSetupCancelled
	}

	cfg, err := final.config()
	if err != nil {
		return nil, err
	}

	cfg.JWTSecret, err = crypto.GenerateSecret(32)
	if err != nil {
		return nil, err
	}

	if err := server.WriteConfig(path, cfg); err != nil {
		return nil, err
	}

	fmt.Printf("\nConfig written to %s\n", path)
	fmt.Printf("Clients connect to: http://%s\n\n", cfg.Addr())
	return cfg, nil
}
