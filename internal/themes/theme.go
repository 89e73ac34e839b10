// Package themes loads color themes and turns them into lipgloss styles for
// the terminal client.
package themes

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/pelletier/go-toml/v2"
)

// Theme is a color theme for the devchat client
type Theme struct {
	Meta     ThemeMeta      `toml:"meta"`
	Colors   ThemeColors    `toml:"colors"`
	Semantic SemanticColors `toml:"semantic"`
}

// ThemeMeta contains metadata about the theme
type ThemeMeta struct {
	Name    string `toml:"name"`
	Author  string `toml:"author"`
	Variant string `toml:"variant"` // "dark" or "light"
}

// ThemeColors is the base palette
type ThemeColors struct {
	Background string `toml:"background"`
	Selection  string `toml:"selection"`
	Foreground string `toml:"foreground"`
	Comment    string `toml:"comment"`
	Red        string `toml:"red"`
	Orange     string `toml:"orange"`
	Green      string `toml:"green"`
	Cyan       string `toml:"cyan"`
	Purple     string `toml:"purple"`
}

// SemanticColors maps colors to UI roles. Empty values fall back to the
// palette in fill.
type SemanticColors struct {
	SidebarFg       string `toml:"sidebar_fg"`
	SidebarSelected string `toml:"sidebar_selected"`
	SidebarHeader   string `toml:"sidebar_header"`

	Title   string `toml:"title"`
	Details string `toml:"details"`
	Creator string `toml:"creator"`

	InputFg          string `toml:"input_fg"`
	InputBorder      string `toml:"input_border"`
	InputBorderFocus string `toml:"input_border_focus"`

	Error   string `toml:"error"`
	Warning string `toml:"warning"`
	Success string `toml:"success"`
	Border  string `toml:"border"`
}

// Styles contains pre-computed lipgloss styles for the theme
type Styles struct {
	App lipgloss.Style

	// Sidebar
	Sidebar         lipgloss.Style
	SidebarHeader   lipgloss.Style
	SidebarItem     lipgloss.Style
	SidebarSelected lipgloss.Style

	// Channel pane
	Title   lipgloss.Style
	Details lipgloss.Style
	Creator lipgloss.Style
	Muted   lipgloss.Style

	// Forms and dialogs
	Dialog       lipgloss.Style
	Label        lipgloss.Style
	InputField   lipgloss.Style
	InputFocused lipgloss.Style
	Button       lipgloss.Style

	// Feedback
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style

	Border lipgloss.Style
}

// Parse decodes a TOML theme and fills unset semantic colors
func Parse(data []byte) (*Theme, error) {
	var t Theme
	if err := toml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse theme: %w", err)
	}
	if t.Colors.Foreground == "" {
		return nil, fmt.Errorf("failed to parse theme: colors.foreground is required")
	}
	t.fill()
	return &t, nil
}

// LoadTheme loads a theme from a TOML file
func LoadTheme(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read theme file: %w", err)
	}
	return Parse(data)
}

func (t *Theme) fill() {
	def := func(v *string, fallback string) {
		if *v == "" {
			*v = fallback
		}
	}
	c, s := t.Colors, &t.Semantic
	def(&s.SidebarFg, c.Foreground)
	def(&s.SidebarSelected, c.Selection)
	def(&s.SidebarHeader, c.Comment)
	def(&s.Title, c.Purple)
	def(&s.Details, c.Foreground)
	def(&s.Creator, c.Cyan)
	def(&s.InputFg, c.Foreground)
	def(&s.InputBorder, c.Comment)
	def(&s.InputBorderFocus, c.Purple)
	def(&s.Error, c.Red)
	def(&s.Warning, c.Orange)
	def(&s.Success, c.Green)
	def(&s.Border, c.Comment)
}

// BuildStyles creates lipgloss styles from a theme
func (t *Theme) BuildStyles() *Styles {
	s := &Styles{}
	color := func(v string) lipgloss.Color { return lipgloss.Color(v) }

	s.App = lipgloss.NewStyle().
		Foreground(color(t.Colors.Foreground))

	s.Sidebar = lipgloss.NewStyle().
		Foreground(color(t.Semantic.SidebarFg)).
		Border(lipgloss.NormalBorder(), false, true, false, false).
		BorderForeground(color(t.Semantic.Border)).
		Padding(0, 1)

	s.SidebarHeader = lipgloss.NewStyle().
		Foreground(color(t.Semantic.SidebarHeader)).
		Bold(true).
		MarginBottom(1)

	s.SidebarItem = lipgloss.NewStyle().
		Foreground(color(t.Semantic.SidebarFg)).
		PaddingLeft(1)

	s.SidebarSelected = lipgloss.NewStyle().
		Background(color(t.Semantic.SidebarSelected)).
		Foreground(color(t.Semantic.SidebarFg)).
		PaddingLeft(1).
		Bold(true)

	s.Title = lipgloss.NewStyle().
		Foreground(color(t.Semantic.Title)).
		Bold(true)

	s.Details = lipgloss.NewStyle().
		Foreground(color(t.Semantic.Details))

	s.Creator = lipgloss.NewStyle().
		Foreground(color(t.Semantic.Creator))

	s.Muted = lipgloss.NewStyle().
		Foreground(color(t.Colors.Comment)).
		Italic(true)

	s.Dialog = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(t.Semantic.InputBorderFocus)).
		Padding(1, 2)

	s.Label = lipgloss.NewStyle().
		Foreground(color(t.Colors.Comment))

	s.InputField = lipgloss.NewStyle().
		Foreground(color(t.Semantic.InputFg)).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(t.Semantic.InputBorder)).
		Padding(0, 1)

	s.InputFocused = s.InputField.
		BorderForeground(color(t.Semantic.InputBorderFocus))

	s.Button = lipgloss.NewStyle().
		Foreground(color(t.Colors.Background)).
		Background(color(t.Semantic.InputBorderFocus)).
		Padding(0, 2).
		Bold(true)

	s.Error = lipgloss.NewStyle().Foreground(color(t.Semantic.Error))
	s.Warning = lipgloss.NewStyle().Foreground(color(t.Semantic.Warning))
	s.Success = lipgloss.NewStyle().Foreground(color(t.Semantic.Success))

	s.Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color(t.Semantic.Border))

	return s
}

// GetDefaultTheme returns the built-in Dracula theme
func GetDefaultTheme() *Theme {
	t := &Theme{
		Meta: ThemeMeta{
			Name:    "Dracula",
			Author:  "Zeno Rocha",
			Variant: "dark",
		},
		Colors: ThemeColors{
			Background: "#282A36",
			Selection:  "#44475A",
			Foreground: "#F8F8F2",
			Comment:    "#6272A4",
			Red:        "#FF5555",
			Orange:     "#FFB86C",
			Green:      "#50FA7B",
			Cyan:       "#8BE9FD",
			Purple:     "#BD93F9",
		},
	}
	t.fill()
	return t
}
