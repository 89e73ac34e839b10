package client

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// field is one labelled input of a form
type field struct {
	label string
	key   string // matched against error messages to highlight the field
	input textinput.Model
}

// form is a vertical list of inputs with a single focused field
type form struct {
	fields []field
	focus  int
}

func newField(label, key, placeholder string, secret bool) field {
	in := textinput.New()
	in.Placeholder = placeholder
	in.CharLimit = 256
	in.Width = 34
	if secret {
		in.EchoMode = textinput.EchoPassword
		in.EchoCharacter = '•'
	}
	return field{label: label, key: key, input: in}
}

func newForm(fields ...field) *form {
	f := &form{fields: fields}
	f.setFocus(0)
	return f
}

func (f *form) setFocus(i int) {
	if len(f.fields) == 0 {
		return
	}
	f.focus = (i + len(f.fields)) % len(f.fields)
	for j := range f.fields {
		if j == f.focus {
			f.fields[j].input.Focus()
		} else {
			f.fields[j].input.Blur()
		}
	}
}

func (f *form) next() { f.setFocus(f.focus + 1) }
func (f *form) prev() { f.setFocus(f.focus - 1) }

// value returns the text of field i
func (f *form) value(i int) string {
	return f.fields[i].input.Value()
}

func (f *form) set(i int, v string) {
	f.fields[i].input.SetValue(v)
}

// reset clears every field and focuses the first
func (f *form) reset() {
	for i := range f.fields {
		f.fields[i].input.Reset()
	}
	f.setFocus(0)
}

// clearSecrets empties password fields
func (f *form) clearSecrets() {
	for i := range f.fields {
		if f.fields[i].input.EchoMode == textinput.EchoPassword {
			f.fields[i].input.Reset()
		}
	}
}

// update forwards msg to the focused input and reports whether its text
// changed
func (f *form) update(msg tea.Msg) (tea.Cmd, bool) {
	if len(f.fields) == 0 {
		return nil, false
	}
	before := f.fields[f.focus].input.Value()
	var cmd tea.Cmd
	f.fields[f.focus].input, cmd = f.fields[f.focus].input.Update(msg)
	return cmd, f.fields[f.focus].input.Value() != before
}
