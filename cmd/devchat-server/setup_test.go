package main

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupModel_Defaults(t *testing.T) {
	cfg, err := newSetupModel().config()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "devchat.db", cfg.DatabasePath)
	assert.Equal(t, 7*24*time.Hour, cfg.TokenTTL.Duration)
}

func TestSetupModel_Validation(t *testing.T) {
	tests := []struct {
		name  string
		field int
		value string
	}{
		{name: "port not a number", field: fieldPort, value: "http"},
		{name: "port out of range", field: fieldPort, value: "70000"},
		{name: "bad lifetime", field: fieldTTL, value: "forever"},
		{name: "lifetime too short", field: fieldTTL, value: "5s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newSetupModel()
			m.inputs[tt.field].SetValue(tt.value)
			_, err := m.config()
			assert.Error(t, err)
		})
	}
}

func TestSetupModel_EnterOnLastField(t *testing.T) {
	var model tea.Model = newSetupModel()
	for i := 0; i < numFields-1; i++ {
		model, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	}
	require.Equal(t, fieldTTL, model.(setupModel).focused)

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, model.(setupModel).done)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSetupModel_Cancel(t *testing.T) {
	model, cmd := newSetupModel().Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, model.(setupModel).cancelled)
	require.NotNil(t, cmd)
}

func TestRootCommand_Version(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "devchat-server "+version+"\n", out.String())
}
