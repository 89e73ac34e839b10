package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChannel_TrimsFields(t *testing.T) {
	c := NewChannel("k1", "  general ", " talk\n", Creator{Name: "alice"})

	assert.Equal(t, "k1", c.ID)
	assert.Equal(t, "general", c.Name)
	assert.Equal(t, "talk", c.Details)
	assert.Equal(t, "# general", c.Label())
}

func TestChannel_JSONFieldNames(t *testing.T) {
	c := NewChannel("k1", "general", "talk", Creator{Name: "alice", Avatar: "http://a"})

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "createdby")
	assert.Equal(t, "alice", raw["createdby"].(map[string]any)["name"])
}

func TestAccount_GetDisplayName(t *testing.T) {
	a := NewAccount("a@b.com")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, "a@b.com", a.GetDisplayName())

	a.SetProfile("alice", "http://avatar")
	assert.Equal(t, "alice", a.GetDisplayName())
	assert.Equal(t, "http://avatar", a.PhotoURL)
}

func TestAccount_PasswordHashNotSerialized(t *testing.T) {
	a := NewAccount("a@b.com")
	a.PasswordHash = "secret"

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
}
