package themes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FillsSemanticFromPalette(t *testing.T) {
	th, err := Parse([]byte(`
[meta]
name = "Mono"
[colors]
foreground = "#FFFFFF"
red = "#FF0000"
purple = "#AA00AA"
[semantic]
title = "#00FF00"
`))
	require.NoError(t, err)

	assert.Equal(t, "Mono", th.Meta.Name)
	assert.Equal(t, "#00FF00", th.Semantic.Title)
	assert.Equal(t, "#FF0000", th.Semantic.Error)
	assert.Equal(t, "#AA00AA", th.Semantic.InputBorderFocus)
	assert.Equal(t, "#FFFFFF", th.Semantic.Details)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("not = [toml"))
	assert.Error(t, err)

	_, err = Parse([]byte("[meta]\nname = \"x\"\n"))
	assert.Error(t, err, "palette without foreground")
}

func TestCatalog_Bundled(t *testing.T) {
	c := Catalog{}

	names := c.List()
	assert.Equal(t, []string{"dracula", "nord", "solarized-light"}, names)

	for _, name := range names {
		th, err := c.Get(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, th.Meta.Name)
		assert.NotNil(t, th.BuildStyles())
	}

	th, err := c.Get("")
	require.NoError(t, err)
	assert.Equal(t, "Dracula", th.Meta.Name)
}

func TestCatalog_UserOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nord.toml"), []byte(`
[meta]
name = "My Nord"
[colors]
foreground = "#EEEEEE"
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.toml"), []byte(`
[meta]
name = "Custom"
[colors]
foreground = "#111111"
`), 0o644))

	c := Catalog{UserDir: dir}

	th, err := c.Get("nord")
	require.NoError(t, err)
	assert.Equal(t, "My Nord", th.Meta.Name)

	assert.Equal(t, []string{"dracula", "nord", "solarized-light", "custom"}, c.List())
}

func TestCatalog_NotFound(t *testing.T) {
	c := Catalog{UserDir: t.TempDir()}

	_, err := c.Get("missing")
	assert.ErrorIs(t, err, ErrThemeNotFound)

	_, err = c.Get("../etc/passwd")
	assert.ErrorIs(t, err, ErrThemeNotFound)
}

func TestGetDefaultTheme(t *testing.T) {
	th := GetDefaultTheme()
	assert.Equal(t, "Dracula", th.Meta.Name)
	assert.Equal(t, th.Colors.Red, th.Semantic.Error)
}
