package themes

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

//go:embed themes/*.toml
var embeddedThemes embed.FS

// ErrThemeNotFound is returned when no theme matches a name
var ErrThemeNotFound = errors.New("theme not found")

// Catalog resolves theme names. Files in UserDir override the bundled
// themes of the same name.
type Catalog struct {
	UserDir string
}

// Get loads a theme by name. An empty name means dracula.
func (c Catalog) Get(name string) (*Theme, error) {
	if name == "" {
		name = "dracula"
	}
	if strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, name)
	}

	if c.UserDir != "" {
		path := filepath.Join(c.UserDir, name+".toml")
		if _, err := os.Stat(path); err == nil {
			return LoadTheme(path)
		}
	}

	data, err := embeddedThemes.ReadFile("themes/" + name + ".toml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrThemeNotFound, name)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("bundled theme %q: %w", name, err)
	}
	return t, nil
}

// List returns the bundled theme names followed by any user themes, sorted
// within each group.
func (c Catalog) List() []string {
	seen := make(map[string]bool)
	var names []string

	collect := func(entries []fs.DirEntry) {
		var group []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
				continue
			}
			name := strings.TrimSuffix(e.Name(), ".toml")
			if !seen[name] {
				seen[name] = true
				group = append(group, name)
			}
		}
		sort.Strings(group)
		names = append(names, group...)
	}

	entries, _ := fs.ReadDir(embeddedThemes, "themes")
	collect(entries)

	if c.UserDir != "" {
		userEntries, _ := os.ReadDir(c.UserDir)
		collect(userEntries)
	}
	return names
}
