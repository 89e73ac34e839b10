package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/concord-chat/devchat/internal/client"
	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/remote"
	"github.com/concord-chat/devchat/internal/remote/memory"
	"github.com/concord-chat/devchat/internal/themes"
	"github.com/concord-chat/devchat/internal/workspace"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file")
	serverAddr := flag.String("server", "", "Server address (overrides config)")
	themeName := flag.String("theme", "", "Theme name (overrides config)")
	offline := flag.Bool("offline", false, "Run against an in-memory backend instead of a server")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	config := client.DefaultConfig()
	if *configPath == "" {
		*configPath = client.FindConfig()
	}
	if *configPath != "" {
		if err := client.LoadConfig(*configPath, config); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Apply command line overrides
	if *serverAddr != "" {
		config.Server.Address = *serverAddr
	}
	if *debug {
		config.Debug = true
	}

	prefs, err := client.NewConfigManager("")
	if err != nil {
		log.Fatalf("Failed to prepare config directory: %v", err)
	}

	// stdout belongs to the terminal UI, so logs go to a file
	logFile := config.LogFile
	if logFile == "" {
		logFile = filepath.Join(prefs.Dir(), "devchat.log")
	}
	out, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		log.Printf("Warning: cannot open log file %s: %v", logFile, err)
		out = nil
	}
	var w io.Writer = io.Discard
	if out != nil {
		defer out.Close()
		w = out
	}
	logger := logging.NewText(w, config.Debug)

	// Theme: flag, then the last one picked in the client, then config
	catalog := themes.Catalog{UserDir: filepath.Join(prefs.Dir(), "themes")}
	name := config.Theme
	if p, err := prefs.LoadPreferences(); err == nil && p.Theme != "" {
		name = p.Theme
	}
	if *themeName != "" {
		name = *themeName
	}
	theme, err := catalog.Get(name)
	if err != nil {
		logger.Warn(context.Background(), "failed to load theme, using default", "theme", name, "error", err)
		name, theme = "dracula", themes.GetDefaultTheme()
	}

	var (
		services remote.Services
		stream   *client.Stream
		address  string
	)
	if *offline {
		services = memory.NewBackend().Services()
		address = "offline"
	} else {
		api, err := client.NewAPI(config.Server.Address, logger.With("component", "api"))
		if err != nil {
			log.Fatalf("Invalid server address: %v", err)
		}
		stream = client.NewStream(api, nil, logger.With("component", "stream"))
		services = remote.Services{Identity: api, Users: api, Channels: stream}
		address = api.BaseURL().Host
	}

	ws := workspace.New(services, logger)
	defer ws.Close()

	app := client.NewApp(ws, client.AppOptions{
		Theme:     theme,
		ThemeName: name,
		Themes:    catalog,
		Prefs:     prefs,
		Log:       logger.With("component", "tui"),
		Address:   address,
	})
	if stream != nil {
		stream.OnState(app.StreamStatus)
	}

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}
}
