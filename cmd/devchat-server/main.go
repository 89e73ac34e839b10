package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/concord-chat/devchat/internal/logging"
	"github.com/concord-chat/devchat/internal/server"
)

var version = "0.1.0"

// configFilename is the config file setup writes and serve looks for
const configFilename = "devchat-server.toml"

type serveFlags struct {
	configPath string
	host       string
	port       int
	dbPath     string
	debug      bool
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &serveFlags{}

	root := &cobra.Command{
		Use:           "devchat-server",
		Short:         "Host accounts, the user directory and the channel log for devchat",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), flags)
		},
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file")
	root.PersistentFlags().StringVar(&flags.host, "host", "", "Host to bind to (overrides config)")
	root.PersistentFlags().IntVar(&flags.port, "port", 0, "Port to bind to (overrides config)")
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "", "Path to database file (overrides config)")
	root.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context(), flags)
			},
		},
		&cobra.Command{
			Use:   "setup",
			Short: "Write " + configFilename + " interactively",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, err := runSetup(configFilename)
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "devchat-server", version)
			},
		},
	)

	return root
}

// loadServeConfig resolves the config: an explicit --config, then the file in
// the working directory, then first-run setup when attached to a terminal,
// and finally the defaults.
func loadServeConfig(flags *serveFlags) (*server.Config, error) {
	config := server.DefaultConfig()

	switch {
	case flags.configPath != "":
		if err := server.LoadConfig(flags.configPath, config); err != nil {
			return nil, err
		}
	case fileExists(configFilename):
		if err := server.LoadConfig(configFilename, config); err != nil {
			return nil, err
		}
	case term.IsTerminal(int(os.Stdin.Fd())):
		cfg, err := runSetup(configFilename)
		if err != nil {
			return nil, err
		}
		config = cfg
	}

	// Apply command line overrides
	if flags.host != "" {
		config.Host = flags.host
	}
	if flags.port != 0 {
		config.Port = flags.port
	}
	if flags.dbPath != "" {
		config.DatabasePath = flags.dbPath
	}
	if flags.debug {
		config.Debug = true
	}
	return config, nil
}

func runServe(ctx context.Context, flags *serveFlags) error {
	config, err := loadServeConfig(flags)
	if err != nil {
		return err
	}

	printBanner()
	log := logging.NewText(os.Stderr, config.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(config, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(ctx)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func printBanner() {
	banner := `
      _            _           _
   __| | _____   _| |__   __ _| |_
  / _' |/ _ \ \ / / '_ \ / _' | __|
 | (_| |  __/\ V /| | | | (_| | |_
  \__,_|\___| \_/ |_| |_|\__,_|\__|

  Channel Directory Server v` + version + `
`
	fmt.Println(banner)
}
