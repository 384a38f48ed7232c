// Package main provides a CLI for the orchestration backend and the local
// dashboard layout.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/config"
	"github.com/tcmartin/crewdeck/pkg/logging"
)

// app holds the global flags and what is built from them
type app struct {
	serverURL  string
	token      string
	configPath string
	jsonOut    bool
	verbose    bool

	cfg    *config.Config
	client *client.Client
	logger *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %s", describeError(err)))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "crewdeck-cli",
		Short:         "crewdeck CLI",
		Long:          "Command-line interface for agents, crews, flows and their executions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.serverURL, "server", "", "Backend URL (overrides api.base_url)")
	rootCmd.PersistentFlags().StringVar(&a.token, "token", "", "API token (overrides api.token)")
	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "Print raw JSON")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log requests and channel activity")

	rootCmd.AddCommand(
		a.agentsCmd(),
		a.tasksCmd(),
		a.crewsCmd(),
		a.flowsCmd(),
		a.knowledgeCmd(),
		a.toolsCmd(),
		a.triggersCmd(),
		a.templatesCmd(),
		a.executionsCmd(),
		a.widgetsCmd(),
		a.meCmd(),
	)
	return rootCmd
}

// setup loads the configuration and applies flag overrides
func (a *app) setup(stderr io.Writer) error {
	path := a.configPath
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".crewdeck", "config.yaml")
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if a.serverURL != "" {
		cfg.API.BaseURL = a.serverURL
	}
	if a.token != "" {
		cfg.API.Token = a.token
	}
	a.cfg = cfg

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	if a.verbose {
		logCfg.Level = "debug"
	}
	a.logger = logging.New(logCfg, stderr)
	return nil
}

// backend returns the API client, building it on first use
func (a *app) backend() (*client.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	if a.cfg.API.BaseURL == "" {
		return nil, errors.New("server URL is required (--server or api.base_url)")
	}
	c, err := client.New(a.cfg.API.BaseURL,
		client.WithToken(a.cfg.API.Token),
		client.WithTimeout(a.cfg.API.Timeout.Std()),
		client.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	a.client = c
	return c, nil
}

// describeError shortens backend errors to what the user can act on
func describeError(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return apiErr.Detail + " (check --token)"
		case 404:
			return "not found: " + apiErr.Detail
		}
	}
	return err.Error()
}
