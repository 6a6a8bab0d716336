package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"syncqueue-client/internal/auth"
	"syncqueue-client/internal/client"
	"syncqueue-client/internal/config"
	"syncqueue-client/internal/logger"
	"syncqueue-client/internal/sync"
	"syncqueue-client/internal/syncqueue"
)

// app is the state shared by every subcommand once the config is loaded.
type app struct {
	configPath string
	assumeYes  bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg    *config.Config
	client *client.Client
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Inspect and manage the immunization backend's sync queue",
		Long: `syncctl talks to the backend's /sync endpoints to show offline sync queue
items, retry or clear them, force a full sync, and export the queue as CSV.

Configuration is read from config.yaml (or --config), a .env file, and
SYNCCTL_* environment variables, e.g. SYNCCTL_API_BASE_URL and SYNCCTL_AUTH_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&a.assumeYes, "yes", "y", false, "Skip confirmation for destructive commands")

	rootCmd.AddGroup(
		&cobra.Group{ID: "view", Title: "Viewing the queue:"},
		&cobra.Group{ID: "manage", Title: "Managing items:"},
	)

	rootCmd.AddCommand(
		newListCmd(a),
		newGetCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newRetryCmd(a),
		newRetryAllCmd(a),
		newClearCmd(a),
		newClearSyncedCmd(a),
		newClearFailedCmd(a),
		newSyncAllCmd(a),
		newServeCmd(a),
	)

	return rootCmd
}

func (a *app) setup() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}

	c, err := client.New(cfg.API.BaseURL, cfg.API.GetTimeout(), auth.NewTokenSource(cfg.Auth.Token, cfg.Auth.TokenFile))
	if err != nil {
		return fmt.Errorf("failed to init client: %w", err)
	}

	a.cfg = cfg
	a.client = c
	return nil
}

// newManager builds a view bound to the terminal.
func (a *app) newManager() *sync.Manager {
	return sync.NewManager(a.client, &terminalNotifier{w: a.errOut}, noopBusy{}, &terminalNavigator{w: a.errOut}, a.viewOptions())
}

func (a *app) viewOptions() sync.Options {
	f, err := syncqueue.ParseFilter(a.cfg.View.DefaultFilter)
	if err != nil {
		f = syncqueue.FilterAll
	}
	return sync.Options{
		Route:      a.cfg.View.Route,
		LoginRoute: a.cfg.View.LoginRoute,
		Filter:     f,
	}
}

// confirm asks prompt on the terminal unless --yes was given.
func (a *app) confirm(prompt string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

type noopBusy struct{}

func (noopBusy) Show() {}
func (noopBusy) Hide() {}
