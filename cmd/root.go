package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CandyFlex/pinch/internal/applog"
	"github.com/CandyFlex/pinch/internal/auth"
	"github.com/CandyFlex/pinch/internal/monitor"
	"github.com/CandyFlex/pinch/internal/notify"
	"github.com/CandyFlex/pinch/internal/settings"
	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/store"
	"github.com/CandyFlex/pinch/internal/usageapi"
	"github.com/CandyFlex/pinch/internal/webserver"
)

var (
	settingsPath string
	verbose      bool
)

var rootCmd = &cobra.Command{
	Use:   "pinch",
	Short: "Claude usage monitor",
	Long: `Pinch — know your limits before they know you.

Polls the Claude OAuth usage API and publishes percent, severity, and
time-to-reset to local display surfaces (terminal dashboard, status server).
Run with no arguments to start the background monitor.`,
	RunE:          runDaemon,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "settings", "",
		"settings file (default ~/.pinch/settings.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"debug logging to stderr")
	rootCmd.AddCommand(testAPICmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(configCmd)
}

func settingsFile() string {
	if settingsPath != "" {
		return settingsPath
	}
	return settings.DefaultPath()
}

func loadSettings() settings.Settings {
	s, err := settings.Load(settingsFile())
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load settings: %v\n", err)
		return settings.Defaults()
	}
	return s
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg := loadSettings()

	logger, logCloser, err := applog.Init(applog.Options{
		Path:    settings.LogPath(),
		Level:   cfg.LogLevel,
		Verbose: verbose,
	})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logCloser.Close()

	snapshots, err := store.Open(settings.DBPath())
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer snapshots.Close()
	if err := snapshots.Migrate(); err != nil {
		return fmt.Errorf("migrate snapshot store: %w", err)
	}

	st := state.NewStore()
	mon := monitor.New(monitor.Config{
		Fetcher:         usageapi.New(""),
		CredentialsPath: auth.DefaultCredentialsPath(),
		SettingsPath:    settingsFile(),
		State:           st,
		Snapshots:       snapshots,
		Interval:        cfg.Interval(),
		Logger:          logger,
	})

	// Show last-known data (marked stale) until the first poll lands.
	if snap, ok, err := snapshots.LoadSnapshot(); err == nil && ok {
		mon.Seed(snap)
	}

	notifier := notify.New(cfg.Notifications, logger)
	ch, cancel := st.Subscribe()
	defer cancel()
	go func() {
		for upd := range ch {
			notifier.Observe(upd)
		}
	}()

	webserver.New(st, cfg.StatusServer, logger).Start()

	mon.Start()
	logger.Info("pinch started", "interval", cfg.Interval())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	mon.Stop()
	return nil
}
