package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CandyFlex/pinch/internal/applog"
	"github.com/CandyFlex/pinch/internal/auth"
	"github.com/CandyFlex/pinch/internal/monitor"
	"github.com/CandyFlex/pinch/internal/settings"
	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/store"
	"github.com/CandyFlex/pinch/internal/ui"
	"github.com/CandyFlex/pinch/internal/usageapi"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Live terminal usage dashboard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadSettings()

		// The terminal owns stdout/stderr while tview runs; log to file only.
		logger, logCloser, err := applog.Init(applog.Options{
			Path:  settings.LogPath(),
			Level: cfg.LogLevel,
		})
		if err != nil {
			return fmt.Errorf("init logging: %w", err)
		}
		defer logCloser.Close()

		st := state.NewStore()
		mcfg := monitor.Config{
			Fetcher:         usageapi.New(""),
			CredentialsPath: auth.DefaultCredentialsPath(),
			SettingsPath:    settingsFile(),
			State:           st,
			Interval:        cfg.Interval(),
			Logger:          logger,
		}

		// Best effort: reuse the daemon's persisted snapshot for an
		// instant first paint. The dashboard works without it.
		if snapshots, err := store.Open(settings.DBPath()); err == nil {
			defer snapshots.Close()
			if err := snapshots.Migrate(); err == nil {
				mcfg.Snapshots = snapshots
			}
		} else {
			fmt.Fprintf(os.Stderr, "warning: snapshot store unavailable: %v\n", err)
		}

		mon := monitor.New(mcfg)
		if mcfg.Snapshots != nil {
			if snap, ok, err := mcfg.Snapshots.LoadSnapshot(); err == nil && ok {
				mon.Seed(snap)
			}
		}
		mon.Start()
		defer mon.Stop()

		return ui.NewWatch(st, mon.ForcePoll).Run()
	},
}
