package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CandyFlex/pinch/internal/auth"
	"github.com/CandyFlex/pinch/internal/usage"
	"github.com/CandyFlex/pinch/internal/usageapi"
)

// testAPICmd is the diagnostic one-shot: fetch, print, exit. It never prints
// tokens or credentials -- only usage data.
var testAPICmd = &cobra.Command{
	Use:   "test-api",
	Short: "Fetch usage once and print it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Testing OAuth connection...")

		token, err := auth.ReadAccessToken(auth.DefaultCredentialsPath())
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		snap, err := usageapi.New("").Fetch(ctx, token)
		if err != nil {
			return err
		}

		display, err := usage.Evaluate(snap, time.Now())
		if err != nil {
			return err
		}

		fmt.Println()
		for _, b := range display.Buckets {
			switch b.Kind {
			case usage.ExtraCredit:
				fmt.Printf("%-16s $%.2f / $%.2f (%.1f%%)\n",
					b.Label+":", b.UsedDollars, b.LimitDollars, b.Percent)
			default:
				fmt.Printf("%-16s %.1f%%  (resets %s)\n",
					b.Label+":", b.Percent, usage.FormatCountdown(b.Countdown))
			}
		}
		if !snap.ExtraEnabled {
			fmt.Printf("%-16s Not enabled\n", "Extra Usage:")
		}
		fmt.Printf("\nOverall: %s at %s, severity %s\n",
			display.Primary.Label(), usage.FormatPercent(display.Percent), display.Severity)
		fmt.Println("\nAPI test PASSED")
		return nil
	},
}
