package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CandyFlex/pinch/internal/settings"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read or update preferences",
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print preferences (all, or one key)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		if len(args) == 0 {
			fmt.Printf("poll_interval  %d\n", s.PollInterval)
			fmt.Printf("autostart      %t\n", s.Autostart)
			fmt.Printf("theme          %s\n", s.Theme)
			fmt.Printf("log_level      %s\n", s.LogLevel)
			return nil
		}
		val, err := getSetting(s, args[0])
		if err != nil {
			return err
		}
		fmt.Println(val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Update one preference",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := loadSettings()
		if err := applySetting(&s, args[0], args[1]); err != nil {
			return err
		}
		if err := settings.Save(settingsFile(), s); err != nil {
			return err
		}
		fmt.Printf("%s updated (takes effect next poll cycle)\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
}

func getSetting(s settings.Settings, key string) (string, error) {
	switch key {
	case "poll_interval":
		return strconv.Itoa(s.PollInterval), nil
	case "autostart":
		return strconv.FormatBool(s.Autostart), nil
	case "theme":
		return s.Theme, nil
	case "log_level":
		return s.LogLevel, nil
	default:
		return "", fmt.Errorf("unknown setting %q", key)
	}
}

func applySetting(s *settings.Settings, key, value string) error {
	switch key {
	case "poll_interval":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("poll_interval must be an integer (seconds)")
		}
		if n < settings.MinPollInterval || n > settings.MaxPollInterval {
			return fmt.Errorf("poll_interval must be between %d and %d seconds",
				settings.MinPollInterval, settings.MaxPollInterval)
		}
		s.PollInterval = n
	case "autostart":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("autostart must be true or false")
		}
		s.Autostart = b
	case "theme":
		switch value {
		case "auto", "dark", "light":
			s.Theme = value
		default:
			return fmt.Errorf("theme must be auto, dark, or light")
		}
	case "log_level":
		switch value {
		case "debug", "info", "warn", "error":
			s.LogLevel = value
		default:
			return fmt.Errorf("log_level must be debug, info, warn, or error")
		}
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
