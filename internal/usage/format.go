package usage

import (
	"fmt"
	"time"
)

// FormatCountdown renders a duration-to-reset as a relative phrase:
// "in 2h 15m", "in 45m", "in 3d 5h", or "now" once the reset has passed.
func FormatCountdown(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return "now"
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	// Minutes are noise once the countdown is measured in days.
	if minutes > 0 && days == 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "now"
	}
	out := "in " + parts[0]
	for _, p := range parts[1:] {
		out += " " + p
	}
	return out
}

// CompactCountdown is the short form used in tight layouts:
// "2h14m", "45m", "3d5h", or "now".
func CompactCountdown(d time.Duration) string {
	total := int(d.Seconds())
	if total <= 0 {
		return "now"
	}
	days := total / 86400
	hours := (total % 86400) / 3600
	minutes := (total % 3600) / 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh", days, hours)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// FormatPercent renders a percent for display, e.g. "42%".
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.0f%%", p)
}
