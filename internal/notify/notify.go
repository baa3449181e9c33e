// Package notify fires best-effort alerts when usage crosses into a worse
// tier or authentication is lost. Failures are logged and dropped; the poll
// loop never waits on a notification.
package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/CandyFlex/pinch/internal/settings"
	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/usage"
)

type Notifier struct {
	cfg    settings.Notifications
	logger *slog.Logger
	client *http.Client

	prevSeverity usage.Severity
	prevStatus   state.Status
	primed       bool
}

func New(cfg settings.Notifications, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		cfg:    cfg,
		logger: logger,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Observe inspects one published update and fires alerts on transitions.
// Call it from a single goroutine (a state subscriber); it is not
// concurrency-safe on its own.
func (n *Notifier) Observe(u state.Update) {
	if !n.cfg.Enabled {
		return
	}
	defer func() {
		n.prevStatus = u.Status
		if u.HasDisplay {
			n.prevSeverity = u.Display.Severity
		}
		n.primed = true
	}()

	if !n.primed {
		return // never alert on the first reading after startup
	}

	if u.Status == state.StatusUnauthenticated && n.prevStatus != state.StatusUnauthenticated {
		n.send("Pinch: authentication lost", "Open Claude Code to refresh the OAuth token, then reconnect.", u)
		return
	}

	if u.Status == state.StatusOK && u.HasDisplay && u.Display.Severity > n.prevSeverity {
		title := fmt.Sprintf("Pinch: usage %s", u.Display.Severity)
		msg := fmt.Sprintf("%s at %s, resets %s",
			u.Display.Primary.Label(),
			usage.FormatPercent(u.Display.Percent),
			usage.FormatCountdown(u.Display.Countdown))
		n.send(title, msg, u)
	}
}

func (n *Notifier) send(title, msg string, u state.Update) {
	n.sendSystem(title, msg)
	if n.cfg.Webhook != "" {
		n.sendWebhook(u)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(title, msg, u)
	}
}

func (n *Notifier) sendSystem(title, msg string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title %q`, msg, title)
		cmd = exec.Command("osascript", "-e", script)
	case "windows":
		// msg.exe is the only notifier present on stock installs.
		cmd = exec.Command("msg", "*", "/TIME:10", title+": "+msg)
	default:
		cmd = exec.Command("notify-send", title, msg)
	}
	if err := cmd.Run(); err != nil {
		n.logger.Debug("system notification failed", "err", err)
	}
}

type webhookPayload struct {
	Status    string  `json:"status"`
	Severity  string  `json:"severity"`
	Percent   float64 `json:"percent"`
	Primary   string  `json:"primary"`
	Countdown string  `json:"countdown"`
	Timestamp string  `json:"timestamp"`
}

func (n *Notifier) sendWebhook(u state.Update) {
	payload := webhookPayload{
		Status:    string(u.Status),
		Severity:  u.Display.Severity.String(),
		Percent:   u.Display.Percent,
		Primary:   string(u.Display.Primary),
		Countdown: usage.CompactCountdown(u.Display.Countdown),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("webhook notification failed", "err", err)
		return
	}
	resp.Body.Close()
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(title, msg string, u state.Update) {
	priority := 3
	if u.Display.Severity == usage.SeverityCritical || u.Status == state.StatusUnauthenticated {
		priority = 4
	}
	payload := ntfyPayload{
		Title:    title,
		Message:  msg,
		Priority: priority,
		Tags:     []string{"chart_with_upwards_trend"},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("ntfy notification failed", "err", err)
		return
	}
	resp.Body.Close()
}
