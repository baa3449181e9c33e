// Package ui renders the live terminal dashboard for `pinch watch`.
package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/usage"
)

const barWidth = 30

// Watch subscribes to usage updates and redraws a full-screen text view.
type Watch struct {
	app   *tview.Application
	view  *tview.TextView
	state *state.Store

	// onRefresh forces an immediate poll; may be nil.
	onRefresh func()
}

func NewWatch(st *state.Store, onRefresh func()) *Watch {
	w := &Watch{
		app:       tview.NewApplication(),
		view:      tview.NewTextView(),
		state:     st,
		onRefresh: onRefresh,
	}
	w.view.SetDynamicColors(true)
	w.view.SetBorder(true).SetTitle(" Pinch — Claude Usage ").SetTitleAlign(tview.AlignLeft)
	w.view.SetBackgroundColor(tcell.ColorDefault)

	w.view.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyEscape, event.Rune() == 'q', event.Rune() == 'Q':
			w.app.Stop()
			return nil
		case event.Rune() == 'r', event.Rune() == 'R':
			if w.onRefresh != nil {
				w.onRefresh()
			}
			return nil
		}
		return event
	})
	return w
}

// Run blocks until the user quits.
func (w *Watch) Run() error {
	ch, cancel := w.state.Subscribe()
	defer cancel()

	if upd, ok := w.state.Latest(); ok {
		w.view.SetText(buildText(upd))
	} else {
		w.view.SetText("\n  Waiting for first poll...\n\n  [green]R[-] refresh  [green]Q/Esc[-] quit")
	}

	go func() {
		for upd := range ch {
			u := upd
			w.app.QueueUpdateDraw(func() {
				w.view.SetText(buildText(u))
			})
		}
	}()

	return w.app.SetRoot(w.view, true).Run()
}

func buildText(u state.Update) string {
	var sb strings.Builder
	sb.WriteString("\n")

	switch u.Status {
	case state.StatusUnauthenticated:
		sb.WriteString("  [red]Not authenticated[-] — open Claude Code to refresh the token, then press R.\n\n")
	case state.StatusStale:
		sb.WriteString("  [yellow]Stale[-] — last poll failed, showing previous data.\n\n")
	case state.StatusUnknown:
		sb.WriteString("  [yellow]Unknown[-] — the API response could not be parsed.\n\n")
	}

	if !u.HasDisplay {
		sb.WriteString("  No usage data yet.\n")
		sb.WriteString("\n  [green]R[-] refresh  [green]Q/Esc[-] quit")
		return sb.String()
	}

	for _, b := range u.Display.Buckets {
		sb.WriteString(fmt.Sprintf("  [yellow]%s[-]\n", b.Label))
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			progressBar(b.Percent, barWidth), coloredPercent(b.Percent, b.Severity)))
		if b.Kind == usage.ExtraCredit {
			sb.WriteString(fmt.Sprintf("  $%.2f / $%.2f\n", b.UsedDollars, b.LimitDollars))
		} else if !b.ResetsAt.IsZero() {
			sb.WriteString(fmt.Sprintf("  Resets %s\n", usage.FormatCountdown(b.Countdown)))
		}
		sb.WriteString("\n")
	}

	if !u.FetchedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("  [dim]Updated %s[-]\n", humanize.Time(u.FetchedAt)))
	}
	sb.WriteString("\n  [green]R[-] refresh  [green]Q/Esc[-] quit")
	return sb.String()
}

func severityColor(s usage.Severity) string {
	switch s {
	case usage.SeverityCritical:
		return "red"
	case usage.SeverityWarn:
		return "yellow"
	default:
		return "green"
	}
}

func coloredPercent(percent float64, s usage.Severity) string {
	return fmt.Sprintf("[%s]%.1f%%[-]", severityColor(s), percent)
}

func progressBar(percent float64, width int) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent / 100 * float64(width))
	empty := width - filled
	color := severityColor(usage.SeverityFor(percent))
	return fmt.Sprintf("[%s][%s%s][-]", color, strings.Repeat("█", filled), strings.Repeat("░", empty))
}
