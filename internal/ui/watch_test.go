package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/usage"
)

func sampleUpdate() state.Update {
	now := time.Now().UTC()
	return state.Update{
		Status:     state.StatusOK,
		HasDisplay: true,
		FetchedAt:  now,
		UpdatedAt:  now,
		Display: usage.DisplayState{
			Percent:  40,
			Severity: usage.SeverityWarn,
			Primary:  usage.Rolling5h,
			Buckets: []usage.BucketState{
				{Kind: usage.Rolling5h, Label: "5-Hour Rolling", Percent: 40,
					Severity: usage.SeverityOK, ResetsAt: now.Add(time.Hour), Countdown: time.Hour},
				{Kind: usage.Opus7d, Label: "7-Day (Opus)", Percent: 75,
					Severity: usage.SeverityWarn, ResetsAt: now.Add(48 * time.Hour), Countdown: 48 * time.Hour},
				{Kind: usage.ExtraCredit, Label: "Extra Usage", Percent: 50,
					Severity: usage.SeverityOK, UsedDollars: 6, LimitDollars: 12},
			},
		},
	}
}

func TestBuildTextShowsBuckets(t *testing.T) {
	text := buildText(sampleUpdate())
	for _, want := range []string{"5-Hour Rolling", "7-Day (Opus)", "Extra Usage", "$6.00 / $12.00", "Resets in 1h"} {
		if !strings.Contains(text, want) {
			t.Errorf("dashboard text missing %q", want)
		}
	}
}

func TestBuildTextDegradedStatuses(t *testing.T) {
	u := sampleUpdate()
	u.Status = state.StatusStale
	if !strings.Contains(buildText(u), "Stale") {
		t.Error("stale banner missing")
	}

	u.Status = state.StatusUnauthenticated
	if !strings.Contains(buildText(u), "Not authenticated") {
		t.Error("unauthenticated banner missing")
	}

	// Degraded but with no data at all.
	u.HasDisplay = false
	u.Display = usage.DisplayState{}
	if !strings.Contains(buildText(u), "No usage data yet") {
		t.Error("empty-state text missing")
	}
}

func TestProgressBarBounds(t *testing.T) {
	full := progressBar(150, 10)
	if !strings.Contains(full, strings.Repeat("█", 10)) {
		t.Errorf("over-limit bar should be full: %q", full)
	}
	empty := progressBar(-5, 10)
	if !strings.Contains(empty, strings.Repeat("░", 10)) {
		t.Errorf("negative bar should be empty: %q", empty)
	}
}

func TestSeverityColor(t *testing.T) {
	if severityColor(usage.SeverityOK) != "green" ||
		severityColor(usage.SeverityWarn) != "yellow" ||
		severityColor(usage.SeverityCritical) != "red" {
		t.Error("severity colors out of order")
	}
}
