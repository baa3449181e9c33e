package usage_test

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/CandyFlex/pinch/internal/usage"
)

var now = time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)

// snapshot builds a full snapshot with the given utilizations and resets
// two hours (5h bucket) and three days (weekly buckets) out.
func snapshot(five, opus, sonnet float64) usage.Snapshot {
	return usage.Snapshot{
		FetchedAt: now,
		Buckets: []usage.Bucket{
			{Kind: usage.Rolling5h, Utilization: five, ResetsAt: now.Add(2 * time.Hour)},
			{Kind: usage.Opus7d, Utilization: opus, ResetsAt: now.Add(72 * time.Hour)},
			{Kind: usage.Sonnet7d, Utilization: sonnet, ResetsAt: now.Add(72 * time.Hour)},
		},
	}
}

func TestEvaluateSeverityTiers(t *testing.T) {
	cases := []struct {
		percent float64
		want    usage.Severity
	}{
		{65, usage.SeverityOK},
		{69.9, usage.SeverityOK},
		{70, usage.SeverityWarn},
		{75, usage.SeverityWarn},
		{89.9, usage.SeverityWarn},
		{90, usage.SeverityCritical},
		{95, usage.SeverityCritical},
	}
	for _, c := range cases {
		st, err := usage.Evaluate(snapshot(c.percent, 0, 0), now)
		if err != nil {
			t.Fatalf("percent %v: %v", c.percent, err)
		}
		if st.Severity != c.want {
			t.Errorf("percent %v: severity %v, want %v", c.percent, st.Severity, c.want)
		}
	}
}

func TestEvaluateSeverityIsMaxAcrossBuckets(t *testing.T) {
	// Primary bucket is calm but a weekly bucket is critical.
	st, err := usage.Evaluate(snapshot(10, 95, 75), now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Severity != usage.SeverityCritical {
		t.Errorf("severity %v, want critical (dominates warn and ok)", st.Severity)
	}
	if st.Percent != 10 {
		t.Errorf("primary percent %v, want 10 (rolling bucket drives display)", st.Percent)
	}
}

func TestEvaluateClampsPercent(t *testing.T) {
	st, err := usage.Evaluate(snapshot(250, -5, 100), now)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range st.Buckets {
		if b.Percent < 0 || b.Percent > 100 {
			t.Errorf("bucket %s: percent %v outside [0,100]", b.Kind, b.Percent)
		}
	}
	if st.Percent != 100 {
		t.Errorf("over-limit primary: percent %v, want 100", st.Percent)
	}
}

func TestEvaluateSeverityMonotonicInPercent(t *testing.T) {
	prev := usage.SeverityOK
	for p := 0.0; p <= 120; p += 0.5 {
		st, err := usage.Evaluate(snapshot(p, 0, 0), now)
		if err != nil {
			t.Fatal(err)
		}
		if st.Severity < prev {
			t.Fatalf("severity decreased at percent %v: %v -> %v", p, prev, st.Severity)
		}
		prev = st.Severity
	}
}

func TestEvaluateCountdown(t *testing.T) {
	st, err := usage.Evaluate(snapshot(50, 50, 50), now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Countdown != 2*time.Hour {
		t.Errorf("countdown %v, want 2h (rolling bucket wins display priority)", st.Countdown)
	}
	if st.NeedsRefetch {
		t.Error("NeedsRefetch set with all resets in the future")
	}
}

func TestEvaluateCountdownFloorsAtZero(t *testing.T) {
	snap := snapshot(50, 50, 50)
	snap.Buckets[0].ResetsAt = now.Add(-time.Minute)

	st, err := usage.Evaluate(snap, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Countdown != 0 {
		t.Errorf("countdown %v, want 0 for a reset in the past", st.Countdown)
	}
	if !st.NeedsRefetch {
		t.Error("expected NeedsRefetch for an expired reset")
	}
}

func TestEvaluateCountdownFallsBackToWeekly(t *testing.T) {
	snap := snapshot(50, 50, 50)
	snap.Buckets[0].ResetsAt = time.Time{} // API omitted the rolling reset

	st, err := usage.Evaluate(snap, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Countdown != 72*time.Hour {
		t.Errorf("countdown %v, want 72h from the next bucket with a reset", st.Countdown)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	snap := snapshot(42.5, 87, 12)
	a, err := usage.Evaluate(snap, now)
	if err != nil {
		t.Fatal(err)
	}
	b, err := usage.Evaluate(snap, now)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical snapshot and time produced different states")
	}
}

func TestEvaluateMissingBucket(t *testing.T) {
	snap := snapshot(50, 50, 50)
	snap.Buckets = snap.Buckets[:2] // drop the sonnet bucket

	_, err := usage.Evaluate(snap, now)
	var parseErr *usage.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if parseErr.Kind != usage.Sonnet7d {
		t.Errorf("ParseError kind %v, want %v", parseErr.Kind, usage.Sonnet7d)
	}
}

func TestEvaluateMalformedUtilization(t *testing.T) {
	snap := snapshot(50, 50, 50)
	snap.Buckets[1].Utilization = math.NaN()

	_, err := usage.Evaluate(snap, now)
	var parseErr *usage.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError for NaN utilization, got %v", err)
	}
}

func TestEvaluateExtraCreditBucket(t *testing.T) {
	snap := snapshot(10, 10, 10)
	snap.ExtraEnabled = true
	snap.Buckets = append(snap.Buckets, usage.Bucket{
		Kind:         usage.ExtraCredit,
		Utilization:  95,
		UsedDollars:  11.39,
		LimitDollars: 12.00,
	})

	st, err := usage.Evaluate(snap, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Severity != usage.SeverityCritical {
		t.Errorf("severity %v, want critical from the extra-credit bucket", st.Severity)
	}
	if st.Primary != usage.Rolling5h {
		t.Errorf("primary %v, want rolling bucket regardless of extra usage", st.Primary)
	}

	// Enabled flag without the bucket itself is malformed.
	bad := snapshot(10, 10, 10)
	bad.ExtraEnabled = true
	if _, err := usage.Evaluate(bad, now); err == nil {
		t.Error("expected ParseError when extra usage is enabled but absent")
	}
}
