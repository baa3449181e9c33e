package usage

import (
	"fmt"
	"math"
	"time"
)

// Severity is the display color tier derived from utilization.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarn
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarn:
		return "warn"
	case SeverityCritical:
		return "critical"
	default:
		return "ok"
	}
}

// MarshalText makes severities render as their names in JSON payloads.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ok":
		*s = SeverityOK
	case "warn":
		*s = SeverityWarn
	case "critical":
		*s = SeverityCritical
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// severityTiers is an ordered lookup table, most severe first. A percent
// belongs to the first tier whose floor it meets.
var severityTiers = []struct {
	floor float64
	level Severity
}{
	{90, SeverityCritical},
	{70, SeverityWarn},
	{0, SeverityOK},
}

// SeverityFor classifies a clamped percent against the tier table.
func SeverityFor(percent float64) Severity {
	for _, t := range severityTiers {
		if percent >= t.floor {
			return t.level
		}
	}
	return SeverityOK
}

// BucketState is the evaluated form of one bucket.
type BucketState struct {
	Kind      BucketKind    `json:"kind"`
	Label     string        `json:"label"`
	Percent   float64       `json:"percent"`
	Severity  Severity      `json:"severity"`
	ResetsAt  time.Time     `json:"resets_at,omitzero"`
	Countdown time.Duration `json:"countdown_ns"`

	UsedDollars  float64 `json:"used_dollars,omitempty"`
	LimitDollars float64 `json:"limit_dollars,omitempty"`
}

// DisplayState is the rendered summary shown to the user. Percent and
// Countdown track the primary bucket; Severity is the maximum across all
// buckets in the snapshot.
type DisplayState struct {
	Percent   float64       `json:"percent"`
	Severity  Severity      `json:"severity"`
	Countdown time.Duration `json:"countdown_ns"`
	Primary   BucketKind    `json:"primary"`
	Buckets   []BucketState `json:"buckets"`

	// NeedsRefetch is set when a reset time has already passed -- the
	// snapshot is describing a window that no longer exists, and the
	// poll loop should fetch again without waiting a full interval.
	NeedsRefetch bool `json:"needs_refetch,omitempty"`
}

// Evaluate derives a DisplayState from a snapshot at the given instant.
// It is a pure function: identical inputs yield identical states.
//
// A missing required bucket or a malformed reading returns a *ParseError
// and a zero DisplayState; callers keep whatever state they had.
func Evaluate(snap Snapshot, now time.Time) (DisplayState, error) {
	for _, kind := range requiredKinds {
		if _, ok := snap.Bucket(kind); !ok {
			return DisplayState{}, &ParseError{Kind: kind, Reason: "missing from snapshot"}
		}
	}
	if snap.ExtraEnabled {
		if _, ok := snap.Bucket(ExtraCredit); !ok {
			return DisplayState{}, &ParseError{Kind: ExtraCredit, Reason: "enabled but missing from snapshot"}
		}
	}

	st := DisplayState{Severity: SeverityOK}
	for _, kind := range displayPriority {
		b, ok := snap.Bucket(kind)
		if !ok {
			continue
		}
		if math.IsNaN(b.Utilization) || math.IsInf(b.Utilization, 0) {
			return DisplayState{}, &ParseError{Kind: kind, Reason: "malformed utilization"}
		}
		bs := BucketState{
			Kind:         kind,
			Label:        kind.Label(),
			Percent:      clampPercent(b.Utilization),
			ResetsAt:     b.ResetsAt,
			UsedDollars:  b.UsedDollars,
			LimitDollars: b.LimitDollars,
		}
		bs.Severity = SeverityFor(bs.Percent)
		if !b.ResetsAt.IsZero() {
			bs.Countdown = b.ResetsAt.Sub(now)
			if bs.Countdown <= 0 {
				bs.Countdown = 0
				st.NeedsRefetch = true
			}
		}
		if bs.Severity > st.Severity {
			st.Severity = bs.Severity
		}
		st.Buckets = append(st.Buckets, bs)
	}

	// Buckets were appended in priority order, so the first one drives
	// the primary percent; the first with a known reset drives countdown.
	st.Primary = st.Buckets[0].Kind
	st.Percent = math.Round(st.Buckets[0].Percent)
	for _, bs := range st.Buckets {
		if !bs.ResetsAt.IsZero() {
			st.Countdown = bs.Countdown
			break
		}
	}
	return st, nil
}

// clampPercent bounds a reported utilization to the displayable [0, 100].
func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
