package usage

import (
	"fmt"
	"time"
)

// BucketKind identifies one quota category reported by the usage API.
type BucketKind string

const (
	Rolling5h   BucketKind = "five_hour"
	Opus7d      BucketKind = "seven_day"
	Sonnet7d    BucketKind = "seven_day_sonnet"
	ExtraCredit BucketKind = "extra_usage"
)

// displayPriority orders buckets for the primary metric: the rolling
// short-window bucket wins over the weekly buckets, which win over
// extra credits.
var displayPriority = []BucketKind{Rolling5h, Opus7d, Sonnet7d, ExtraCredit}

// requiredKinds must all be present in a snapshot for it to be evaluable.
// ExtraCredit is only required when the account has extra usage enabled.
var requiredKinds = []BucketKind{Rolling5h, Opus7d, Sonnet7d}

func (k BucketKind) String() string { return string(k) }

// Label returns the human name used on every display surface.
func (k BucketKind) Label() string {
	switch k {
	case Rolling5h:
		return "5-Hour Rolling"
	case Opus7d:
		return "7-Day (Opus)"
	case Sonnet7d:
		return "7-Day (Sonnet)"
	case ExtraCredit:
		return "Extra Usage"
	}
	return string(k)
}

// Bucket is a single quota reading. Utilization is on the API's 0-100 scale
// and may exceed 100 when the account is over its limit. ResetsAt is zero
// when the API omits a reset time (extra credits have none).
type Bucket struct {
	Kind        BucketKind `json:"kind"`
	Utilization float64    `json:"utilization"`
	ResetsAt    time.Time  `json:"resets_at,omitzero"`

	// Dollar amounts, populated for the extra-credit bucket only.
	UsedDollars  float64 `json:"used_dollars,omitempty"`
	LimitDollars float64 `json:"limit_dollars,omitempty"`
}

// Snapshot is the full set of bucket readings fetched in one API call.
// It is immutable once constructed and superseded wholesale by the next
// poll's snapshot, never merged field-by-field.
type Snapshot struct {
	Buckets      []Bucket  `json:"buckets"`
	ExtraEnabled bool      `json:"extra_enabled"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Bucket returns the reading for the given kind, if present.
func (s Snapshot) Bucket(kind BucketKind) (Bucket, bool) {
	for _, b := range s.Buckets {
		if b.Kind == kind {
			return b, true
		}
	}
	return Bucket{}, false
}

// ParseError reports a snapshot that cannot be evaluated: a required bucket
// is missing or carries a malformed reading. The caller is expected to keep
// its previous display state and surface "unknown" rather than crash.
type ParseError struct {
	Kind   BucketKind
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("usage snapshot: bucket %s: %s", e.Kind, e.Reason)
}
