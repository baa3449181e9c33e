package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/CandyFlex/pinch/internal/store"
	"github.com/CandyFlex/pinch/internal/usage"
)

func open(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "pinch.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestLoadSnapshotEmpty(t *testing.T) {
	s := open(t)
	_, ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("empty store should report no snapshot")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := open(t)
	fetched := time.Date(2026, 2, 17, 12, 0, 0, 0, time.UTC)
	reset := fetched.Add(2 * time.Hour)

	snap := usage.Snapshot{
		FetchedAt:    fetched,
		ExtraEnabled: true,
		Buckets: []usage.Bucket{
			{Kind: usage.Rolling5h, Utilization: 12.5, ResetsAt: reset},
			{Kind: usage.Opus7d, Utilization: 64, ResetsAt: reset.Add(70 * time.Hour)},
			{Kind: usage.Sonnet7d, Utilization: 3.25},
			{Kind: usage.ExtraCredit, Utilization: 94.9, UsedDollars: 11.39, LimitDollars: 12},
		},
	}
	if err := s.SaveSnapshot(snap); err != nil {
		t.Fatal(err)
	}

	got, ok, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected a stored snapshot")
	}
	if !got.FetchedAt.Equal(fetched) {
		t.Errorf("fetched at %v, want %v", got.FetchedAt, fetched)
	}

	five, _ := got.Bucket(usage.Rolling5h)
	if five.Utilization != 12.5 || !five.ResetsAt.Equal(reset) {
		t.Errorf("five hour bucket: %+v", five)
	}
	sonnet, _ := got.Bucket(usage.Sonnet7d)
	if !sonnet.ResetsAt.IsZero() {
		t.Errorf("missing reset should round-trip as zero time, got %v", sonnet.ResetsAt)
	}
	extra, ok := got.Bucket(usage.ExtraCredit)
	if !ok || extra.UsedDollars != 11.39 || extra.LimitDollars != 12 {
		t.Errorf("extra bucket: %+v", extra)
	}

	// The stored snapshot must still evaluate cleanly.
	if _, err := usage.Evaluate(got, fetched); err != nil {
		t.Errorf("stored snapshot does not evaluate: %v", err)
	}
}

func TestSaveReplacesSingleRow(t *testing.T) {
	s := open(t)
	base := usage.Snapshot{
		FetchedAt: time.Now().UTC(),
		Buckets: []usage.Bucket{
			{Kind: usage.Rolling5h, Utilization: 10},
			{Kind: usage.Opus7d, Utilization: 10},
			{Kind: usage.Sonnet7d, Utilization: 10},
		},
	}
	if err := s.SaveSnapshot(base); err != nil {
		t.Fatal(err)
	}

	base.Buckets[0].Utilization = 55
	if err := s.SaveSnapshot(base); err != nil {
		t.Fatal(err)
	}

	got, _, err := s.LoadSnapshot()
	if err != nil {
		t.Fatal(err)
	}
	five, _ := got.Bucket(usage.Rolling5h)
	if five.Utilization != 55 {
		t.Errorf("second save should replace the row, got %v", five.Utilization)
	}
}
