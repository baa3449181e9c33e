// Package usageapi talks to the Anthropic OAuth usage endpoint.
//
// This is a read-only, non-billable endpoint. Error messages are sanitized:
// raw response bodies never reach users or logs.
package usageapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CandyFlex/pinch/internal/usage"
)

const (
	// DefaultEndpoint is the fixed usage-reporting URL.
	DefaultEndpoint = "https://api.anthropic.com/api/oauth/usage"

	betaHeader = "oauth-2025-04-20"
	userAgent  = "pinch/1.0"

	defaultTimeout = 10 * time.Second
)

// ErrUnauthorized is returned on HTTP 401; the caller should re-read the
// credential file and retry, since Claude Code may have refreshed the token.
var ErrUnauthorized = errors.New("usage API: unauthorized")

// StatusError is any non-200, non-401 HTTP response. The body is discarded.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("usage API: HTTP %d", e.Code)
}

// DecodeError means the endpoint answered 200 but the payload could not be
// parsed. Surfaced upward as the "unknown" display status.
type DecodeError struct {
	err error
}

func (e *DecodeError) Error() string { return "usage API: malformed response" }
func (e *DecodeError) Unwrap() error { return e.err }

// Client fetches usage snapshots. The zero value is not usable; call New.
type Client struct {
	endpoint string
	http     *http.Client
	now      func() time.Time
}

// New returns a client for the given endpoint ("" means DefaultEndpoint).
func New(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: defaultTimeout},
		now:      time.Now,
	}
}

type windowUsage struct {
	Utilization float64 `json:"utilization"`
	ResetsAt    string  `json:"resets_at"`
}

type extraUsage struct {
	IsEnabled    bool    `json:"is_enabled"`
	MonthlyLimit float64 `json:"monthly_limit"` // cents
	UsedCredits  float64 `json:"used_credits"`  // cents
	Utilization  float64 `json:"utilization"`
}

// Window pointers distinguish an absent bucket from a zero reading.
type usageResponse struct {
	FiveHour       *windowUsage `json:"five_hour"`
	SevenDay       *windowUsage `json:"seven_day"`
	SevenDaySonnet *windowUsage `json:"seven_day_sonnet"`
	ExtraUsage     *extraUsage  `json:"extra_usage"`
}

// Fetch performs one GET and returns the parsed snapshot. The token is used
// for this single request and not retained by the client.
func (c *Client) Fetch(ctx context.Context, token string) (usage.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return usage.Snapshot{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("anthropic-beta", betaHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return usage.Snapshot{}, fmt.Errorf("usage API: connection failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return usage.Snapshot{}, fmt.Errorf("usage API: connection failed: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return usage.Snapshot{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return usage.Snapshot{}, &StatusError{Code: resp.StatusCode}
	}

	var raw usageResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return usage.Snapshot{}, &DecodeError{err: err}
	}
	return c.toSnapshot(raw), nil
}

func (c *Client) toSnapshot(raw usageResponse) usage.Snapshot {
	snap := usage.Snapshot{FetchedAt: c.now().UTC()}

	appendWindow := func(kind usage.BucketKind, w *windowUsage) {
		if w == nil {
			return
		}
		snap.Buckets = append(snap.Buckets, usage.Bucket{
			Kind:        kind,
			Utilization: w.Utilization,
			ResetsAt:    parseResetsAt(w.ResetsAt),
		})
	}
	appendWindow(usage.Rolling5h, raw.FiveHour)
	appendWindow(usage.Opus7d, raw.SevenDay)
	appendWindow(usage.Sonnet7d, raw.SevenDaySonnet)

	if raw.ExtraUsage != nil && raw.ExtraUsage.IsEnabled {
		snap.ExtraEnabled = true
		snap.Buckets = append(snap.Buckets, usage.Bucket{
			Kind:        usage.ExtraCredit,
			Utilization: raw.ExtraUsage.Utilization,
			// The API reports cents (1139 = $11.39).
			UsedDollars:  raw.ExtraUsage.UsedCredits / 100.0,
			LimitDollars: raw.ExtraUsage.MonthlyLimit / 100.0,
		})
	}
	return snap
}

// parseResetsAt converts an RFC3339 timestamp to a time.Time.
// Returns the zero time on parse failure or an empty string.
func parseResetsAt(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}
		}
	}
	return t
}
