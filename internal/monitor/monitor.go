// Package monitor runs the poll cycle: read token, fetch usage, evaluate,
// publish. One goroutine, one timer, no shared mutable state -- results
// leave through the state store.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/CandyFlex/pinch/internal/auth"
	"github.com/CandyFlex/pinch/internal/settings"
	"github.com/CandyFlex/pinch/internal/state"
	"github.com/CandyFlex/pinch/internal/store"
	"github.com/CandyFlex/pinch/internal/usage"
	"github.com/CandyFlex/pinch/internal/usageapi"
)

const (
	// Seconds-scale pause before re-reading credentials after a 401;
	// Claude Code may be refreshing the token in the background.
	authRetryDelay = 5 * time.Second
	authMaxRetries = 2

	// Backoff kicks in after this many consecutive failed polls and
	// doubles the wait up to maxBackoff.
	backoffAfter = 3
	maxBackoff   = 5 * time.Minute

	// When a reset time has already passed, re-poll sooner than the
	// configured interval so the new window shows up promptly.
	refetchWait = 15 * time.Second
)

// Fetcher is the usage client surface the monitor needs.
type Fetcher interface {
	Fetch(ctx context.Context, token string) (usage.Snapshot, error)
}

// Config wires a Monitor.
type Config struct {
	Fetcher         Fetcher
	CredentialsPath string
	SettingsPath    string
	State           *state.Store
	Snapshots       *store.Store // optional; last-known persistence
	Interval        time.Duration
	Logger          *slog.Logger
}

type Monitor struct {
	fetcher   Fetcher
	credPath  string
	setPath   string
	state     *state.Store
	snapshots *store.Store
	interval  time.Duration
	logger    *slog.Logger

	stop  chan struct{}
	force chan struct{}
	wg    sync.WaitGroup

	// Poll-goroutine-private; PollOnce is also called synchronously
	// before Start, never concurrently with the loop.
	lastDisplay usage.DisplayState
	lastFetched time.Time
	hasDisplay  bool
	errStreak   int

	now   func() time.Time
	sleep func(time.Duration)
}

func New(cfg Config) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = settings.DefaultPollInterval * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Monitor{
		fetcher:   cfg.Fetcher,
		credPath:  cfg.CredentialsPath,
		setPath:   cfg.SettingsPath,
		state:     cfg.State,
		snapshots: cfg.Snapshots,
		interval:  cfg.Interval,
		logger:    cfg.Logger,
		stop:      make(chan struct{}),
		force:     make(chan struct{}, 1),
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

// SetSleep replaces the 401-retry pause. Used in tests only.
func (m *Monitor) SetSleep(fn func(time.Duration)) { m.sleep = fn }

// Seed primes the monitor with a previously persisted snapshot so the first
// published update is the last-known state marked stale.
func (m *Monitor) Seed(snap usage.Snapshot) {
	st, err := usage.Evaluate(snap, m.now())
	if err != nil {
		return
	}
	m.lastDisplay = st
	m.lastFetched = snap.FetchedAt
	m.hasDisplay = true
	m.publish(state.StatusStale, "last known data from previous run")
}

func (m *Monitor) Start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run()
	}()
}

func (m *Monitor) Stop() {
	close(m.stop)
	m.wg.Wait()
}

// ForcePoll requests an immediate cycle (the Reconnect action, and the
// evaluator's refetch-on-expired-reset signal).
func (m *Monitor) ForcePoll() {
	select {
	case m.force <- struct{}{}:
	default:
	}
}

func (m *Monitor) run() {
	for {
		upd := m.PollOnce(context.Background())

		if upd.Status != state.StatusOK {
			m.errStreak++
			m.logger.Warn("poll failed", "status", upd.Status, "consecutive", m.errStreak, "err", upd.Message)
		} else {
			if m.errStreak > 0 {
				m.logger.Info("poll recovered", "after", m.errStreak)
			}
			m.errStreak = 0
		}

		// Interval follows the settings file so edits apply next cycle.
		if s, err := settings.Load(m.setPath); err == nil {
			m.interval = s.Interval()
		}

		wait := m.interval
		if m.errStreak > backoffAfter {
			exp := m.errStreak - backoffAfter
			if exp > 5 {
				exp = 5
			}
			wait = m.interval << exp
			if wait > maxBackoff {
				wait = maxBackoff
			}
		}
		if upd.Status == state.StatusOK && upd.Display.NeedsRefetch && refetchWait < wait {
			wait = refetchWait
		}

		timer := time.NewTimer(wait)
		select {
		case <-m.stop:
			timer.Stop()
			return
		case <-m.force:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// PollOnce runs one full cycle and publishes the resulting update.
// Tokens read here go out of scope at return; nothing retains them.
func (m *Monitor) PollOnce(ctx context.Context) state.Update {
	health := auth.TokenHealth(m.credPath, m.now())
	switch health {
	case auth.HealthMissing:
		return m.publish(state.StatusUnauthenticated, "no OAuth token found (is Claude Code installed?)")
	case auth.HealthExpired:
		// Still try -- the file may have been refreshed since the check.
		m.logger.Warn("token expired, attempting poll anyway")
	case auth.HealthExpiring:
		m.logger.Info("token expiring soon")
	}

	token, err := auth.ReadAccessToken(m.credPath)
	if err != nil {
		return m.publish(state.StatusUnauthenticated, sanitized(err))
	}

	snap, err := m.fetcher.Fetch(ctx, token)

	// On 401, wait and re-read the credential file: Claude Code may have
	// rotated the token under us.
	for attempt := 1; errors.Is(err, usageapi.ErrUnauthorized) && attempt <= authMaxRetries; attempt++ {
		m.logger.Info("got 401, re-reading credentials", "attempt", attempt, "max", authMaxRetries)
		m.sleep(authRetryDelay)
		token, err = auth.ReadAccessToken(m.credPath)
		if err != nil {
			return m.publish(state.StatusUnauthenticated, sanitized(err))
		}
		snap, err = m.fetcher.Fetch(ctx, token)
		if err == nil {
			m.logger.Info("recovered from 401", "attempt", attempt)
		}
	}

	if err != nil {
		return m.publish(classify(err), sanitized(err))
	}

	display, err := usage.Evaluate(snap, m.now())
	if err != nil {
		return m.publish(state.StatusUnknown, sanitized(err))
	}

	m.lastDisplay = display
	m.lastFetched = snap.FetchedAt
	m.hasDisplay = true

	if m.snapshots != nil {
		if err := m.snapshots.SaveSnapshot(snap); err != nil {
			m.logger.Debug("snapshot persist failed", "err", err)
		}
	}
	return m.publish(state.StatusOK, "")
}

// publish emits the current status with whatever display data we have.
// Degraded statuses keep re-publishing the last good display so the UI can
// show it greyed out instead of going blank.
func (m *Monitor) publish(status state.Status, msg string) state.Update {
	upd := state.Update{
		Status:     status,
		Display:    m.lastDisplay,
		HasDisplay: m.hasDisplay,
		Message:    msg,
		FetchedAt:  m.lastFetched,
		UpdatedAt:  m.now(),
	}
	if m.state != nil {
		m.state.Publish(upd)
	}
	return upd
}

func classify(err error) state.Status {
	var decodeErr *usageapi.DecodeError
	var parseErr *usage.ParseError
	switch {
	case errors.Is(err, usageapi.ErrUnauthorized):
		return state.StatusUnauthenticated
	case errors.As(err, &decodeErr), errors.As(err, &parseErr):
		return state.StatusUnknown
	default:
		// Transport failures, timeouts, non-401 HTTP codes.
		return state.StatusStale
	}
}

// sanitized keeps published error text free of anything that could contain
// response bodies or token material. The typed errors in this module are
// already clean; this is the single choke point if that ever changes.
func sanitized(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
