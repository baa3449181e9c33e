// Package state carries evaluated usage from the poll loop to whatever is
// displaying it. The poll loop publishes immutable Update values; consumers
// subscribe for a channel or ask for the latest. Nothing here is mutated
// after publish.
package state

import (
	"sync"
	"time"

	"github.com/CandyFlex/pinch/internal/usage"
)

// Status describes how trustworthy the accompanying display data is.
type Status string

const (
	// StatusOK: Display comes from the most recent successful poll.
	StatusOK Status = "ok"
	// StatusStale: the last poll failed on the network; Display is the
	// previous known-good state and will be retried next cycle.
	StatusStale Status = "stale"
	// StatusUnknown: the API answered but the payload could not be parsed.
	StatusUnknown Status = "unknown"
	// StatusUnauthenticated: no usable OAuth token on disk.
	StatusUnauthenticated Status = "unauthenticated"
)

// Update is one published reading.
type Update struct {
	Status     Status             `json:"status"`
	Display    usage.DisplayState `json:"display"`
	HasDisplay bool               `json:"has_display"`
	Message    string             `json:"message,omitempty"`
	FetchedAt  time.Time          `json:"fetched_at,omitzero"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// Store holds the latest Update and fans new ones out to subscribers.
// Sends never block: a slow subscriber misses intermediate updates and
// catches up on the next one, which is fine for display data.
type Store struct {
	mu     sync.Mutex
	latest Update
	has    bool
	subs   map[chan Update]struct{}
}

func NewStore() *Store {
	return &Store{subs: make(map[chan Update]struct{})}
}

// Publish records u as the latest update and notifies subscribers.
func (s *Store) Publish(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = u
	s.has = true
	for ch := range s.subs {
		select {
		case ch <- u:
		default:
		}
	}
}

// Latest returns the most recent update, if any has been published.
func (s *Store) Latest() (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.has
}

// Subscribe registers a new consumer. The returned cancel func must be
// called when done; the channel is closed by it.
func (s *Store) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 8)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, ch)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
