package stats

import (
	"sync"
	"time"
)

// Call holds timing information for a single hub inference call.
type Call struct {
	Model    string
	Duration time.Duration
}

// Tracker accumulates call statistics across multiple hub requests.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []Call
}

// Add records a call entry.
func (t *Tracker) Add(c Call) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, c)
}

// Last returns the most recent call entry.
// The bool is false when the tracker has no entries.
func (t *Tracker) Last() (Call, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return Call{}, false
	}

	return t.entries[len(t.entries)-1], true
}

// Count returns the number of recorded calls.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// TotalDuration returns the aggregate time spent in hub calls.
func (t *Tracker) TotalDuration() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total time.Duration
	for _, e := range t.entries {
		total += e.Duration
	}

	return total
}

// Reset clears all recorded entries.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
}
