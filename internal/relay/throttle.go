package relay

import (
	"sync"
	"time"
)

// Throttle enforces a minimum interval between progress deliveries per job.
// Entries live from the first progress event until Clear, which callers invoke
// on job completion or failure to bound memory growth.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewThrottle creates a throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &Throttle{
		interval: interval,
		last:     make(map[string]time.Time),
	}
}

// ShouldEmit reports whether a delivery for jobID is allowed at now.
func (t *Throttle) ShouldEmit(jobID string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[jobID]
	if !ok {
		return true
	}
	return now.Sub(last) >= t.interval
}

// RecordEmission notes that a delivery for jobID happened at now.
func (t *Throttle) RecordEmission(jobID string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[jobID] = now
}

// Clear removes the entry for jobID.
func (t *Throttle) Clear(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, jobID)
}

// Len returns the number of tracked jobs.
func (t *Throttle) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
