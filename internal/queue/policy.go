package queue

import (
	"time"

	"rendition/internal/config"
)

// Policy governs retries and retention for one queue. It is attached at
// enqueue time and stored with the job so state transitions never need the
// originating configuration.
type Policy struct {
	Attempts          int           `json:"attempts"`
	Timeout           time.Duration `json:"timeout"`
	Backoff           time.Duration `json:"backoff"`
	LeaseMargin       time.Duration `json:"leaseMargin"`
	KeepCompletedAge  time.Duration `json:"keepCompletedAge"`
	KeepCompletedCount int          `json:"keepCompletedCount"`
	KeepFailedAge     time.Duration `json:"keepFailedAge"`
	KeepFailedCount   int           `json:"keepFailedCount"`
}

// PolicyFromConfig converts the static configuration policy for a resolution
// into the broker's runtime form.
func PolicyFromConfig(p config.Policy, leaseMargin time.Duration) Policy {
	if leaseMargin <= 0 {
		leaseMargin = time.Minute
	}
	return Policy{
		Attempts:           p.Attempts,
		Timeout:            time.Duration(p.TimeoutSeconds) * time.Second,
		Backoff:            time.Duration(p.BackoffSeconds) * time.Second,
		LeaseMargin:        leaseMargin,
		KeepCompletedAge:   time.Duration(p.KeepCompletedAgeHours) * time.Hour,
		KeepCompletedCount: p.KeepCompletedCount,
		KeepFailedAge:      time.Duration(p.KeepFailedAgeHours) * time.Hour,
		KeepFailedCount:    p.KeepFailedCount,
	}
}

// LeaseTTL is the exclusive lease duration granted per attempt. It exceeds the
// processing timeout by the safety margin so the broker never reclaims a job
// that is still legitimately running.
func (p Policy) LeaseTTL() time.Duration {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return timeout + p.LeaseMargin
}

// NextBackoff returns the delay before retry attempt n (1-based), doubling per
// failed attempt.
func (p Policy) NextBackoff(attempt int) time.Duration {
	base := p.Backoff
	if base <= 0 {
		base = 5 * time.Second
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > time.Hour {
			return time.Hour
		}
	}
	return delay
}
