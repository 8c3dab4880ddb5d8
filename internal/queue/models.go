package queue

import (
	"strings"
	"time"
)

// State represents the lifecycle of a job within its queue.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StateDelayed   State = "delayed"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

var allStates = []State{StateWaiting, StateActive, StateDelayed, StateCompleted, StateFailed}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Job is the unit of work submitted to a queue. Core fields are fixed; Meta is
// the single open extension point for opaque passthrough metadata.
type Job struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	SourceLocation   string            `json:"sourceLocation"`
	TargetResolution int               `json:"targetResolution"`
	OwnerID          string            `json:"ownerId"`
	SubmittedAt      time.Time         `json:"submittedAt"`
	SourceArtifactID string            `json:"sourceArtifactId,omitempty"`
	Meta             map[string]string `json:"meta,omitempty"`
}

// Result is the payload recorded when a job completes.
type Result struct {
	URL        string `json:"url"`
	Resolution int    `json:"resolution"`
}

// Record is a job together with its current lifecycle state, read back from
// the queue. It is derived on demand and never persisted as a unit.
type Record struct {
	Job           Job
	State         State
	Progress      float64
	Attempt       int
	Result        *Result
	FailureReason string
	FinishedAt    time.Time
}

// HealthSummary aggregates job counts per lifecycle state for one queue.
type HealthSummary struct {
	Waiting   int64
	Active    int64
	Delayed   int64
	Completed int64
	Failed    int64
}

// Total returns the number of jobs the queue currently tracks.
func (h HealthSummary) Total() int64 {
	return h.Waiting + h.Active + h.Delayed + h.Completed + h.Failed
}

func parseState(value string) State {
	state := State(strings.TrimSpace(value))
	for _, known := range allStates {
		if state == known {
			return state
		}
	}
	return StateWaiting
}
