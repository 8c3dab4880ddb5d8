package queue

// Redis key layout for one queue. All structures for queue q live under the
// queue name as prefix so deployments can inspect or clear a single resolution
// without touching its siblings.

func keyJob(queue, jobID string) string { return queue + ":job:" + jobID }

func keyWaiting(queue string) string { return queue + ":waiting" }

func keyActive(queue string) string { return queue + ":active" }

func keyDelayed(queue string) string { return queue + ":delayed" }

func keyCompleted(queue string) string { return queue + ":completed" }

func keyFailed(queue string) string { return queue + ":failed" }

func keyEvents(queue string) string { return queue + ":events" }

// Job hash fields.
const (
	fieldPayload    = "payload"
	fieldPolicy     = "policy"
	fieldState      = "state"
	fieldProgress   = "progress"
	fieldAttempt    = "attempt"
	fieldResult     = "result"
	fieldFailure    = "failure"
	fieldLeaseUntil = "lease_until"
	fieldFinishedAt = "finished_at"
)
