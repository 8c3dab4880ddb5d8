// Package queue implements the durable per-resolution job queues on Redis.
//
// Each resolution owns one queue. A queue is a set of Redis structures under a
// shared key prefix: a waiting list, an active list, a delayed retry set,
// completed/failed retention sets, and one hash per job. Delivery is
// lease-based: claiming a job moves it to the active list and stamps a
// time-bounded lease, and the reaper requeues jobs whose lease expired so a
// crashed worker never strands work. Retry uses exponential backoff via the
// delayed set, bounded by the per-resolution attempt budget.
//
// Lifecycle events (progress, completed, failed) are published on a per-queue
// pub/sub channel so any number of relay replicas can observe them.
//
// The guarantee is at-least-once: a job can be processed twice across a lease
// expiry, never concurrently while a lease is live. Callers share one Redis
// client; the broker performs no caller-side locking.
package queue
