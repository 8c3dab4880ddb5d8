// Package relay bridges queue lifecycle events to per-user realtime channels.
//
// One subscription is opened per resolution queue. Progress events are
// throttled per job (drop-based: an event inside the window is discarded, not
// coalesced) and every delivery goes only to the job owner's private channel.
// The owner is resolved by re-reading the job from its queue; a job that has
// since disappeared is skipped silently. Multiple relay replicas can run
// concurrently: each delivers independently and the connection servers
// de-duplicate nothing, which is acceptable under the best-effort contract.
package relay
