// Package services defines the shared error taxonomy consumed by the router,
// worker pipeline, and external integrations.
//
// Failures are tagged with sentinel markers (validation, configuration,
// transient, external tool, not found, timeout) via Wrap so downstream code can
// classify them uniformly: Retryable drives the broker's retry decision, while
// validation and not-found conditions resolve locally as values.
package services
