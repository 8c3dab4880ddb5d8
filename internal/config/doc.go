// Package config loads and validates the TOML configuration shared by the
// rendition daemon and CLI.
//
// Load merges repository defaults with an optional config file, normalizes
// paths, and validates the result. Per-resolution queue policies (attempt
// budget, timeout, backoff, retention) are part of the static configuration
// and are read-only at runtime.
package config
