// Package logging assembles the structured slog loggers used across rendition
// components.
//
// It centralizes level parsing, output routing, and format selection, and
// exposes typed attribute helpers plus a no-op logger so wiring code and tests
// can always obtain a usable logger. Prefer these constructors over hand-rolled
// slog setup so every component emits log lines with the same shape.
package logging
