// Package daemon wires the broker, worker pools, and progress relay into a
// single long-running process and owns their startup and shutdown order.
package daemon
