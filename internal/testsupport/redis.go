// Package testsupport provides shared helpers for package tests: a config
// builder seeded with per-test temp directories and an in-process Redis plus
// broker wiring.
package testsupport

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rendition/internal/logging"
	"rendition/internal/queue"
)

// NewRedis starts an in-process Redis and returns a client bound to it. Both
// are cleaned up with the test.
func NewRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})
	return mr, client
}

// NewBroker wires a broker to an in-process Redis.
func NewBroker(t testing.TB, opts ...queue.BrokerOption) (*miniredis.Miniredis, *queue.Broker) {
	t.Helper()

	mr, client := NewRedis(t)
	return mr, queue.NewBroker(client, logging.NewNop(), opts...)
}
