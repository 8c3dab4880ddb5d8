package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks the configuration for values that would break the daemon at
// runtime. It returns the first problem found.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Storage.Endpoint == "" {
		return fmt.Errorf("config: storage.endpoint is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("config: storage.bucket is required")
	}
	if c.Workflow.Concurrency <= 0 {
		return fmt.Errorf("config: workflow.concurrency must be positive, got %d", c.Workflow.Concurrency)
	}
	if c.Workflow.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: workflow.shutdown_timeout_seconds must be positive, got %d", c.Workflow.ShutdownTimeoutSeconds)
	}
	if c.Relay.ThrottleMillis <= 0 {
		return fmt.Errorf("config: relay.throttle_millis must be positive, got %d", c.Relay.ThrottleMillis)
	}
	if c.Relay.ChannelPrefix == "" {
		return fmt.Errorf("config: relay.channel_prefix is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("config: logging.format must be console or json, got %q", c.Logging.Format)
	}
	for key, policy := range c.Policies {
		if _, err := strconv.Atoi(key); err != nil {
			return fmt.Errorf("config: policy key %q is not a resolution height", key)
		}
		if policy.Attempts < 0 || policy.TimeoutSeconds < 0 || policy.BackoffSeconds < 0 {
			return fmt.Errorf("config: policy %q has negative values", key)
		}
	}
	return nil
}
