package config

import "os"

const (
	defaultLogLevel        = "info"
	defaultLogFormat       = "console"
	defaultRedisAddr       = "localhost:6379"
	defaultStorageEndpoint = "localhost:9000"
	defaultStorageBucket   = "rendition-media"
	defaultFFmpegPath      = "ffmpeg"
	defaultFFprobePath     = "ffprobe"
	defaultConcurrency     = 2
	defaultShutdownSeconds = 10
	defaultLeaseMargin     = 60
	defaultReaperInterval  = 30
	defaultHeartbeat       = 15
	defaultThrottleMillis  = 250
	defaultChannelPrefix   = "rt:user:"

	defaultAttempts            = 4
	defaultTimeoutSeconds      = 1800
	defaultBackoffSeconds      = 5
	defaultKeepCompletedHours  = 24
	defaultKeepCompletedCount  = 1000
	defaultKeepFailedAgeHours  = 168
	defaultKeepFailedCount     = 5000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir: os.TempDir(),
			LogDir:  "",
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Redis: Redis{
			Addr: defaultRedisAddr,
		},
		Storage: Storage{
			Endpoint: defaultStorageEndpoint,
			Bucket:   defaultStorageBucket,
		},
		Transcode: Transcode{
			FFmpegPath:  defaultFFmpegPath,
			FFprobePath: defaultFFprobePath,
		},
		Workflow: Workflow{
			Concurrency:            defaultConcurrency,
			ShutdownTimeoutSeconds: defaultShutdownSeconds,
			LeaseMarginSeconds:     defaultLeaseMargin,
			ReaperIntervalSeconds:  defaultReaperInterval,
			HeartbeatSeconds:       defaultHeartbeat,
		},
		Relay: Relay{
			ThrottleMillis: defaultThrottleMillis,
			ChannelPrefix:  defaultChannelPrefix,
		},
		Policies: map[string]Policy{},
	}
}

func defaultPolicy() Policy {
	return Policy{
		Attempts:              defaultAttempts,
		TimeoutSeconds:        defaultTimeoutSeconds,
		BackoffSeconds:        defaultBackoffSeconds,
		KeepCompletedAgeHours: defaultKeepCompletedHours,
		KeepCompletedCount:    defaultKeepCompletedCount,
		KeepFailedAgeHours:    defaultKeepFailedAgeHours,
		KeepFailedCount:       defaultKeepFailedCount,
	}
}

// fillPolicy replaces zero-valued policy fields with defaults so partial
// overrides in the config file stay safe.
func fillPolicy(p Policy) Policy {
	def := defaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = def.TimeoutSeconds
	}
	if p.BackoffSeconds <= 0 {
		p.BackoffSeconds = def.BackoffSeconds
	}
	if p.KeepCompletedAgeHours <= 0 {
		p.KeepCompletedAgeHours = def.KeepCompletedAgeHours
	}
	if p.KeepCompletedCount <= 0 {
		p.KeepCompletedCount = def.KeepCompletedCount
	}
	if p.KeepFailedAgeHours <= 0 {
		p.KeepFailedAgeHours = def.KeepFailedAgeHours
	}
	if p.KeepFailedCount <= 0 {
		p.KeepFailedCount = def.KeepFailedCount
	}
	return p
}
