package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	TempDir string `toml:"temp_dir"`
	LogDir  string `toml:"log_dir"`
}

// Logging contains log output configuration.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Redis contains broker connection settings.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Storage contains the S3-compatible media store settings.
type Storage struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
	Region    string `toml:"region"`
}

// Transcode contains external tool settings.
type Transcode struct {
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`
}

// Workflow contains worker pool and shutdown timing.
type Workflow struct {
	Concurrency            int `toml:"concurrency"`
	ShutdownTimeoutSeconds int `toml:"shutdown_timeout_seconds"`
	LeaseMarginSeconds     int `toml:"lease_margin_seconds"`
	ReaperIntervalSeconds  int `toml:"reaper_interval_seconds"`
	HeartbeatSeconds       int `toml:"heartbeat_seconds"`
}

// Relay contains progress fan-out settings.
type Relay struct {
	ThrottleMillis int    `toml:"throttle_millis"`
	ChannelPrefix  string `toml:"channel_prefix"`
}

// Policy is the per-resolution queue policy.
type Policy struct {
	Attempts              int `toml:"attempts"`
	TimeoutSeconds        int `toml:"timeout_seconds"`
	BackoffSeconds        int `toml:"backoff_seconds"`
	KeepCompletedAgeHours int `toml:"keep_completed_age_hours"`
	KeepCompletedCount    int `toml:"keep_completed_count"`
	KeepFailedAgeHours    int `toml:"keep_failed_age_hours"`
	KeepFailedCount       int `toml:"keep_failed_count"`
}

// Config is the root configuration document.
type Config struct {
	Paths     Paths             `toml:"paths"`
	Logging   Logging           `toml:"logging"`
	Redis     Redis             `toml:"redis"`
	Storage   Storage           `toml:"storage"`
	Transcode Transcode         `toml:"transcode"`
	Workflow  Workflow          `toml:"workflow"`
	Relay     Relay             `toml:"relay"`
	Policies  map[string]Policy `toml:"policy"`
}

// DefaultConfigPath returns the conventional config file location.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "rendition.toml"
	}
	return filepath.Join(home, ".config", "rendition", "config.toml")
}

// Load reads configuration from path (or the default location when empty),
// merges it over defaults, normalizes, and validates. A missing file is not an
// error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	if resolved == "" {
		resolved = DefaultConfigPath()
	}

	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("read config %s: %w", resolved, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// PolicyFor returns the effective policy for a resolution height, falling back
// to the built-in default when no override is configured.
func (c *Config) PolicyFor(height int) Policy {
	if c != nil {
		if policy, ok := c.Policies[fmt.Sprintf("%d", height)]; ok {
			return fillPolicy(policy)
		}
	}
	return defaultPolicy()
}

// EnsureDirectories creates the directories the daemon writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path.
func WriteSample(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(sampleConfig), 0o644)
}

func (c *Config) normalize() {
	c.Paths.TempDir = expandHome(strings.TrimSpace(c.Paths.TempDir))
	c.Paths.LogDir = expandHome(strings.TrimSpace(c.Paths.LogDir))
	c.Logging.Level = strings.TrimSpace(c.Logging.Level)
	c.Logging.Format = strings.TrimSpace(c.Logging.Format)
	c.Redis.Addr = strings.TrimSpace(c.Redis.Addr)
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Relay.ChannelPrefix = strings.TrimSpace(c.Relay.ChannelPrefix)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
