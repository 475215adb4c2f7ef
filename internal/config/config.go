// Package config loads the daemon settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/volume-counter/internal/feedback"
	"github.com/sweeney/volume-counter/internal/logger"
	"github.com/sweeney/volume-counter/internal/logic"
	"github.com/sweeney/volume-counter/internal/volume"
)

// Config holds every tunable of the daemon.
type Config struct {
	// DebounceIntervalMs is the minimum spacing between accepted events.
	DebounceIntervalMs int64 `yaml:"debounce_interval_ms"`
	// SimultaneousThresholdMs is the widest gap at which opposite presses
	// still count as one reset. Zero disables fusion.
	SimultaneousThresholdMs int64 `yaml:"simultaneous_threshold_ms"`
	// FlushIntervalMs is how often a held press is checked for release.
	FlushIntervalMs int64 `yaml:"flush_interval_ms"`
	// Heartbeat is the period of HEARTBEAT system events. Zero disables them.
	Heartbeat time.Duration `yaml:"heartbeat"`
	// RetryInterval is the wait between attempts to start observing the volume.
	RetryInterval time.Duration `yaml:"retry_interval"`
	// LevelTimeout bounds the wait for the first volume report.
	LevelTimeout time.Duration `yaml:"level_timeout"`

	Broker             string `yaml:"broker"`
	ClientID           string `yaml:"client_id"`
	VolumeStateTopic   string `yaml:"volume_state_topic"`
	VolumeCommandTopic string `yaml:"volume_command_topic"`
	// PublishBuffer is the number of messages kept while the broker is unreachable.
	PublishBuffer int `yaml:"publish_buffer"`

	// RedisURL selects the Redis store. Empty keeps the counter in memory.
	RedisURL   string `yaml:"redis_url"`
	CounterKey string `yaml:"counter_key"`

	// HTTPAddr is the status page address. Empty disables the server.
	HTTPAddr string `yaml:"http_addr"`

	Feedback Feedback `yaml:"feedback"`
	LogLevel string   `yaml:"log_level"`
}

// Feedback configures the GPIO line pulsed on every counter change.
type Feedback struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`
	Line    int    `yaml:"line"`
}

const (
	DefaultFlushInterval = 25 * time.Millisecond
	DefaultHeartbeat     = 15 * time.Minute
	DefaultRetryInterval = 5 * time.Second
	DefaultLevelTimeout  = 2 * time.Second
	DefaultBroker        = "tcp://localhost:1883"
	DefaultClientID      = "volume-counter"
	DefaultPublishBuffer = 100
	DefaultCounterKey    = "counter_value"
	DefaultHTTPAddr      = ":8080"
	DefaultLogLevel      = "info"
)

var (
	errDebounceInterval = errors.New("debounce_interval_ms must be positive")
	errThreshold        = errors.New("simultaneous_threshold_ms must not be negative")
	errFlushInterval    = errors.New("flush_interval_ms must be positive")
	errRetryInterval    = errors.New("retry_interval must be positive")
	errBrokerRequired   = errors.New("broker must be provided")
)

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		DebounceIntervalMs:      logic.DefaultDebounceInterval.Milliseconds(),
		SimultaneousThresholdMs: logic.DefaultSimultaneousThreshold.Milliseconds(),
		FlushIntervalMs:         DefaultFlushInterval.Milliseconds(),
		Heartbeat:               DefaultHeartbeat,
		RetryInterval:           DefaultRetryInterval,
		LevelTimeout:            DefaultLevelTimeout,
		Broker:                  DefaultBroker,
		ClientID:                DefaultClientID,
		VolumeStateTopic:        volume.DefaultStateTopic,
		VolumeCommandTopic:      volume.DefaultCommandTopic,
		PublishBuffer:           DefaultPublishBuffer,
		CounterKey:              DefaultCounterKey,
		HTTPAddr:                DefaultHTTPAddr,
		Feedback: Feedback{
			Chip: feedback.DefaultChip,
			Line: feedback.DefaultLine,
		},
		LogLevel: DefaultLogLevel,
	}
}

// Load reads the YAML file at path over the defaults and validates the result.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// Keys missing from the file keep their default values
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and fills empty optional fields with defaults.
func Validate(cfg *Config) error {
	if cfg.DebounceIntervalMs <= 0 {
		return errDebounceInterval
	}
	if cfg.SimultaneousThresholdMs < 0 {
		return errThreshold
	}
	if cfg.FlushIntervalMs <= 0 {
		return errFlushInterval
	}
	if cfg.RetryInterval <= 0 {
		return errRetryInterval
	}
	if cfg.Heartbeat < 0 {
		cfg.Heartbeat = 0
	}
	if cfg.LevelTimeout <= 0 {
		cfg.LevelTimeout = DefaultLevelTimeout
	}

	if cfg.Broker == "" {
		return errBrokerRequired
	}
	if _, err := url.Parse(cfg.Broker); err != nil {
		return fmt.Errorf("invalid broker: %w", err)
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.VolumeStateTopic == "" {
		cfg.VolumeStateTopic = volume.DefaultStateTopic
	}
	if cfg.VolumeCommandTopic == "" {
		cfg.VolumeCommandTopic = volume.DefaultCommandTopic
	}
	if cfg.PublishBuffer <= 0 {
		cfg.PublishBuffer = DefaultPublishBuffer
	}

	if cfg.RedisURL != "" {
		if _, err := url.Parse(cfg.RedisURL); err != nil {
			return fmt.Errorf("invalid redis_url: %w", err)
		}
	}
	if cfg.CounterKey == "" {
		cfg.CounterKey = DefaultCounterKey
	}

	if cfg.Feedback.Chip == "" {
		cfg.Feedback.Chip = feedback.DefaultChip
	}
	if cfg.Feedback.Line < 0 {
		return fmt.Errorf("invalid feedback line %d", cfg.Feedback.Line)
	}

	if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", cfg.LogLevel)
	}
	return nil
}

// Debounce returns the debouncer settings.
func (c Config) Debounce() logic.DebounceConfig {
	return logic.DebounceConfig{
		DebounceInterval:      time.Duration(c.DebounceIntervalMs) * time.Millisecond,
		SimultaneousThreshold: time.Duration(c.SimultaneousThresholdMs) * time.Millisecond,
	}
}

// FlushInterval returns the period of the flush ticker.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMs) * time.Millisecond
}
