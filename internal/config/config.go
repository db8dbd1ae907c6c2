package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete terminal configuration.
type Config struct {
	InstanceID string          `yaml:"instance_id"`
	Display    DisplayConfig   `yaml:"display"`
	Link       LinkConfig      `yaml:"link"`
	Session    SessionConfig   `yaml:"session"`
	Touch      TouchConfig     `yaml:"touch"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
}

// DisplayConfig contains the fixed raster geometry. The frame pipeline
// accepts only payloads of exactly Width*Height*2 bytes (RGB565).
type DisplayConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	SPIBus string `yaml:"spi_bus"` // empty = first available
}

// LinkConfig contains wireless association settings.
type LinkConfig struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	// LogIntervalMS is the cadence at which link status is logged while
	// waiting for association, to avoid log spam.
	LogIntervalMS int `yaml:"log_interval_ms"`
}

// SessionConfig contains session acquisition settings.
type SessionConfig struct {
	// Address is the optional pre-configured host[:port] target. When
	// empty the operator supplies it at boot.
	Address string `yaml:"address"`
	// DefaultPort is used when the entered address carries no port.
	DefaultPort int `yaml:"default_port"`
	// RetryIntervalMS is the fixed backoff between connect attempts.
	RetryIntervalMS int `yaml:"retry_interval_ms"`
	// MaxMessageSize bounds outgoing event messages (bytes).
	MaxMessageSize int `yaml:"max_message_size"`
}

// TouchConfig contains touch sensing and gesture timing settings.
type TouchConfig struct {
	I2CBus string `yaml:"i2c_bus"` // empty = first available
	// RetryIntervalMS gates reinitialization attempts after a sensor
	// fault. Fault detection itself is not gated.
	RetryIntervalMS int `yaml:"retry_interval_ms"`
	HoldMS          int `yaml:"hold_ms"`
	TapMaxMS        int `yaml:"tap_max_ms"`
	// DebounceMS applies to the keypad sampling path only, not to the
	// gesture classifier.
	DebounceMS int `yaml:"debounce_ms"`
}

// TelemetryConfig contains the optional MQTT health emitter settings.
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	IntervalS   int    `yaml:"interval_s"`
}

// Defaults from the source hardware: 410x502 RGB565 panel, WebSocket
// port 81, 4s link/session cadences, 3s touch reinit gate.
const (
	DefaultWidth           = 410
	DefaultHeight          = 502
	DefaultPort            = 81
	DefaultLinkLogMS       = 4000
	DefaultSessionRetryMS  = 4000
	DefaultTouchRetryMS    = 3000
	DefaultHoldMS          = 500
	DefaultTapMaxMS        = 200
	DefaultDebounceMS      = 200
	DefaultMaxMessageSize  = 128
	DefaultTelemetryPeriod = 10
)

// Load reads and parses a YAML configuration file, applies defaults and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero-valued fields with documented defaults.
func (c *Config) ApplyDefaults() {
	if c.InstanceID == "" {
		c.InstanceID = "lumen-terminal"
	}
	if c.Display.Width == 0 {
		c.Display.Width = DefaultWidth
	}
	if c.Display.Height == 0 {
		c.Display.Height = DefaultHeight
	}
	if c.Link.LogIntervalMS == 0 {
		c.Link.LogIntervalMS = DefaultLinkLogMS
	}
	if c.Session.DefaultPort == 0 {
		c.Session.DefaultPort = DefaultPort
	}
	if c.Session.RetryIntervalMS == 0 {
		c.Session.RetryIntervalMS = DefaultSessionRetryMS
	}
	if c.Session.MaxMessageSize == 0 {
		c.Session.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.Touch.RetryIntervalMS == 0 {
		c.Touch.RetryIntervalMS = DefaultTouchRetryMS
	}
	if c.Touch.HoldMS == 0 {
		c.Touch.HoldMS = DefaultHoldMS
	}
	if c.Touch.TapMaxMS == 0 {
		c.Touch.TapMaxMS = DefaultTapMaxMS
	}
	if c.Touch.DebounceMS == 0 {
		c.Touch.DebounceMS = DefaultDebounceMS
	}
	if c.Telemetry.IntervalS == 0 {
		c.Telemetry.IntervalS = DefaultTelemetryPeriod
	}
	if c.Telemetry.TopicPrefix == "" {
		c.Telemetry.TopicPrefix = "lumen"
	}
}

// LinkLogInterval returns the link status log cadence as a duration.
func (c *Config) LinkLogInterval() time.Duration {
	return time.Duration(c.Link.LogIntervalMS) * time.Millisecond
}

// SessionRetryInterval returns the session connect backoff as a duration.
func (c *Config) SessionRetryInterval() time.Duration {
	return time.Duration(c.Session.RetryIntervalMS) * time.Millisecond
}

// TouchRetryInterval returns the sensor reinit gate as a duration.
func (c *Config) TouchRetryInterval() time.Duration {
	return time.Duration(c.Touch.RetryIntervalMS) * time.Millisecond
}

// HoldTime returns the touch-to-hold threshold as a duration.
func (c *Config) HoldTime() time.Duration {
	return time.Duration(c.Touch.HoldMS) * time.Millisecond
}

// TapMax returns the maximum tap contact time as a duration.
func (c *Config) TapMax() time.Duration {
	return time.Duration(c.Touch.TapMaxMS) * time.Millisecond
}

// Debounce returns the keypad debounce window as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Touch.DebounceMS) * time.Millisecond
}

// TelemetryInterval returns the health publish cadence as a duration.
func (c *Config) TelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.IntervalS) * time.Second
}
