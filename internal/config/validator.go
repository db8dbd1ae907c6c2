package config

import (
	"fmt"
	"regexp"
)

var instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)

// Validate checks if the configuration is valid
func Validate(cfg *Config) error {
	if cfg.InstanceID == "" {
		return fmt.Errorf("instance_id is required")
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.Display.Width <= 0 || cfg.Display.Height <= 0 {
		return fmt.Errorf("display.width and display.height must be > 0")
	}

	if cfg.Session.DefaultPort <= 0 || cfg.Session.DefaultPort > 65535 {
		return fmt.Errorf("session.default_port must be in 1..65535")
	}
	if cfg.Session.RetryIntervalMS <= 0 {
		return fmt.Errorf("session.retry_interval_ms must be > 0")
	}
	if cfg.Session.MaxMessageSize <= 0 {
		return fmt.Errorf("session.max_message_size must be > 0")
	}

	if cfg.Touch.RetryIntervalMS <= 0 {
		return fmt.Errorf("touch.retry_interval_ms must be > 0")
	}
	// A tap window wider than the hold threshold would classify every
	// hold release as a tap.
	if cfg.Touch.TapMaxMS > cfg.Touch.HoldMS {
		return fmt.Errorf("touch.tap_max_ms (%d) must not exceed touch.hold_ms (%d)",
			cfg.Touch.TapMaxMS, cfg.Touch.HoldMS)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Broker == "" {
		return fmt.Errorf("telemetry.broker is required when telemetry is enabled")
	}

	return nil
}
