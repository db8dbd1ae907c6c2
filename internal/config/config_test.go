package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/visiona/lumen/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lumen.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestLoadAppliesDefaults validates that a minimal file fills in every
// documented timing default.
func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
instance_id: bench-terminal
link:
  ssid: workshop
  password: hunter2
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}

	if cfg.Display.Width != 410 || cfg.Display.Height != 502 {
		t.Errorf("display = %dx%d, want 410x502", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Session.DefaultPort != 81 {
		t.Errorf("default port = %d, want 81", cfg.Session.DefaultPort)
	}
	if got := cfg.SessionRetryInterval(); got != 4*time.Second {
		t.Errorf("session retry = %v, want 4s", got)
	}
	if got := cfg.LinkLogInterval(); got != 4*time.Second {
		t.Errorf("link log cadence = %v, want 4s", got)
	}
	if got := cfg.TouchRetryInterval(); got != 3*time.Second {
		t.Errorf("touch retry = %v, want 3s", got)
	}
	if got := cfg.HoldTime(); got != 500*time.Millisecond {
		t.Errorf("hold time = %v, want 500ms", got)
	}
	if got := cfg.TapMax(); got != 200*time.Millisecond {
		t.Errorf("tap max = %v, want 200ms", got)
	}
	if got := cfg.Debounce(); got != 200*time.Millisecond {
		t.Errorf("debounce = %v, want 200ms", got)
	}
}

// TestLoadOverrides validates that explicit values survive default
// application.
func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
instance_id: bench-terminal
display:
  width: 320
  height: 240
session:
  address: 10.0.0.5:9000
  retry_interval_ms: 1000
touch:
  hold_ms: 800
  tap_max_ms: 150
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load = %v", err)
	}
	if cfg.Display.Width != 320 || cfg.Display.Height != 240 {
		t.Errorf("display = %dx%d, want 320x240", cfg.Display.Width, cfg.Display.Height)
	}
	if cfg.Session.Address != "10.0.0.5:9000" {
		t.Errorf("address = %q", cfg.Session.Address)
	}
	if got := cfg.SessionRetryInterval(); got != time.Second {
		t.Errorf("session retry = %v, want 1s", got)
	}
	if got := cfg.HoldTime(); got != 800*time.Millisecond {
		t.Errorf("hold = %v, want 800ms", got)
	}
}

// TestValidateRejectsBadConfigs pins the validation rules.
func TestValidateRejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad instance id", "instance_id: Not Valid!\n"},
		{"tap wider than hold", `
instance_id: a
touch:
  hold_ms: 200
  tap_max_ms: 500
`},
		{"telemetry without broker", `
instance_id: a
telemetry:
  enabled: true
`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := config.Load(writeConfig(t, c.body)); err == nil {
				t.Errorf("Load accepted %s", c.name)
			}
		})
	}
}
