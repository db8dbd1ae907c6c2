// Package core wires the terminal together and runs the main control
// loop: lifecycle machine, touch supervisor, gesture classifier and
// event egress in strict sequence, once per tick.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/visiona/lumen/internal/config"
	"github.com/visiona/lumen/internal/display"
	"github.com/visiona/lumen/internal/encoder"
	"github.com/visiona/lumen/internal/lifecycle"
	"github.com/visiona/lumen/internal/link"
	"github.com/visiona/lumen/internal/pipeline"
	"github.com/visiona/lumen/internal/session"
	"github.com/visiona/lumen/internal/telemetry"
	"github.com/visiona/lumen/internal/touch"
)

// tickInterval is the main control loop cadence. Every component is
// cheap per tick; the interval mainly bounds gesture timing resolution.
const tickInterval = 10 * time.Millisecond

// Options carries the terminal's external collaborators. Tests inject
// fakes; lumend injects the real hardware and network implementations.
type Options struct {
	Sink    display.Sink
	Source  touch.Source
	Link    link.Link
	Address lifecycle.AddressFunc
}

// Terminal is the control core of the display terminal.
type Terminal struct {
	cfg *config.Config

	sink       display.Sink
	pipe       *pipeline.Pipeline
	sock       *session.WebSocket
	machine    *lifecycle.Machine
	supervisor *touch.Supervisor
	classifier *touch.Classifier
	keypad     *touch.Keypad
	enc        *encoder.Encoder
	emitter    *telemetry.Emitter

	wg sync.WaitGroup

	mu        sync.Mutex
	isRunning bool
	health    telemetry.Health
}

// NewTerminal assembles the terminal from its configuration and
// collaborators.
func NewTerminal(cfg *config.Config, opts Options) *Terminal {
	t := &Terminal{cfg: cfg, sink: opts.Sink}

	t.pipe = pipeline.New(cfg.Display.Width, cfg.Display.Height, opts.Sink)

	// The socket's binary handler runs on the read goroutine; Submit is
	// its only shared-state interaction with the rest of the system.
	t.sock = session.NewWebSocket(func(payload []byte) {
		_ = t.pipe.Submit(payload)
	})

	t.machine = lifecycle.New(lifecycle.Config{
		SSID:            cfg.Link.SSID,
		Password:        cfg.Link.Password,
		DefaultPort:     fmt.Sprintf("%d", cfg.Session.DefaultPort),
		LinkLogInterval: cfg.LinkLogInterval(),
		SessionRetry:    cfg.SessionRetryInterval(),
	}, opts.Link, t.sock, opts.Address)

	t.supervisor = touch.NewSupervisor(opts.Source, cfg.TouchRetryInterval())

	t.enc = encoder.New(t.machine.Running, t.sock.SendText, cfg.Session.MaxMessageSize)

	t.classifier = touch.NewClassifier(
		opts.Source, t.supervisor.Ready,
		cfg.HoldTime(), cfg.TapMax(),
		t.enc.Emit,
	)

	t.keypad = touch.NewKeypad(opts.Source, t.supervisor.Ready, cfg.Debounce())

	if cfg.Telemetry.Enabled {
		t.emitter = telemetry.New(
			cfg.Telemetry.Broker, cfg.InstanceID, cfg.Telemetry.TopicPrefix,
			cfg.TelemetryInterval(), t.healthSnapshot,
		)
	}

	return t
}

// Keypad exposes the debounced sampler for the address-entry UI.
func (t *Terminal) Keypad() *touch.Keypad { return t.keypad }

// Run starts the rendering worker and drives the control loop until ctx
// is cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return fmt.Errorf("terminal already running")
	}
	t.isRunning = true
	t.mu.Unlock()

	slog.Info("terminal starting",
		"instance_id", t.cfg.InstanceID,
		"display", fmt.Sprintf("%dx%d", t.cfg.Display.Width, t.cfg.Display.Height),
	)

	// Dedicated rendering context: may block on the slot indefinitely,
	// shares nothing but the slot and the sink.
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.pipe.RunWorker(ctx)
	}()

	if t.emitter != nil {
		if err := t.emitter.Connect(); err != nil {
			// Telemetry is optional; the terminal runs without it.
			slog.Warn("telemetry unavailable", "error", err)
		} else {
			t.wg.Add(1)
			go func() {
				defer t.wg.Done()
				t.emitter.Run(ctx)
			}()
		}
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("control loop stopped")
			return nil
		case <-ticker.C:
			t.tick(time.Now())
		}
	}
}

// tick runs one cooperative control-loop iteration. Strict order:
// lifecycle, touch supervision, gesture classification (which feeds the
// gated encoder synchronously).
func (t *Terminal) tick(now time.Time) {
	t.machine.Tick(now)
	t.supervisor.Tick(now)
	t.classifier.Tick(now)
	t.updateHealth()
}

// updateHealth refreshes the snapshot read by the telemetry goroutine.
func (t *Terminal) updateHealth() {
	t.mu.Lock()
	t.health = telemetry.Health{
		InstanceID: t.cfg.InstanceID,
		State:      t.machine.State().String(),
		SessionID:  t.sock.SessionID(),
		TouchReady: t.supervisor.Ready(),
		Pipeline:   t.pipe.Stats(),
		Encoder:    t.enc.Stats(),
	}
	t.mu.Unlock()
}

func (t *Terminal) healthSnapshot() telemetry.Health {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.health
}

// Shutdown tears the terminal down after Run's context is cancelled.
func (t *Terminal) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.Warn("shutdown timeout, abandoning workers")
	}

	if t.emitter != nil {
		t.emitter.Disconnect()
	}
	if err := t.sock.Close(); err != nil {
		slog.Debug("session close", "error", err)
	}
	if err := t.sink.Close(); err != nil {
		return fmt.Errorf("display close: %w", err)
	}

	slog.Info("terminal stopped")
	return nil
}
