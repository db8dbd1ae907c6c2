// Package telemetry publishes periodic health documents over MQTT.
// Optional: the terminal runs identically with it disabled, and every
// failure here is logged and absorbed, never propagated.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Health is the published document.
type Health struct {
	InstanceID string      `json:"instance_id"`
	State      string      `json:"state"`
	SessionID  string      `json:"session_id,omitempty"`
	TouchReady bool        `json:"touch_ready"`
	Pipeline   interface{} `json:"pipeline"`
	Encoder    interface{} `json:"encoder"`
	Timestamp  string      `json:"timestamp"`
}

// StatusFunc produces the current health snapshot; called on the
// emitter's own ticker goroutine, so it must only read loop-safe state.
type StatusFunc func() Health

// Emitter connects to the broker and publishes on a fixed cadence.
type Emitter struct {
	broker   string
	clientID string
	topic    string
	interval time.Duration
	status   StatusFunc

	client mqtt.Client

	mu        sync.Mutex
	connected bool
	published uint64
	errors    uint64
}

// New creates an emitter publishing to <prefix>/health.
func New(broker, clientID, prefix string, interval time.Duration, status StatusFunc) *Emitter {
	return &Emitter{
		broker:   broker,
		clientID: clientID,
		topic:    fmt.Sprintf("%s/health", prefix),
		interval: interval,
		status:   status,
	}
}

// Connect establishes the broker connection with auto-reconnect.
func (e *Emitter) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.broker))
	opts.SetClientID(e.clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.mu.Lock()
		e.connected = true
		e.mu.Unlock()
		slog.Info("telemetry connected", "broker", e.broker, "topic", e.topic)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.mu.Lock()
		e.connected = false
		e.mu.Unlock()
		slog.Warn("telemetry connection lost, will auto-reconnect", "error", err)
	}

	e.client = mqtt.NewClient(opts)

	token := e.client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("telemetry connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("telemetry connect failed: %w", err)
	}
	return nil
}

// Run publishes health on the configured interval until ctx is done.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.publish()
		}
	}
}

func (e *Emitter) publish() {
	e.mu.Lock()
	connected := e.connected
	e.mu.Unlock()
	if !connected {
		return
	}

	h := e.status()
	h.Timestamp = time.Now().UTC().Format(time.RFC3339)

	payload, err := json.Marshal(h)
	if err != nil {
		e.countError()
		slog.Error("health marshal failed", "error", err)
		return
	}

	token := e.client.Publish(e.topic, 0, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		slog.Warn("health publish timeout")
		return
	}
	if err := token.Error(); err != nil {
		e.countError()
		slog.Warn("health publish failed", "error", err)
		return
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()
}

func (e *Emitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}

// Disconnect closes the broker connection.
func (e *Emitter) Disconnect() {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
		slog.Info("telemetry disconnected")
	}
	e.mu.Lock()
	e.connected = false
	e.mu.Unlock()
}
