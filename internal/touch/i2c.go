package touch

import (
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// FT-series capacitive controller register map (subset).
const (
	ftAddr = 0x38

	regDeviceMode = 0x00
	regTDStatus   = 0x02 // low nibble = active touch points
	regP1XH       = 0x03
	regIDGMode    = 0xA4 // interrupt mode
	regIDGPMode   = 0xA5 // power / monitor mode

	idgModePolling = 0x00
	pModeMonitor   = 0x01
)

// I2CSource drives an FT-series touch controller over I²C. This class of
// controller is known to wedge the bus intermittently in the field, which
// is what the supervisor's reset/reinit cycle recovers from.
type I2CSource struct {
	busName string
	bus     i2c.BusCloser
	dev     i2c.Dev
}

// NewI2CSource prepares a source on the named bus (empty = first
// available). The controller itself is not initialized here; the
// supervisor does that through Init.
func NewI2CSource(busName string) (*I2CSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}
	return &I2CSource{busName: busName}, nil
}

// ResetBus implements Source. Tears down and reopens the bus handle,
// which issues the recovery clocking the platform driver provides.
func (s *I2CSource) ResetBus() error {
	if s.bus != nil {
		if err := s.bus.Close(); err != nil {
			slog.Debug("touch bus close failed", "error", err)
		}
		s.bus = nil
	}
	bus, err := i2creg.Open(s.busName)
	if err != nil {
		return fmt.Errorf("failed to open i2c bus %q: %w", s.busName, err)
	}
	s.bus = bus
	s.dev = i2c.Dev{Addr: ftAddr, Bus: bus}
	return nil
}

// Init implements Source: brings the controller into normal operation,
// polling interrupt mode, monitor power mode.
func (s *I2CSource) Init() error {
	if s.bus == nil {
		return fmt.Errorf("touch bus not open")
	}
	if err := s.write(regDeviceMode, 0x00); err != nil {
		return fmt.Errorf("device mode: %w", err)
	}
	if err := s.write(regIDGMode, idgModePolling); err != nil {
		return fmt.Errorf("interrupt mode: %w", err)
	}
	if err := s.write(regIDGPMode, pModeMonitor); err != nil {
		return fmt.Errorf("power mode: %w", err)
	}
	return nil
}

// Probe implements Source: an empty transaction against the controller
// address, acknowledged only if the controller is alive.
func (s *I2CSource) Probe() error {
	if s.bus == nil {
		return fmt.Errorf("touch bus not open")
	}
	if err := s.dev.Tx(nil, nil); err != nil {
		return fmt.Errorf("probe nack: %w", err)
	}
	return nil
}

// Pending implements Source: true while at least one touch point is
// active.
func (s *I2CSource) Pending() bool {
	if s.bus == nil {
		return false
	}
	var status [1]byte
	if err := s.dev.Tx([]byte{regTDStatus}, status[:]); err != nil {
		return false
	}
	return status[0]&0x0F > 0
}

// ReadPoint implements Source: reads the first touch point registers.
func (s *I2CSource) ReadPoint() (int, int, error) {
	if s.bus == nil {
		return 0, 0, fmt.Errorf("touch bus not open")
	}
	var raw [4]byte
	if err := s.dev.Tx([]byte{regP1XH}, raw[:]); err != nil {
		return 0, 0, fmt.Errorf("point read failed: %w", err)
	}
	x := int(raw[0]&0x0F)<<8 | int(raw[1])
	y := int(raw[2]&0x0F)<<8 | int(raw[3])
	return x, y, nil
}

// Close releases the bus.
func (s *I2CSource) Close() error {
	if s.bus == nil {
		return nil
	}
	return s.bus.Close()
}

func (s *I2CSource) write(reg, val byte) error {
	return s.dev.Tx([]byte{reg, val}, nil)
}
