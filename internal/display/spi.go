package display

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Panel controller command set (MIPI DCS subset).
const (
	cmdSWReset   = 0x01
	cmdSleepOut  = 0x11
	cmdColMod    = 0x3A
	cmdDisplayOn = 0x29
	cmdCASet     = 0x2A
	cmdRASet     = 0x2B
	cmdRAMWrite  = 0x2C

	colMod16bpp = 0x55
)

// SPI bus transfers are chunked to stay under the driver's transaction
// size limit.
const maxChunk = 4096

// SPISink drives an RGB565 panel over SPI with a data/command select pin.
type SPISink struct {
	port spi.PortCloser
	conn spi.Conn
	dc   gpio.PinOut
	rst  gpio.PinOut
}

// SPIOpts names the bus and control pins for NewSPISink.
type SPIOpts struct {
	Bus    string // spireg name, empty = first available
	DCPin  string
	RSTPin string
	Hz     physic.Frequency // 0 = 40 MHz
}

// NewSPISink opens the pixel bus and runs the panel init sequence.
// Failure here is unrecoverable for the terminal: no useful operation is
// possible without the display, so callers treat an error as fatal.
func NewSPISink(opts SPIOpts) (*SPISink, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init failed: %w", err)
	}

	port, err := spireg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to open spi bus %q: %w", opts.Bus, err)
	}

	hz := opts.Hz
	if hz == 0 {
		hz = 40 * physic.MegaHertz
	}
	conn, err := port.Connect(hz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect spi: %w", err)
	}

	dc := gpioreg.ByName(opts.DCPin)
	if dc == nil {
		port.Close()
		return nil, fmt.Errorf("dc pin %q not found", opts.DCPin)
	}
	rst := gpioreg.ByName(opts.RSTPin)
	if rst == nil {
		port.Close()
		return nil, fmt.Errorf("rst pin %q not found", opts.RSTPin)
	}

	s := &SPISink{port: port, conn: conn, dc: dc, rst: rst}
	if err := s.init(); err != nil {
		port.Close()
		return nil, fmt.Errorf("panel init failed: %w", err)
	}

	slog.Info("display sink ready", "bus", opts.Bus, "hz", hz)
	return s, nil
}

func (s *SPISink) init() error {
	// Hardware reset pulse.
	if err := s.rst.Out(gpio.Low); err != nil {
		return err
	}
	time.Sleep(10 * time.Millisecond)
	if err := s.rst.Out(gpio.High); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)

	if err := s.command(cmdSWReset); err != nil {
		return err
	}
	time.Sleep(150 * time.Millisecond)
	if err := s.command(cmdSleepOut); err != nil {
		return err
	}
	time.Sleep(120 * time.Millisecond)
	if err := s.command(cmdColMod, colMod16bpp); err != nil {
		return err
	}
	return s.command(cmdDisplayOn)
}

// Present implements Sink. Sets the full-panel address window and streams
// the raster in bus-sized chunks.
func (s *SPISink) Present(buf []byte, w, h int) error {
	if err := s.setWindow(w, h); err != nil {
		return err
	}
	if err := s.command(cmdRAMWrite); err != nil {
		return err
	}
	if err := s.dc.Out(gpio.High); err != nil {
		return err
	}
	for off := 0; off < len(buf); off += maxChunk {
		end := off + maxChunk
		if end > len(buf) {
			end = len(buf)
		}
		if err := s.conn.Tx(buf[off:end], nil); err != nil {
			return fmt.Errorf("pixel write failed at offset %d: %w", off, err)
		}
	}
	return nil
}

func (s *SPISink) setWindow(w, h int) error {
	x1, y1 := w-1, h-1
	if err := s.command(cmdCASet, 0, 0, byte(x1>>8), byte(x1)); err != nil {
		return err
	}
	return s.command(cmdRASet, 0, 0, byte(y1>>8), byte(y1))
}

// command sends a command byte with DC low, then any arguments with DC high.
func (s *SPISink) command(cmd byte, args ...byte) error {
	if err := s.dc.Out(gpio.Low); err != nil {
		return err
	}
	if err := s.conn.Tx([]byte{cmd}, nil); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	if err := s.dc.Out(gpio.High); err != nil {
		return err
	}
	return s.conn.Tx(args, nil)
}

// Close implements Sink.
func (s *SPISink) Close() error {
	return s.port.Close()
}
