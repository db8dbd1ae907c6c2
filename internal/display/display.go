// Package display abstracts the raster output device. The frame pipeline
// talks to a Sink and never to the pixel bus directly.
package display

import "log/slog"

// Sink receives complete RGB565 rasters. Present blocks until the buffer
// has been handed to the device; the caller regains ownership of buf when
// Present returns.
type Sink interface {
	// Present pushes one w x h raster (2 bytes per pixel, row-major).
	Present(buf []byte, w, h int) error
	// Close releases the underlying device.
	Close() error
}

// Discard is a Sink that drops every frame. Used for headless runs and
// as the default in tests.
type Discard struct {
	// Presented counts frames received, for test assertions.
	Presented uint64
}

// Present implements Sink.
func (d *Discard) Present(buf []byte, w, h int) error {
	d.Presented++
	slog.Debug("frame discarded", "bytes", len(buf), "w", w, "h", h)
	return nil
}

// Close implements Sink.
func (d *Discard) Close() error { return nil }
