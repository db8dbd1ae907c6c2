// Package pipeline moves inbound rasters from the session's read goroutine
// to the rendering worker through a bounded single-owner handoff.
//
// Ownership protocol: buffers are allocated from a fixed pool, move into
// the slot on a successful Submit, move to the worker on dequeue, and
// return to the pool after presentation. At every point exactly one side
// holds a given buffer; handoffs are channel sends, never copies.
//
// Policy: "Drop frames, never queue. Latency > Completeness." When the
// slot is full the newly produced frame is dropped (drop-newest); frames
// already enqueued are never displaced, so presentation order is FIFO.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/visiona/lumen/internal/display"
)

// SlotCapacity bounds the number of in-flight frames between the
// producer and the rendering worker.
const SlotCapacity = 2

// poolSize covers both slot entries, one buffer held by the worker
// during presentation, and one being filled by the producer.
const poolSize = SlotCapacity + 2

var (
	// ErrWrongSize rejects payloads that are not exactly one raster.
	ErrWrongSize = errors.New("pipeline: payload is not one raster")
	// ErrBackpressure reports a frame dropped because the slot was full.
	ErrBackpressure = errors.New("pipeline: slot full, frame dropped")
	// ErrPoolExhausted reports a frame skipped because no buffer was free.
	ErrPoolExhausted = errors.New("pipeline: buffer pool exhausted, frame skipped")
)

// Pipeline is safe for one concurrent producer (Submit) and one consumer
// (RunWorker). All synchronization is internal; callers must not retain
// references to submitted payloads' copies.
type Pipeline struct {
	width     int
	height    int
	frameSize int
	sink      display.Sink

	pool chan []byte
	slot chan []byte

	submitted uint64
	rejected  uint64
	dropped   uint64
	skipped   uint64
	presented uint64
	sinkErrs  uint64
}

// New creates a pipeline for a fixed w x h RGB565 raster feeding sink.
func New(w, h int, sink display.Sink) *Pipeline {
	p := &Pipeline{
		width:     w,
		height:    h,
		frameSize: w * h * 2,
		sink:      sink,
		pool:      make(chan []byte, poolSize),
		slot:      make(chan []byte, SlotCapacity),
	}
	for i := 0; i < poolSize; i++ {
		p.pool <- make([]byte, p.frameSize)
	}
	return p
}

// FrameSize returns the exact accepted payload length in bytes.
func (p *Pipeline) FrameSize() int { return p.frameSize }

// Submit validates and enqueues one raster payload. It is called from the
// session read goroutine and never blocks.
//
// Returns nil when ownership of a copy moved into the slot, ErrWrongSize
// for any other payload length (no side effect), ErrPoolExhausted when no
// buffer was free, and ErrBackpressure when the slot was full (the new
// frame is released immediately; enqueued frames are left untouched).
func (p *Pipeline) Submit(payload []byte) error {
	if len(payload) != p.frameSize {
		atomic.AddUint64(&p.rejected, 1)
		slog.Debug("frame rejected", "got", len(payload), "want", p.frameSize)
		return ErrWrongSize
	}

	var buf []byte
	select {
	case buf = <-p.pool:
	default:
		atomic.AddUint64(&p.skipped, 1)
		slog.Warn("frame skipped, buffer pool exhausted")
		return ErrPoolExhausted
	}

	copy(buf, payload)

	select {
	case p.slot <- buf:
		atomic.AddUint64(&p.submitted, 1)
		return nil
	default:
		// Slot full: favor recency of what is already queued over
		// completeness, drop the newest frame.
		p.release(buf)
		atomic.AddUint64(&p.dropped, 1)
		slog.Debug("frame dropped, slot full")
		return ErrBackpressure
	}
}

// RunWorker consumes the slot and presents frames until ctx is cancelled.
// It runs on its own goroutine and is the sole path that returns frame
// buffers to the pool. Blocking here never blocks Submit.
func (p *Pipeline) RunWorker(ctx context.Context) {
	slog.Info("render worker started", "w", p.width, "h", p.height)
	for {
		select {
		case <-ctx.Done():
			slog.Info("render worker stopped")
			return
		case buf := <-p.slot:
			if err := p.sink.Present(buf, p.width, p.height); err != nil {
				atomic.AddUint64(&p.sinkErrs, 1)
				slog.Error("present failed", "error", err)
			} else {
				atomic.AddUint64(&p.presented, 1)
			}
			p.release(buf)
		}
	}
}

// release returns a buffer to the pool. The pool is sized to hold every
// buffer, so the send cannot block; the default arm guards against a
// foreign buffer being released twice.
func (p *Pipeline) release(buf []byte) {
	select {
	case p.pool <- buf:
	default:
		slog.Error("buffer release overflow, discarding")
	}
}

// Stats is a snapshot of pipeline counters.
type Stats struct {
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
	Dropped   uint64 `json:"dropped"`
	Skipped   uint64 `json:"skipped"`
	Presented uint64 `json:"presented"`
	SinkErrs  uint64 `json:"sink_errors"`
}

// Stats returns a non-blocking snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Submitted: atomic.LoadUint64(&p.submitted),
		Rejected:  atomic.LoadUint64(&p.rejected),
		Dropped:   atomic.LoadUint64(&p.dropped),
		Skipped:   atomic.LoadUint64(&p.skipped),
		Presented: atomic.LoadUint64(&p.presented),
		SinkErrs:  atomic.LoadUint64(&p.sinkErrs),
	}
}
