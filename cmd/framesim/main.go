// framesim is the PC-side counterpart of the terminal: a WebSocket
// server that streams raw RGB565 rasters at a target FPS and prints the
// gesture events the terminal sends back. Frames come from a synthetic
// moving test pattern or from a msgpack recording.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is one frame of a recording: the delay since the previous frame
// and the raw raster payload.
type Record struct {
	DelayMS int    `msgpack:"delay_ms"`
	Data    []byte `msgpack:"data"`
}

var (
	port   = flag.Int("port", 81, "WebSocket listen port")
	width  = flag.Int("width", 410, "Frame width in pixels")
	height = flag.Int("height", 502, "Frame height in pixels")
	fps    = flag.Int("fps", 20, "Target frames per second (synthetic source)")
	replay = flag.String("replay", "", "Replay frames from a msgpack recording instead of the test pattern")
	loop   = flag.Bool("loop", true, "Loop the recording")
	record = flag.String("record", "", "Write the synthetic pattern to a msgpack recording and exit")
	frames = flag.Int("frames", 100, "Number of frames to record with -record")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *record != "" {
		if err := writeRecording(*record, *frames); err != nil {
			slog.Error("recording failed", "error", err)
			os.Exit(1)
		}
		slog.Info("recording written", "path", *record, "frames", *frames)
		return
	}

	upgrader := websocket.Upgrader{
		// The terminal dials directly, not from a browser.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade failed", "error", err)
			return
		}
		slog.Info("terminal connected", "remote", conn.RemoteAddr())
		defer func() {
			conn.Close()
			slog.Info("terminal disconnected", "remote", conn.RemoteAddr())
		}()

		// Gesture events arrive as text messages; print them as they come.
		go func() {
			for {
				msgType, data, err := conn.ReadMessage()
				if err != nil {
					return
				}
				if msgType == websocket.TextMessage {
					fmt.Printf("event: %s\n", data)
				}
			}
		}()

		if *replay != "" {
			streamRecording(conn, *replay)
		} else {
			streamPattern(conn)
		}
	})

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("framesim listening",
		"addr", addr, "w", *width, "h", *height, "fps", *fps, "replay", *replay)
	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// streamPattern pushes the synthetic test pattern until the peer drops.
func streamPattern(conn *websocket.Conn) {
	interval := time.Second / time.Duration(*fps)
	buf := make([]byte, *width**height*2)
	for tick := 0; ; tick++ {
		renderPattern(buf, *width, *height, tick)
		if err := conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
			return
		}
		time.Sleep(interval)
	}
}

// streamRecording replays a msgpack recording, honouring per-frame delays.
func streamRecording(conn *websocket.Conn, path string) {
	for {
		f, err := os.Open(path)
		if err != nil {
			slog.Error("failed to open recording", "path", path, "error", err)
			return
		}
		dec := msgpack.NewDecoder(f)
		for {
			var rec Record
			if err := dec.Decode(&rec); err != nil {
				if err != io.EOF {
					slog.Error("recording decode failed", "error", err)
				}
				break
			}
			time.Sleep(time.Duration(rec.DelayMS) * time.Millisecond)
			if err := conn.WriteMessage(websocket.BinaryMessage, rec.Data); err != nil {
				f.Close()
				return
			}
		}
		f.Close()
		if !*loop {
			return
		}
	}
}

// writeRecording captures the synthetic pattern into a msgpack file.
func writeRecording(path string, n int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create recording: %w", err)
	}
	defer f.Close()

	enc := msgpack.NewEncoder(f)
	delay := 1000 / *fps
	buf := make([]byte, *width**height*2)
	for tick := 0; tick < n; tick++ {
		renderPattern(buf, *width, *height, tick)
		rec := Record{DelayMS: delay, Data: buf}
		if err := enc.Encode(&rec); err != nil {
			return fmt.Errorf("encode frame %d: %w", tick, err)
		}
	}
	return nil
}

// renderPattern fills buf with a moving RGB565 gradient so motion is
// visible on the panel.
func renderPattern(buf []byte, w, h, tick int) {
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint16((x + tick) * 31 / w % 32)
			g := uint16((y + tick) * 63 / h % 64)
			b := uint16((x + y + tick*2) * 31 / (w + h) % 32)
			px := r<<11 | g<<5 | b
			i := (y*w + x) * 2
			buf[i] = byte(px >> 8)
			buf[i+1] = byte(px)
		}
	}
}
