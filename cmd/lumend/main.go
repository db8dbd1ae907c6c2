package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/visiona/lumen/internal/config"
	"github.com/visiona/lumen/internal/core"
	"github.com/visiona/lumen/internal/display"
	"github.com/visiona/lumen/internal/lifecycle"
	"github.com/visiona/lumen/internal/link"
	"github.com/visiona/lumen/internal/touch"
)

const defaultConfigPath = "config/lumen.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	headless := flag.Bool("headless", false, "Discard frames instead of driving the panel")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting lumen terminal",
		"config", *configPath,
		"instance_id", cfg.InstanceID,
	)

	// Display bus init failure is the one unrecoverable fault: the
	// terminal is useless without its panel.
	var sink display.Sink
	if *headless {
		sink = &display.Discard{}
	} else {
		sink, err = display.NewSPISink(display.SPIOpts{
			Bus:    cfg.Display.SPIBus,
			DCPin:  "GPIO25",
			RSTPin: "GPIO27",
		})
		if err != nil {
			slog.Error("display init failed, cannot continue", "error", err)
			os.Exit(1)
		}
	}

	// The touch source starts cold; the recovery supervisor brings it up
	// and keeps it alive.
	source, err := touch.NewI2CSource(cfg.Touch.I2CBus)
	if err != nil {
		slog.Error("touch bus unavailable", "error", err)
		os.Exit(1)
	}

	terminal := core.NewTerminal(cfg, core.Options{
		Sink:    sink,
		Source:  source,
		Link:    &link.Loopback{},
		Address: addressProvider(cfg),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- terminal.Run(ctx)
	}()

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errChan:
		if err != nil {
			slog.Error("terminal error", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := terminal.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
		os.Exit(1)
	}
}

// addressProvider returns the lifecycle's address collaborator: the
// configured target when present, otherwise a one-shot stdin prompt
// standing in for the on-screen keypad. The address is entered once per
// boot and never persisted.
func addressProvider(cfg *config.Config) lifecycle.AddressFunc {
	if cfg.Session.Address != "" {
		return func() (string, bool) { return cfg.Session.Address, true }
	}

	var once sync.Once
	var mu sync.Mutex
	var addr string
	return func() (string, bool) {
		once.Do(func() {
			go func() {
				os.Stdout.WriteString("session target (host[:port]): ")
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					slog.Error("address entry failed", "error", err)
					return
				}
				mu.Lock()
				addr = strings.TrimSpace(line)
				mu.Unlock()
			}()
		})
		mu.Lock()
		defer mu.Unlock()
		return addr, addr != ""
	}
}
