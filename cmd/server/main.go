package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/thereceipt/label-engine/internal/api"
	"github.com/thereceipt/label-engine/internal/config"
	"github.com/thereceipt/label-engine/internal/engine"
	"github.com/thereceipt/label-engine/internal/tui"
)

// Version is set during build via ldflags
var Version = "dev"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(getArg("--config"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if port := getArg("--port"); port != "" {
		cfg.Port = port
	}
	headless := hasArg("--headless")

	// Logs go to stderr until the dashboard takes over
	sink := &logSink{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(sink, nil))
	slog.SetDefault(logger)
	log.SetOutput(sink)

	eng, err := engine.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	defer eng.Close()

	if err := eng.Session.Restore(cfg.AutosavePath()); err == nil {
		logger.Info("✅ Restored previous session", "path", cfg.AutosavePath())
	}

	server := api.NewServer(eng, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("0.0.0.0:%s", cfg.Port)
		logger.Info("🚀 Starting API server", "addr", addr, "version", Version, "data_dir", cfg.DataDir)
		if err := server.Run(addr); err != nil {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	tuiDone := make(chan struct{})
	if headless {
		logger.Info("🏷️  Label Engine running headless")
	} else {
		tuiApp := tui.NewTViewApp(eng, cfg.Port)
		sink.Set(tuiApp.LogWriter())

		go func() {
			if err := tuiApp.Run(); err != nil {
				sink.Set(os.Stderr)
				logger.Error("TUI error", "err", err)
			}
			close(tuiDone)
		}()
	}

	select {
	case err := <-serverErrChan:
		sink.Set(os.Stderr)
		log.Fatalf("Server error: %v", err)
	case <-sigChan:
		logger.Info("🛑 Shutting down...")
	case <-tuiDone:
	}

	sink.Set(os.Stderr)
	if err := eng.Session.Autosave(cfg.AutosavePath()); err != nil {
		logger.Warn("⚠️ Failed to autosave session", "err", err)
	}
}

// logSink is a writer whose target can be swapped while logging
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *logSink) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func getArg(name string) string {
	for i, arg := range os.Args {
		if arg == name && i+1 < len(os.Args) {
			return os.Args[i+1]
		}
	}
	return ""
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}
