package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"research-agent-be/internal/bootstrap"
	"research-agent-be/internal/config"
	"research-agent-be/internal/server"
	"research-agent-be/internal/tracer"
	"research-agent-be/pkg/research"

	"github.com/fatih/color"
)

// containerFactory builds the dependency graph; every network client is created there.
type containerFactory func(cfg *config.Config) (*bootstrap.Container, error)

func main() {
	os.Exit(run(config.Load(), bootstrap.NewContainer))
}

// run returns the process exit code so deferred cleanup always happens.
func run(cfg *config.Config, newContainer containerFactory) int {
	// Missing credentials stop the process before any network activity.
	if err := cfg.Validate(); err != nil {
		color.Red("Configuration error: %v", err)
		if errors.Is(err, research.ErrConfiguration) {
			color.Yellow("Set the missing variables in your environment or .env file and restart.")
		}
		return 1
	}

	// 1. Bootstrap Dependencies (Container)
	container, err := newContainer(cfg)
	if err != nil {
		color.Red("Startup error: %v", err)
		return 1
	}
	defer container.Close()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(container.Logger)
	defer shutdownTracer(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Start Background Services
	if err := container.Start(ctx); err != nil {
		color.Red("Background services failed: %v", err)
		return 1
	}

	// 4. Initialize Server
	srv := server.New(cfg, container)

	color.Cyan("Research agent listening on :%s (LLM: %s, search: %s)", cfg.App.Port, cfg.Ai.LLMProvider, cfg.Search.Backend)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			container.Logger.Error("Main", "Server stopped", map[string]interface{}{"error": err.Error()})
			return 1
		}
	case <-ctx.Done():
		container.Logger.Info("Main", "Shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		done := make(chan error, 1)
		go func() { done <- srv.Shutdown() }()
		select {
		case err := <-done:
			if err != nil {
				container.Logger.Error("Main", "Shutdown failed", map[string]interface{}{"error": err.Error()})
			}
		case <-shutdownCtx.Done():
			container.Logger.Warn("Main", "Shutdown timed out", nil)
		}
	}
	return 0
}
