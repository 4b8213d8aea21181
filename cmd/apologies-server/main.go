// Command apologies-server runs the game coordination server: it loads
// configuration, wires the coordinator loop to a websocket front door, and
// shuts down gracefully on SIGINT/SIGTERM. Grounded on the teacher's
// cmd/server/main.go (flag/env-driven bootstrap, http.ListenAndServe),
// generalized with signal-driven graceful shutdown and structured logging
// via zerolog rather than the standard log package.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dhirschfeld/apologies-server/internal/clock"
	"github.com/dhirschfeld/apologies-server/internal/config"
	"github.com/dhirschfeld/apologies-server/internal/coordinator"
	"github.com/dhirschfeld/apologies-server/internal/transport"
)

type overrideFlags []string

func (o *overrideFlags) String() string { return strings.Join(*o, ",") }
func (o *overrideFlags) Set(v string) error {
	*o = append(*o, v)
	return nil
}

func main() {
	envPath := flag.String("config", "", "path to a .env-style configuration file")
	logPath := flag.String("logfile", "", "path to write logs to (defaults to stderr)")
	var overrides overrideFlags
	flag.Var(&overrides, "override", "config override in key:value form, may be repeated")
	flag.Parse()

	if err := run(*envPath, *logPath, overrides); err != nil {
		log.Fatal().Err(err).Msg("apologies-server: fatal error")
	}
}

func run(envPath, logPath string, overrides overrideFlags) error {
	cfg, err := config.Load(envPath, overrides)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logPath == "" {
		logPath = cfg.LogfilePath
	}
	closeLog, err := setupLogging(logPath)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	defer closeLog()

	coord := coordinator.New(cfg, clock.Real{})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runDone := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(runDone)
	}()

	srv := transport.New(coord, nil)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: srv,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("apologies-server: listening")
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			cancel()
			<-runDone
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info().Msg("apologies-server: shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.CloseTimeoutSec)*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}

	<-runDone
	return nil
}

func setupLogging(path string) (func(), error) {
	zerolog.TimeFieldFormat = time.RFC3339
	if path == "" {
		log.Logger = log.Output(os.Stderr)
		return func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	log.Logger = log.Output(f)
	return func() { _ = f.Close() }, nil
}
