package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"studyrooms/auth"
	httpapi "studyrooms/infrastructure/http"
	"studyrooms/repositories"
	"studyrooms/runtime"
	"studyrooms/runtime/workers"
	"studyrooms/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning an error instead of calling os.Exit ensures every defer (like
// database cleanup) executes before the program exits, and keeps the
// initialization logic testable.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.INFO))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Stores & collaboration core
	history := repositories.NewHistoryRepository(db, log, config.HistoryPageLimit)
	pending := repositories.NewPendingRepository(db, log)
	registry := runtime.NewSessionRegistry(log, config.SessionTimeout)
	directory := runtime.NewRoomDirectory(log, history.LastSequence)
	service := services.NewCollabService(log, registry, directory, history, pending)

	// 4. Background workers under supervision
	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewSweeperWorker(log, registry, config.SweepInterval))
	sup.Add(workers.NewTelemetryWorker(log, config.TelemetryInterval))

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 6. HTTP server
	tokens := auth.NewTokenManager([]byte(config.AuthSecret), config.AuthTokenDuration)
	server := httpapi.NewServer(log, service, tokens, config.BufferSize)

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address)
		if err := server.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	if err := server.Shutdown(context.Background()); err != nil {
		log.Warn("HTTP server shutdown", "error", err)
	}
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}
