// Package main implements the entry point for the relayq front-door
// server: task submission, the completion-callback receiver, and the
// long-poll notification endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	app, err := buildApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		app.logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}
