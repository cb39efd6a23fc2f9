package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/kitinfo/kitinfo/cmd/kitinfo/commands"
	"github.com/kitinfo/kitinfo/pkg/engine"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	commands.SetupLogging(os.Stderr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Debug().Msg("Received interrupt signal, shutting down")
		cancel()
	}()

	if err := commands.Execute(ctx, Version, Commit, BuildDate); err != nil {
		// The session already told the user why authentication failed.
		if !engine.IsAuthentication(err) {
			log.Error().Err(err).Msg("kitinfo failed")
		}
		cancel()
		os.Exit(1)
	}
}
