package main

import (
	"context"
	"os"
	"os/signal"
	"time"

	"github.com/habedi/dogs/cmd"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// forceExitAfter bounds how long a command may keep running after an interrupt.
const forceExitAfter = 15 * time.Second

func main() {
	configureLogLevelFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopChan := setupInterruptListener()
	go handleInterrupt(stopChan, cancel, func(msg string) { log.Error().Msg(msg) }, os.Exit)

	cmd.Execute(ctx)
}

// configureLogLevelFromEnv enables debug logging when DEBUG_DOGS is set to
// anything other than "", "0" or "false", and disables logging otherwise.
func configureLogLevelFromEnv() {
	switch os.Getenv("DEBUG_DOGS") {
	case "", "0", "false":
		zerolog.SetGlobalLevel(zerolog.Disabled)
	default:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func setupInterruptListener() chan os.Signal {
	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, os.Interrupt)
	return stopChan
}

// handleInterrupt cancels the running command on the first interrupt. A second
// interrupt, or a command that does not return in time, exits the process.
func handleInterrupt(stopChan chan os.Signal, cancel context.CancelFunc, logFn func(string), exit func(int)) {
	<-stopChan
	cancel()
	select {
	case <-stopChan:
	case <-time.After(forceExitAfter):
	}
	logFn("Interrupt signal received. Exiting...")
	exit(1)
}
