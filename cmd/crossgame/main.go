// Command crossgame converts Polygames checkpoints between Ludii games.
//
// It enumerates registered source and target game configurations, locates
// the best checkpoint of every source, asks the Ludii channel helper how the
// tensor channels of each target correspond to the source's, and runs the
// Polygames converter once per pair.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Process exit codes.
const (
	exitOK                = 0
	exitFatal             = 1
	exitConversionsFailed = 2
)

// errConversionsFailed is returned by a batch command that completed with at
// least one failed conversion. The summary already lists the failures.
var errConversionsFailed = errors.New("some conversions failed")

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, errConversionsFailed) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	cancel()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errConversionsFailed):
		return exitConversionsFailed
	default:
		return exitFatal
	}
}
