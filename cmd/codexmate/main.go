package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codexmate/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// no arguments starts the TUI
	if err := cli.App().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "codexmate:", err)
		stop()
		os.Exit(cli.ExitCode(err))
	}
}
